// Package testutil provides testing utilities for segkit.
//
// This package is intended for use in tests only. RNG is a seeded,
// goroutine-safe source of keys, order keys and payload bytes, so
// randomized tests replay exactly:
//
//	rng := testutil.NewRNG(42)
//	key := rng.Key()
//	ok := rng.OrderKey(16, rng.Keys(4))
//	payload := rng.Bytes(1024)
package testutil
