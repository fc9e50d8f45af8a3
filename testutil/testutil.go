package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/segkit/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// FillBytes fills dst with random bytes.
func (r *RNG) FillBytes(dst []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.rand.Read(dst)
}

// Bytes returns n random bytes. Random data does not compress.
func (r *RNG) Bytes(n int) []byte {
	b := make([]byte, n)
	r.FillBytes(b)
	return b
}

// Key returns a random, non-zero storage key.
func (r *RNG) Key() model.StorageKey {
	var k model.StorageKey
	for k.IsZero() {
		r.FillBytes(k[:])
	}
	return k
}

// Keys returns n random storage keys.
func (r *RNG) Keys(n int) []model.StorageKey {
	out := make([]model.StorageKey, n)
	for i := range out {
		out[i] = r.Key()
	}
	return out
}

// OrderKey returns a key with a timestamp in [0, maxTS) and one of the
// given identities. Small ranges produce plenty of ties.
func (r *RNG) OrderKey(maxTS uint64, identities []model.StorageKey) model.OrderKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := model.OrderKey{Timestamp: uint64(r.rand.Int63n(int64(maxTS)))}
	if len(identities) > 0 {
		k.Identity = identities[r.rand.Intn(len(identities))]
	}
	return k
}

// Perm returns a random permutation of [0, n).
func (r *RNG) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}
