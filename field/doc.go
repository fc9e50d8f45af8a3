// Package field provides byte-offset accessors for packed records.
//
// Buffers handed out by a host carry no alignment guarantee: their base
// address varies at runtime. Record fields are therefore never read through a
// Go struct laid over the bytes. Each accessor instead knows its offset and
// width and goes through encoding/binary little-endian, which reads and
// writes byte by byte.
//
//	counter := field.NewU64("counter", 0)
//	owner := field.NewKey("owner", 8)
//	counter.Set(meta, counter.Get(meta)+1)
//
// Accessors are values; they are normally produced by package schema.
package field
