// Package conv provides checked integer conversions and arithmetic.
//
// Buffer lengths, segment sizes and record counts cross between Go's int and
// the fixed-width integers of the on-buffer format. Every value read back
// from a buffer is untrusted, so conversions are checked rather than cast.
package conv
