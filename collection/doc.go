// Package collection overlays fixed-size record collections onto a segment.
//
// A collection segment is laid out as
//
//	+------------------+  0
//	| count    u32 LE  |
//	| capacity u32 LE  |
//	+------------------+  HeaderSize (8)
//	| record 0         |
//	| record 1         |
//	| ...              |
//	| record cap-1     |
//	+------------------+  HeaderSize + capacity*recordSize
//
// Records are packed with no padding. The header is re-read on every access;
// nothing is cached between calls, so a read always observes the latest write
// issued through any overlay of the same window.
//
// Array keeps records in slot order. Ordered keeps them sorted by a
// (timestamp, identity) model.OrderKey extracted from the raw record bytes.
//
// Out-of-range access through At or Raw is a programming error and panics.
// The error-returning forms (Get, Set, TryRemoveAt) report ErrEntryNotFound.
package collection
