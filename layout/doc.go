// Package layout turns a declared list of segment sizes into byte ranges.
//
// A Layout is pure data: it never references a buffer. Offsets are prefix
// sums of the declared sizes, in declaration order:
//
//	+-----------+  offset 0
//	| segment 0 |
//	+-----------+  sizes[0]
//	| segment 1 |
//	+-----------+  sizes[0]+sizes[1]
//	|    ...    |
//	+-----------+  TotalLen()
//
// At most one segment may be the flex segment. Its declared size is only a
// minimum; binding to a real buffer (package store) stretches it to absorb
// whatever capacity the other segments leave over.
//
// Sizes, offsets and the total are bounded by the configured Width (16 or 32
// bits) so that layouts stay cheap to store alongside their data.
package layout
