// Package container gates a buffer behind a type tag and exposes its meta
// record and data segments.
//
//	+--------------------+  0
//	| type tag  u32 LE   |
//	| reserved  [4]byte  |
//	+--------------------+  HeaderSize (8)
//	| meta record        |
//	+--------------------+  Base = HeaderSize + MetaSize
//	| segment 0          |
//	| ...                |
//	| segment n-1        |
//	+--------------------+
//
// TryLoad re-checks the tag on every call. A Container holds no state of its
// own beyond the buffer; two Containers over the same buffer observe each
// other's writes immediately.
package container
