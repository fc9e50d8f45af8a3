// Package mmap maps files into memory.
//
// Open maps read-only; OpenRW maps read-write with MAP_SHARED so a write to
// Bytes is a write to the file once Sync returns. A mapping has a fixed size:
// to grow a file, close the mapping, truncate the file and map it again.
//
//	m, err := mmap.OpenRW(path)
//	if err != nil { ... }
//	defer m.Close()
//	copy(m.Bytes(), header)
//	err = m.Sync()
//
// Bytes must not be used after Close.
package mmap
