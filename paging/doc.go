// Package paging spreads a logical collection over several buffers.
//
// An owner container holds an array of PageMeta records. Each record names
// a page buffer whose key is derived from the owner key, a seed and the
// data type, so pages can always be found again without stored pointers:
//
//	key = model.DeriveKey(owner, seed || dataType, index)
//
// Pager manages the meta array; Paged presents every page of one data type
// as a single collection.
package paging
