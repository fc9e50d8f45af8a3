package paging

import (
	"encoding/binary"

	"github.com/hupe1980/segkit/model"
)

// MetaSize is the encoded size of a PageMeta record.
const MetaSize = 48

// PageMeta describes one page buffer. Layout, little-endian:
//
//	data_type u32 | has_backing u8 | backing_type u32 | page_index u32 |
//	reserved [3] | page_key [32]
type PageMeta struct {
	DataType    uint32
	HasBacking  bool
	BackingType model.TypeTag
	Index       uint32
	Key         model.StorageKey
}

const (
	offDataType    = 0
	offHasBacking  = 4
	offBackingType = 5
	offIndex       = 9
	offReserved    = 13
	offKey         = 16
)

// MetaCodec encodes PageMeta records for collection.Array.
type MetaCodec struct{}

// Size implements collection.Codec.
func (MetaCodec) Size() int { return MetaSize }

// Encode implements collection.Codec.
func (MetaCodec) Encode(dst []byte, m PageMeta) {
	binary.LittleEndian.PutUint32(dst[offDataType:], m.DataType)
	dst[offHasBacking] = 0
	if m.HasBacking {
		dst[offHasBacking] = 1
	}
	binary.LittleEndian.PutUint32(dst[offBackingType:], uint32(m.BackingType))
	binary.LittleEndian.PutUint32(dst[offIndex:], m.Index)
	clear(dst[offReserved:offKey])
	copy(dst[offKey:], m.Key[:])
}

// Decode implements collection.Codec.
func (MetaCodec) Decode(src []byte) PageMeta {
	m := PageMeta{
		DataType:    binary.LittleEndian.Uint32(src[offDataType:]),
		HasBacking:  src[offHasBacking] != 0,
		BackingType: model.TypeTag(binary.LittleEndian.Uint32(src[offBackingType:])),
		Index:       binary.LittleEndian.Uint32(src[offIndex:]),
	}
	copy(m.Key[:], src[offKey:offKey+model.KeySize])
	return m
}
