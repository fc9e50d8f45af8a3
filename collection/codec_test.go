package collection

import (
	"encoding/binary"

	"github.com/hupe1980/segkit/model"
)

// entry is a 40-byte keyed record: ts u64 | identity [32].
type entry struct {
	TS uint64
	ID model.StorageKey
}

type entryCodec struct{}

func (entryCodec) Size() int { return 40 }

func (entryCodec) Encode(dst []byte, v entry) {
	binary.LittleEndian.PutUint64(dst, v.TS)
	copy(dst[8:], v.ID[:])
}

func (entryCodec) Decode(src []byte) entry {
	var e entry
	e.TS = binary.LittleEndian.Uint64(src)
	copy(e.ID[:], src[8:40])
	return e
}

func (entryCodec) Key(rec []byte) model.OrderKey {
	var k model.OrderKey
	k.Timestamp = binary.LittleEndian.Uint64(rec)
	copy(k.Identity[:], rec[8:40])
	return k
}

// item is a 5-byte record whose first byte flags it read-only.
type item struct {
	Locked bool
	Value  uint32
}

type itemCodec struct{}

func (itemCodec) Size() int { return 5 }

func (itemCodec) Encode(dst []byte, v item) {
	dst[0] = 0
	if v.Locked {
		dst[0] = 1
	}
	binary.LittleEndian.PutUint32(dst[1:], v.Value)
}

func (itemCodec) Decode(src []byte) item {
	return item{Locked: src[0] == 1, Value: binary.LittleEndian.Uint32(src[1:])}
}

func (itemCodec) ReadOnly(rec []byte) bool { return rec[0] == 1 }

func ident(b byte) model.StorageKey {
	var k model.StorageKey
	k[0] = b
	return k
}
