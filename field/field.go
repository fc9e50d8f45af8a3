package field

import (
	"encoding/binary"

	"github.com/hupe1980/segkit/model"
)

// Field describes the position of a value inside a packed record.
type Field interface {
	Name() string
	Offset() int
	Size() int
}

type base struct {
	name string
	off  int
}

func (b base) Name() string { return b.name }
func (b base) Offset() int  { return b.off }

// U8 accesses a single byte.
type U8 struct{ base }

// NewU8 returns a U8 accessor at off.
func NewU8(name string, off int) U8 { return U8{base{name, off}} }

func (U8) Size() int { return 1 }

func (f U8) Get(b []byte) uint8    { return b[f.off] }
func (f U8) Set(b []byte, v uint8) { b[f.off] = v }

// Bool accesses a byte interpreted as zero/non-zero.
type Bool struct{ base }

// NewBool returns a Bool accessor at off.
func NewBool(name string, off int) Bool { return Bool{base{name, off}} }

func (Bool) Size() int { return 1 }

func (f Bool) Get(b []byte) bool { return b[f.off] != 0 }

func (f Bool) Set(b []byte, v bool) {
	if v {
		b[f.off] = 1
		return
	}
	b[f.off] = 0
}

// U16 accesses a little-endian uint16.
type U16 struct{ base }

// NewU16 returns a U16 accessor at off.
func NewU16(name string, off int) U16 { return U16{base{name, off}} }

func (U16) Size() int { return 2 }

func (f U16) Get(b []byte) uint16 { return binary.LittleEndian.Uint16(b[f.off:]) }
func (f U16) Set(b []byte, v uint16) {
	binary.LittleEndian.PutUint16(b[f.off:], v)
}

// U32 accesses a little-endian uint32.
type U32 struct{ base }

// NewU32 returns a U32 accessor at off.
func NewU32(name string, off int) U32 { return U32{base{name, off}} }

func (U32) Size() int { return 4 }

func (f U32) Get(b []byte) uint32 { return binary.LittleEndian.Uint32(b[f.off:]) }
func (f U32) Set(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b[f.off:], v)
}

// U64 accesses a little-endian uint64.
type U64 struct{ base }

// NewU64 returns a U64 accessor at off.
func NewU64(name string, off int) U64 { return U64{base{name, off}} }

func (U64) Size() int { return 8 }

func (f U64) Get(b []byte) uint64 { return binary.LittleEndian.Uint64(b[f.off:]) }
func (f U64) Set(b []byte, v uint64) {
	binary.LittleEndian.PutUint64(b[f.off:], v)
}

// Add increments the stored value by delta and returns the new value.
func (f U64) Add(b []byte, delta uint64) uint64 {
	v := f.Get(b) + delta
	f.Set(b, v)
	return v
}

// Key accesses a 32-byte storage key.
type Key struct{ base }

// NewKey returns a Key accessor at off.
func NewKey(name string, off int) Key { return Key{base{name, off}} }

func (Key) Size() int { return model.KeySize }

func (f Key) Get(b []byte) model.StorageKey {
	var k model.StorageKey
	copy(k[:], b[f.off:f.off+model.KeySize])
	return k
}

func (f Key) Set(b []byte, k model.StorageKey) {
	copy(b[f.off:f.off+model.KeySize], k[:])
}

// Bytes accesses a fixed-width raw byte run.
type Bytes struct {
	base
	n int
}

// NewBytes returns a Bytes accessor of n bytes at off.
func NewBytes(name string, off, n int) Bytes { return Bytes{base{name, off}, n} }

func (f Bytes) Size() int { return f.n }

// Get returns a window onto the field. The window aliases b.
func (f Bytes) Get(b []byte) []byte {
	end := f.off + f.n
	return b[f.off:end:end]
}

// Set copies v into the field, zero-filling any remainder.
func (f Bytes) Set(b []byte, v []byte) {
	dst := f.Get(b)
	n := copy(dst, v)
	clear(dst[n:])
}
