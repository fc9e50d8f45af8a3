package field

import (
	"testing"

	"github.com/hupe1980/segkit/model"
	"github.com/stretchr/testify/assert"
)

func TestAccessors_Unaligned(t *testing.T) {
	// Offset 1 puts every multi-byte field on an odd address.
	buf := make([]byte, 1+1+2+4+8+32+5)
	meta := buf[1:]

	flag := NewBool("flag", 0)
	small := NewU16("small", 1)
	mid := NewU32("mid", 3)
	big := NewU64("big", 7)
	owner := NewKey("owner", 15)
	tail := NewBytes("tail", 47, 5)

	flag.Set(meta, true)
	small.Set(meta, 0xBEEF)
	mid.Set(meta, 0xDEADBEEF)
	big.Set(meta, 0x0102030405060708)
	key := model.DeriveKey(model.ZeroKey, []byte("k"), 0)
	owner.Set(meta, key)
	tail.Set(meta, []byte("ab"))

	assert.True(t, flag.Get(meta))
	assert.Equal(t, uint16(0xBEEF), small.Get(meta))
	assert.Equal(t, uint32(0xDEADBEEF), mid.Get(meta))
	assert.Equal(t, uint64(0x0102030405060708), big.Get(meta))
	assert.Equal(t, key, owner.Get(meta))
	assert.Equal(t, []byte{'a', 'b', 0, 0, 0}, tail.Get(meta))

	// little-endian on the wire
	assert.Equal(t, []byte{0xEF, 0xBE}, meta[1:3])
	assert.Equal(t, byte(0x08), meta[7])
}

func TestU64_Add(t *testing.T) {
	b := make([]byte, 8)
	f := NewU64("n", 0)
	assert.Equal(t, uint64(2), f.Add(b, 2))
	assert.Equal(t, uint64(5), f.Add(b, 3))
}

func TestBytes_SetTruncates(t *testing.T) {
	b := []byte{9, 9, 9, 9}
	f := NewBytes("x", 1, 2)
	f.Set(b, []byte{1, 2, 3})
	assert.Equal(t, []byte{9, 1, 2, 9}, b)
}

func TestField_Interface(t *testing.T) {
	fields := []Field{NewU8("a", 0), NewU32("b", 1), NewKey("c", 5), NewBytes("d", 37, 3)}
	sizes := []int{1, 4, 32, 3}
	for i, f := range fields {
		assert.Equal(t, sizes[i], f.Size(), f.Name())
	}
	assert.Equal(t, 37, fields[3].Offset())
}
