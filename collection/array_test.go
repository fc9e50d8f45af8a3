package collection

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newItems(t *testing.T, capacity int) (*Array[item], []byte) {
	t.Helper()
	size, err := SizeFor(itemCodec{}.Size(), capacity)
	require.NoError(t, err)
	window := make([]byte, size)
	arr, err := Init[item](window, itemCodec{}, capacity)
	require.NoError(t, err)
	return arr, window
}

func TestSizeFor(t *testing.T) {
	got, err := SizeFor(40, 4)
	require.NoError(t, err)
	assert.Equal(t, 8+160, got)

	_, err = SizeFor(0, 4)
	assert.ErrorIs(t, err, ErrInvalidHeader)

	_, err = SizeFor(4, -1)
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestCapacityFor(t *testing.T) {
	assert.Equal(t, 4, CapacityFor(8+160, 40))
	assert.Equal(t, 4, CapacityFor(8+199, 40))
	assert.Equal(t, 0, CapacityFor(4, 40))
	assert.Equal(t, 0, CapacityFor(100, 0))
}

func TestInitWritesHeader(t *testing.T) {
	_, window := newItems(t, 3)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(window[0:]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(window[4:]))
}

func TestInitWindowTooSmall(t *testing.T) {
	window := make([]byte, 8+9)
	_, err := Init[item](window, itemCodec{}, 2)
	assert.ErrorIs(t, err, ErrInvalidHeader)
	assert.Equal(t, make([]byte, 17), window)
}

func TestOpenRejectsCorruptHeader(t *testing.T) {
	_, window := newItems(t, 2)

	binary.LittleEndian.PutUint32(window[0:], 3)
	_, err := Open[item](window, itemCodec{})
	assert.ErrorIs(t, err, ErrInvalidHeader)

	binary.LittleEndian.PutUint32(window[0:], 0)
	binary.LittleEndian.PutUint32(window[4:], 10)
	_, err = Open[item](window, itemCodec{})
	assert.ErrorIs(t, err, ErrInvalidHeader)

	_, err = Open[item](window[:4], itemCodec{})
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestArrayRoundTrip(t *testing.T) {
	arr, window := newItems(t, 4)
	for i := range 4 {
		require.NoError(t, arr.TryInsert(item{Value: uint32(i * 10)}))
	}

	reopened, err := Open[item](window, itemCodec{})
	require.NoError(t, err)
	assert.Equal(t, 4, reopened.Len())

	var got []uint32
	for i, v := range reopened.All() {
		assert.Equal(t, uint32(i*10), v.Value)
		got = append(got, v.Value)
	}
	assert.Equal(t, []uint32{0, 10, 20, 30}, got)
}

func TestArrayCapacityBoundary(t *testing.T) {
	arr, window := newItems(t, 2)
	require.NoError(t, arr.TryInsert(item{Value: 1}))
	require.NoError(t, arr.TryInsert(item{Value: 2}))
	assert.True(t, arr.IsFull())

	before := append([]byte(nil), window...)
	err := arr.TryInsert(item{Value: 3})
	assert.ErrorIs(t, err, ErrCollectionFull)
	assert.Equal(t, before, window)

	_, _, err = arr.TryAllocate(true)
	assert.ErrorIs(t, err, ErrCollectionFull)
}

func TestArrayAccessors(t *testing.T) {
	arr, _ := newItems(t, 3)
	require.NoError(t, arr.TryInsert(item{Value: 7}))

	v, err := arr.Get(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v.Value)

	_, err = arr.Get(1)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.ErrorIs(t, arr.Set(1, item{}), ErrEntryNotFound)

	require.NoError(t, arr.Set(0, item{Value: 9}))
	assert.Equal(t, uint32(9), arr.At(0).Value)

	raw := arr.Raw(0)
	binary.LittleEndian.PutUint32(raw[1:], 11)
	assert.Equal(t, uint32(11), arr.At(0).Value)

	assert.Panics(t, func() { arr.At(1) })
	assert.Panics(t, func() { arr.Raw(-1) })
	assert.Equal(t, 2, arr.Free())
	assert.Equal(t, 0, arr.IndexFunc(func(v item) bool { return v.Value == 11 }))
	assert.Equal(t, -1, arr.IndexFunc(func(v item) bool { return v.Value == 1 }))
}

func TestArrayTryAllocate(t *testing.T) {
	arr, window := newItems(t, 2)
	// Dirty the first slot to check zeroing.
	copy(window[HeaderSize:], []byte{1, 2, 3, 4, 5})

	slot, idx, err := arr.TryAllocate(true)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, make([]byte, 5), slot)
	assert.Len(t, slot, 5)
	assert.Equal(t, 5, cap(slot))

	binary.LittleEndian.PutUint32(slot[1:], 42)
	assert.Equal(t, uint32(42), arr.At(0).Value)
	assert.Equal(t, 1, arr.Len())
}

func TestArrayRemoveAt(t *testing.T) {
	fill := func(t *testing.T) *Array[item] {
		arr, _ := newItems(t, 4)
		for _, v := range []uint32{1, 2, 3, 4} {
			require.NoError(t, arr.TryInsert(item{Value: v}))
		}
		return arr
	}
	values := func(arr *Array[item]) []uint32 {
		var out []uint32
		for _, v := range arr.Values() {
			out = append(out, v.Value)
		}
		return out
	}

	t.Run("preserve order", func(t *testing.T) {
		arr := fill(t)
		require.NoError(t, arr.TryRemoveAt(1, true))
		assert.Equal(t, []uint32{1, 3, 4}, values(arr))
	})

	t.Run("swap remove", func(t *testing.T) {
		arr := fill(t)
		require.NoError(t, arr.TryRemoveAt(0, false))
		assert.Equal(t, []uint32{4, 2, 3}, values(arr))
	})

	t.Run("last", func(t *testing.T) {
		arr := fill(t)
		require.NoError(t, arr.TryRemoveAt(3, false))
		assert.Equal(t, []uint32{1, 2, 3}, values(arr))
	})

	t.Run("out of range", func(t *testing.T) {
		arr := fill(t)
		assert.ErrorIs(t, arr.TryRemoveAt(4, true), ErrEntryNotFound)
		assert.Equal(t, 4, arr.Len())
	})

	t.Run("read only", func(t *testing.T) {
		arr := fill(t)
		require.NoError(t, arr.Set(2, item{Locked: true, Value: 3}))
		assert.ErrorIs(t, arr.TryRemoveAt(2, true), ErrReadOnlyAccessDenied)
		assert.Equal(t, []uint32{1, 2, 3, 4}, values(arr))
	})

	t.Run("freed slot is reusable", func(t *testing.T) {
		arr := fill(t)
		require.NoError(t, arr.TryRemoveAt(0, true))
		require.NoError(t, arr.TryInsert(item{Value: 5}))
		assert.Equal(t, []uint32{2, 3, 4, 5}, values(arr))
	})
}

func TestArrayTruncateAndClear(t *testing.T) {
	arr, _ := newItems(t, 3)
	for _, v := range []uint32{1, 2, 3} {
		require.NoError(t, arr.TryInsert(item{Value: v}))
	}
	arr.Truncate(1)
	assert.Equal(t, 1, arr.Len())
	arr.Truncate(5)
	assert.Equal(t, 1, arr.Len())
	arr.Clear()
	assert.Equal(t, 0, arr.Len())
	assert.Empty(t, arr.Values())
}

func TestArrayExpand(t *testing.T) {
	window := make([]byte, 8+5*6)
	arr, err := Init[item](window, itemCodec{}, 2)
	require.NoError(t, err)
	require.NoError(t, arr.TryInsert(item{Value: 1}))

	assert.Equal(t, 6, arr.Expand())
	assert.Equal(t, 6, arr.Capacity())
	assert.Equal(t, 1, arr.Len())

	// Never shrinks.
	shrunk, err := Open[item](window, itemCodec{})
	require.NoError(t, err)
	assert.Equal(t, 6, shrunk.Expand())
}

func TestRawCodec(t *testing.T) {
	c := RawCodec(4)
	window := make([]byte, 8+8)
	arr, err := Init[[]byte](window, c, 2)
	require.NoError(t, err)

	require.NoError(t, arr.TryInsert([]byte{1, 2}))
	assert.Equal(t, []byte{1, 2, 0, 0}, arr.At(0))

	got := arr.At(0)
	got[0] = 9
	assert.Equal(t, byte(1), arr.Raw(0)[0])
}
