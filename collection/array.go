package collection

import (
	"encoding/binary"
	"fmt"
	"iter"
)

// Array is a growable sequence of fixed-size records stored in a segment.
type Array[T any] struct {
	window []byte
	codec  Codec[T]
	size   int
}

// Open binds an already formatted collection segment.
func Open[T any](window []byte, codec Codec[T]) (*Array[T], error) {
	size := codec.Size()
	if err := validateHeader(window, size); err != nil {
		return nil, err
	}
	return &Array[T]{window: window, codec: codec, size: size}, nil
}

// Init formats window as an empty collection with the given capacity and
// binds it.
func Init[T any](window []byte, codec Codec[T], capacity int) (*Array[T], error) {
	if err := InitHeader(window, codec.Size(), capacity); err != nil {
		return nil, err
	}
	return Open(window, codec)
}

// Len returns the number of stored records.
func (a *Array[T]) Len() int {
	return int(binary.LittleEndian.Uint32(a.window[countOff:]))
}

// Capacity returns the number of record slots.
func (a *Array[T]) Capacity() int {
	return int(binary.LittleEndian.Uint32(a.window[capacityOff:]))
}

// Free returns the number of unused slots.
func (a *Array[T]) Free() int {
	return a.Capacity() - a.Len()
}

// IsFull reports whether the next insert would fail.
func (a *Array[T]) IsFull() bool {
	return a.Len() >= a.Capacity()
}

// RecordSize returns the width of one record slot.
func (a *Array[T]) RecordSize() int {
	return a.size
}

func (a *Array[T]) setLen(n int) {
	binary.LittleEndian.PutUint32(a.window[countOff:], uint32(n))
}

func (a *Array[T]) slot(i int) []byte {
	off := HeaderSize + i*a.size
	return a.window[off : off+a.size : off+a.size]
}

func (a *Array[T]) mustIndex(i int) {
	if n := a.Len(); i < 0 || i >= n {
		panic(fmt.Sprintf("collection: index %d out of range [0,%d)", i, n))
	}
}

func (a *Array[T]) checkIndex(i int) error {
	if n := a.Len(); i < 0 || i >= n {
		return fmt.Errorf("%w: index %d, len %d", ErrEntryNotFound, i, n)
	}
	return nil
}

// At decodes record i. It panics if i is out of range.
func (a *Array[T]) At(i int) T {
	a.mustIndex(i)
	return a.codec.Decode(a.slot(i))
}

// Raw returns the mutable bytes of record i. It panics if i is out of range.
func (a *Array[T]) Raw(i int) []byte {
	a.mustIndex(i)
	return a.slot(i)
}

// Get decodes record i.
func (a *Array[T]) Get(i int) (T, error) {
	if err := a.checkIndex(i); err != nil {
		var zero T
		return zero, err
	}
	return a.codec.Decode(a.slot(i)), nil
}

// Set overwrites record i.
func (a *Array[T]) Set(i int, v T) error {
	if err := a.checkIndex(i); err != nil {
		return err
	}
	a.codec.Encode(a.slot(i), v)
	return nil
}

// All iterates records in slot order.
func (a *Array[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < a.Len(); i++ {
			if !yield(i, a.codec.Decode(a.slot(i))) {
				return
			}
		}
	}
}

// Values returns every record in slot order.
func (a *Array[T]) Values() []T {
	out := make([]T, 0, a.Len())
	for _, v := range a.All() {
		out = append(out, v)
	}
	return out
}

// IndexFunc returns the index of the first record satisfying fn, or -1.
func (a *Array[T]) IndexFunc(fn func(T) bool) int {
	for i, v := range a.All() {
		if fn(v) {
			return i
		}
	}
	return -1
}

// TryInsert appends v.
func (a *Array[T]) TryInsert(v T) error {
	slot, _, err := a.TryAllocate(false)
	if err != nil {
		return err
	}
	a.codec.Encode(slot, v)
	return nil
}

// TryAllocate reserves the next slot and returns its bytes and index. The
// caller fills the slot in place. With zeroed the slot is cleared first;
// otherwise it keeps whatever bytes it last held.
func (a *Array[T]) TryAllocate(zeroed bool) ([]byte, int, error) {
	n, capacity := a.Len(), a.Capacity()
	if n >= capacity {
		return nil, 0, fmt.Errorf("%w: capacity %d", ErrCollectionFull, capacity)
	}
	slot := a.slot(n)
	if zeroed {
		clear(slot)
	}
	a.setLen(n + 1)
	return slot, n, nil
}

// TryRemoveAt removes record i. With preserveOrder the following records
// shift down one slot; otherwise the last record moves into slot i.
func (a *Array[T]) TryRemoveAt(i int, preserveOrder bool) error {
	if err := a.checkIndex(i); err != nil {
		return err
	}
	if m, ok := a.codec.(ReadOnlyMarker); ok && m.ReadOnly(a.slot(i)) {
		return fmt.Errorf("%w: record %d", ErrReadOnlyAccessDenied, i)
	}

	last := a.Len() - 1
	if i != last {
		if preserveOrder {
			start := HeaderSize + i*a.size
			copy(a.window[start:HeaderSize+last*a.size], a.window[start+a.size:HeaderSize+(last+1)*a.size])
		} else {
			copy(a.slot(i), a.slot(last))
		}
	}
	clear(a.slot(last))
	a.setLen(last)
	return nil
}

// Truncate drops every record past n.
func (a *Array[T]) Truncate(n int) {
	count := a.Len()
	if n < 0 {
		n = 0
	}
	if n >= count {
		return
	}
	clear(a.window[HeaderSize+n*a.size : HeaderSize+count*a.size])
	a.setLen(n)
}

// Clear removes every record.
func (a *Array[T]) Clear() {
	a.Truncate(0)
}

// Expand raises capacity to the number of slots the window can hold and
// returns the new capacity. Capacity never shrinks. It is used after a flex
// segment grew.
func (a *Array[T]) Expand() int {
	n, err := ExpandHeader(a.window, a.size)
	if err != nil {
		return a.Capacity()
	}
	return n
}
