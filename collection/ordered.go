package collection

import (
	"fmt"
	"iter"
	"sort"

	"github.com/hupe1980/segkit/model"
)

// Ordered keeps records sorted by their OrderKey. Records with equal keys
// keep insertion order among themselves.
type Ordered[T any] struct {
	arr   *Array[T]
	keyed Keyed
}

// OpenOrdered binds an already formatted ordered collection segment. The
// stored order is trusted; use CheckOrder to verify it.
func OpenOrdered[T any](window []byte, codec OrderedCodec[T]) (*Ordered[T], error) {
	arr, err := Open[T](window, codec)
	if err != nil {
		return nil, err
	}
	return &Ordered[T]{arr: arr, keyed: codec}, nil
}

// InitOrdered formats window as an empty ordered collection.
func InitOrdered[T any](window []byte, codec OrderedCodec[T], capacity int) (*Ordered[T], error) {
	arr, err := Init[T](window, codec, capacity)
	if err != nil {
		return nil, err
	}
	return &Ordered[T]{arr: arr, keyed: codec}, nil
}

// Array exposes the underlying record array. Writing through it can break
// the sort order.
func (o *Ordered[T]) Array() *Array[T] { return o.arr }

// Len returns the number of stored records.
func (o *Ordered[T]) Len() int { return o.arr.Len() }

// Capacity returns the number of record slots.
func (o *Ordered[T]) Capacity() int { return o.arr.Capacity() }

// At decodes record i. It panics if i is out of range.
func (o *Ordered[T]) At(i int) T { return o.arr.At(i) }

// Get decodes record i.
func (o *Ordered[T]) Get(i int) (T, error) { return o.arr.Get(i) }

// All iterates records in ascending key order.
func (o *Ordered[T]) All() iter.Seq2[int, T] { return o.arr.All() }

// Expand grows capacity to what the window holds.
func (o *Ordered[T]) Expand() int { return o.arr.Expand() }

// KeyAt returns the key of record i. It panics if i is out of range.
func (o *Ordered[T]) KeyAt(i int) model.OrderKey {
	o.arr.mustIndex(i)
	return o.keyed.Key(o.arr.slot(i))
}

func (o *Ordered[T]) key(i int) model.OrderKey {
	return o.keyed.Key(o.arr.slot(i))
}

// lowerBound returns the first index whose key is >= k.
func (o *Ordered[T]) lowerBound(k model.OrderKey) int {
	return sort.Search(o.arr.Len(), func(i int) bool {
		return o.key(i).Compare(k) >= 0
	})
}

// upperBound returns the first index whose key is > k.
func (o *Ordered[T]) upperBound(k model.OrderKey) int {
	return sort.Search(o.arr.Len(), func(i int) bool {
		return o.key(i).Compare(k) > 0
	})
}

// TryInsert places v after every record whose key is <= its own and
// returns the index it landed at.
func (o *Ordered[T]) TryInsert(v T) (int, error) {
	n, capacity := o.arr.Len(), o.arr.Capacity()
	if n >= capacity {
		return 0, fmt.Errorf("%w: capacity %d", ErrCollectionFull, capacity)
	}

	size := o.arr.size
	scratch := make([]byte, size)
	o.arr.codec.Encode(scratch, v)
	pos := o.upperBound(o.keyed.Key(scratch))

	start := HeaderSize + pos*size
	end := HeaderSize + n*size
	copy(o.arr.window[start+size:end+size], o.arr.window[start:end])
	copy(o.arr.window[start:start+size], scratch)
	o.arr.setLen(n + 1)
	return pos, nil
}

// Between returns the index range [start, end) of records whose keys lie in
// the closed interval [lo, hi]. The range is empty when lo > hi.
func (o *Ordered[T]) Between(lo, hi model.OrderKey) (start, end int) {
	if lo.Compare(hi) > 0 {
		return 0, 0
	}
	start = o.lowerBound(lo)
	end = o.upperBound(hi)
	if end < start {
		end = start
	}
	return start, end
}

// Range iterates records whose keys lie in [lo, hi] in ascending order.
func (o *Ordered[T]) Range(lo, hi model.OrderKey) iter.Seq2[int, T] {
	start, end := o.Between(lo, hi)
	return o.span(start, end)
}

// Since iterates every record with a timestamp >= ts.
func (o *Ordered[T]) Since(ts uint64) iter.Seq2[int, T] {
	return o.span(o.lowerBound(model.MinOrderKey(ts)), o.arr.Len())
}

// Latest returns up to n records with the highest keys, highest first.
func (o *Ordered[T]) Latest(n int) []T {
	count := o.arr.Len()
	if n > count {
		n = count
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, 0, n)
	for i := count - 1; i >= count-n; i-- {
		out = append(out, o.arr.codec.Decode(o.arr.slot(i)))
	}
	return out
}

func (o *Ordered[T]) span(start, end int) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := start; i < end && i < o.arr.Len(); i++ {
			if !yield(i, o.arr.codec.Decode(o.arr.slot(i))) {
				return
			}
		}
	}
}

// Find returns the index of the first record with exactly key k.
func (o *Ordered[T]) Find(k model.OrderKey) (int, error) {
	i := o.lowerBound(k)
	if i < o.arr.Len() && o.key(i).Compare(k) == 0 {
		return i, nil
	}
	return -1, fmt.Errorf("%w: key %s", ErrEntryNotFound, k)
}

// TryRemoveAt removes record i, keeping the rest in order.
func (o *Ordered[T]) TryRemoveAt(i int) error {
	return o.arr.TryRemoveAt(i, true)
}

// TryRemoveKey removes the first record with exactly key k.
func (o *Ordered[T]) TryRemoveKey(k model.OrderKey) error {
	i, err := o.Find(k)
	if err != nil {
		return err
	}
	return o.arr.TryRemoveAt(i, true)
}

// CheckOrder verifies that keys never decrease.
func (o *Ordered[T]) CheckOrder() error {
	for i := 1; i < o.arr.Len(); i++ {
		if o.key(i-1).Compare(o.key(i)) > 0 {
			return fmt.Errorf("%w: index %d", ErrOrderViolated, i)
		}
	}
	return nil
}
