package paging

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/hupe1980/segkit/collection"
	"github.com/hupe1980/segkit/container"
	"github.com/hupe1980/segkit/model"
	"golang.org/x/sync/errgroup"
)

// loadConcurrency bounds parallel page reads.
const loadConcurrency = 8

// Paged is one logical collection over every page of a data type. Each
// page is a def container whose segment holds the records.
type Paged[T any] struct {
	pager    *Pager
	dataType uint32
	def      *container.Definition
	segment  int
	codec    collection.Codec[T]
	ordered  collection.OrderedCodec[T]
	names    container.Names
}

// NewPaged binds a logical collection of plain records. segment is the
// index of the collection segment inside def. Records are appended in
// insertion order; use NewOrderedPaged for key-ordered records.
func NewPaged[T any](pager *Pager, dataType uint32, def *container.Definition, segment int, codec collection.Codec[T]) (*Paged[T], error) {
	if segment < 0 || segment >= def.SegmentCount() {
		return nil, fmt.Errorf("%w: %s has no segment %d", container.ErrInvalidDefinition, def.Name(), segment)
	}
	sd := def.Segment(segment)
	if sd.Kind != container.KindCollection || sd.RecordSize != codec.Size() {
		return nil, fmt.Errorf("%w: %s segment %d is not a %d-byte record collection",
			container.ErrInvalidDefinition, def.Name(), segment, codec.Size())
	}
	return &Paged[T]{pager: pager, dataType: dataType, def: def, segment: segment, codec: codec}, nil
}

// NewOrderedPaged binds a logical collection of key-ordered records. Each
// page is kept sorted, and All merges the pages into ascending key order.
// Records with equal keys keep insertion order.
func NewOrderedPaged[T any](pager *Pager, dataType uint32, def *container.Definition, segment int, codec collection.OrderedCodec[T]) (*Paged[T], error) {
	p, err := NewPaged[T](pager, dataType, def, segment, codec)
	if err != nil {
		return nil, err
	}
	p.ordered = codec
	return p, nil
}

// WithNames labels type mismatches of page buffers.
func (p *Paged[T]) WithNames(names container.Names) *Paged[T] {
	p.names = names
	return p
}

// Pages returns the page metas of this collection in index order.
func (p *Paged[T]) Pages() []PageMeta {
	return p.pager.Pages(p.dataType)
}

func (p *Paged[T]) open(buf []byte) (*collection.Array[T], error) {
	c, err := container.TryLoad(buf, p.def, p.names)
	if err != nil {
		return nil, err
	}
	return container.OpenArray(c, p.segment, p.codec)
}

// put inserts v into the page held by buf.
func (p *Paged[T]) put(buf []byte, v T) error {
	c, err := container.TryLoad(buf, p.def, p.names)
	if err != nil {
		return err
	}
	if p.ordered == nil {
		arr, err := container.OpenArray(c, p.segment, p.codec)
		if err != nil {
			return err
		}
		return arr.TryInsert(v)
	}
	o, err := container.OpenOrdered(c, p.segment, p.ordered)
	if err != nil {
		return err
	}
	_, err = o.TryInsert(v)
	return err
}

// Insert appends v to the last page, creating a new page when it is full
// or none exists. It returns the page that took the record.
func (p *Paged[T]) Insert(ctx context.Context, v T) (PageMeta, error) {
	h := p.pager.Host()

	if pages := p.Pages(); len(pages) > 0 {
		last := pages[len(pages)-1]
		buf, err := h.Read(ctx, last.Key)
		if err != nil {
			return PageMeta{}, err
		}
		err = p.put(buf, v)
		if err == nil {
			return last, h.Persist(ctx, last.Key, buf)
		}
		if !errors.Is(err, collection.ErrCollectionFull) {
			return PageMeta{}, fmt.Errorf("paging: page %d: %w", last.Index, err)
		}
	}

	meta, err := p.pager.CreatePage(ctx, p.dataType, p.def)
	if err != nil {
		return PageMeta{}, err
	}
	buf, err := h.Read(ctx, meta.Key)
	if err != nil {
		return PageMeta{}, err
	}
	if err := p.put(buf, v); err != nil {
		// A fresh page that cannot take one record never will.
		return PageMeta{}, fmt.Errorf("paging: new page %d: %w", meta.Index, err)
	}
	return meta, h.Persist(ctx, meta.Key, buf)
}

// load reads every page concurrently and returns them in page order.
func (p *Paged[T]) load(ctx context.Context) ([]*collection.Array[T], error) {
	pages := p.Pages()
	arrays := make([]*collection.Array[T], len(pages))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, meta := range pages {
		g.Go(func() error {
			buf, err := p.pager.Host().Read(ctx, meta.Key)
			if err != nil {
				return fmt.Errorf("paging: page %d: %w", meta.Index, err)
			}
			arr, err := p.open(buf)
			if err != nil {
				return fmt.Errorf("paging: page %d: %w", meta.Index, err)
			}
			arrays[i] = arr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return arrays, nil
}

// Len returns the total record count across pages.
func (p *Paged[T]) Len(ctx context.Context) (int, error) {
	arrays, err := p.load(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range arrays {
		n += a.Len()
	}
	return n, nil
}

// All loads every page and iterates the records in page order, then slot
// order. Indexes are positions in the logical collection.
func (p *Paged[T]) All(ctx context.Context) (iter.Seq2[int, T], error) {
	arrays, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	if p.ordered != nil {
		return p.merge(arrays), nil
	}
	return func(yield func(int, T) bool) {
		n := 0
		for _, a := range arrays {
			for _, v := range a.All() {
				if !yield(n, v) {
					return
				}
				n++
			}
		}
	}, nil
}

// Values returns every record in page order.
func (p *Paged[T]) Values(ctx context.Context) ([]T, error) {
	all, err := p.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []T
	for _, v := range all {
		out = append(out, v)
	}
	return out, nil
}

// merge iterates sorted pages in ascending key order. On equal keys the
// earlier page wins, which keeps insertion order.
func (p *Paged[T]) merge(arrays []*collection.Array[T]) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		heads := make([]int, len(arrays))
		scratch := make([]byte, p.ordered.Size())
		keyOf := func(v T) model.OrderKey {
			p.ordered.Encode(scratch, v)
			return p.ordered.Key(scratch)
		}
		for n := 0; ; n++ {
			best := -1
			var bestKey model.OrderKey
			for i, a := range arrays {
				if heads[i] >= a.Len() {
					continue
				}
				k := keyOf(a.At(heads[i]))
				if best < 0 || k.Compare(bestKey) < 0 {
					best, bestKey = i, k
				}
			}
			if best < 0 {
				return
			}
			v := arrays[best].At(heads[best])
			heads[best]++
			if !yield(n, v) {
				return
			}
		}
	}
}
