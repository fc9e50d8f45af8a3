package paging

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/segkit/collection"
	"github.com/hupe1980/segkit/container"
	"github.com/hupe1980/segkit/host"
	"github.com/hupe1980/segkit/model"
)

// ErrPageExhausted is returned when every page index of a data type is
// taken.
var ErrPageExhausted = errors.New("paging: page indices exhausted")

// Pager manages the PageMeta array of one owner. It writes only to the
// meta window; persisting the owner buffer is the caller's job. Page
// buffers are allocated and persisted through the host.
type Pager struct {
	metas *collection.Array[PageMeta]
	host  host.Host
	owner model.StorageKey
	seed  []byte
}

// Open binds window, a collection segment of MetaSize records.
func Open(window []byte, h host.Host, owner model.StorageKey, seed []byte) (*Pager, error) {
	metas, err := collection.Open(window, MetaCodec{})
	if err != nil {
		return nil, fmt.Errorf("paging: meta array: %w", err)
	}
	return &Pager{
		metas: metas,
		host:  h,
		owner: owner,
		seed:  append([]byte(nil), seed...),
	}, nil
}

// Owner returns the owner key.
func (p *Pager) Owner() model.StorageKey { return p.owner }

// Host returns the host pages live in.
func (p *Pager) Host() host.Host { return p.host }

// Len returns the number of pages of every data type.
func (p *Pager) Len() int { return p.metas.Len() }

// Capacity returns the number of PageMeta slots.
func (p *Pager) Capacity() int { return p.metas.Capacity() }

// PageKey derives the key of a page.
func (p *Pager) PageKey(dataType, index uint32) model.StorageKey {
	seed := make([]byte, len(p.seed)+4)
	copy(seed, p.seed)
	binary.LittleEndian.PutUint32(seed[len(p.seed):], dataType)
	return model.DeriveKey(p.owner, seed, index)
}

// Pages returns the pages of dataType ordered by index.
func (p *Pager) Pages(dataType uint32) []PageMeta {
	var pages []PageMeta
	for _, m := range p.metas.All() {
		if m.DataType == dataType {
			pages = append(pages, m)
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	return pages
}

// Find returns the lowest-index page of dataType.
func (p *Pager) Find(dataType uint32) (PageMeta, error) {
	pages := p.Pages(dataType)
	if len(pages) == 0 {
		return PageMeta{}, fmt.Errorf("%w: no page of data type %d", collection.ErrEntryNotFound, dataType)
	}
	return pages[0], nil
}

// FindIndex returns the page of dataType with the given index.
func (p *Pager) FindIndex(dataType, index uint32) (PageMeta, error) {
	i := p.slot(dataType, index)
	if i < 0 {
		return PageMeta{}, fmt.Errorf("%w: page %d of data type %d", collection.ErrEntryNotFound, index, dataType)
	}
	return p.metas.At(i), nil
}

func (p *Pager) slot(dataType, index uint32) int {
	return p.metas.IndexFunc(func(m PageMeta) bool {
		return m.DataType == dataType && m.Index == index
	})
}

func (p *Pager) used(dataType uint32) *roaring.Bitmap {
	bm := roaring.New()
	for _, m := range p.metas.All() {
		if m.DataType == dataType {
			bm.Add(m.Index)
		}
	}
	return bm
}

// nextIndex returns the lowest index not in used.
func nextIndex(used *roaring.Bitmap) (uint32, error) {
	if used.IsEmpty() || used.Minimum() > 0 {
		return 0, nil
	}
	// Every index up to Maximum is taken iff the cardinality says so.
	last := used.Maximum()
	if used.GetCardinality() == uint64(last)+1 {
		if last == math.MaxUint32 {
			return 0, ErrPageExhausted
		}
		return last + 1, nil
	}
	free := roaring.Flip(used, 0, uint64(last)+1)
	return free.Minimum(), nil
}

// CreatePage allocates the next page of dataType, formats it as a def
// container, persists it and records its PageMeta. A full meta array fails
// with collection.ErrCollectionFull before the host is touched.
func (p *Pager) CreatePage(ctx context.Context, dataType uint32, def *container.Definition) (PageMeta, error) {
	if p.metas.IsFull() {
		return PageMeta{}, fmt.Errorf("%w: page meta array holds %d pages", collection.ErrCollectionFull, p.metas.Capacity())
	}
	index, err := nextIndex(p.used(dataType))
	if err != nil {
		return PageMeta{}, err
	}

	meta := PageMeta{
		DataType:    dataType,
		HasBacking:  true,
		BackingType: def.Tag(),
		Index:       index,
		Key:         p.PageKey(dataType, index),
	}

	buf, err := p.host.Allocate(ctx, meta.Key, def.InitialDataLen())
	if err != nil {
		return PageMeta{}, fmt.Errorf("paging: allocate page %d: %w", index, err)
	}
	if err := p.format(ctx, meta.Key, buf, def); err != nil {
		return PageMeta{}, p.discard(ctx, meta, err)
	}

	if err := p.metas.TryInsert(meta); err != nil {
		return PageMeta{}, p.discard(ctx, meta, err)
	}
	return meta, nil
}

// discard releases a page whose creation failed with cause. A failed
// release is joined to cause, since the page buffer is then orphaned.
func (p *Pager) discard(ctx context.Context, meta PageMeta, cause error) error {
	if err := p.host.Release(ctx, meta.Key); err != nil {
		return errors.Join(cause, fmt.Errorf("paging: release page %d: %w", meta.Index, err))
	}
	return cause
}

func (p *Pager) format(ctx context.Context, key model.StorageKey, buf []byte, def *container.Definition) error {
	if _, err := container.TryCreate(buf, def); err != nil {
		return fmt.Errorf("paging: format page: %w", err)
	}
	if err := p.host.Persist(ctx, key, buf); err != nil {
		return fmt.Errorf("paging: persist page: %w", err)
	}
	return nil
}

// DropPage releases a page buffer and removes its PageMeta. The relative
// order of the remaining metas is kept.
func (p *Pager) DropPage(ctx context.Context, dataType, index uint32) error {
	i := p.slot(dataType, index)
	if i < 0 {
		return fmt.Errorf("%w: page %d of data type %d", collection.ErrEntryNotFound, index, dataType)
	}
	if err := p.host.Release(ctx, p.metas.At(i).Key); err != nil {
		return err
	}
	return p.metas.TryRemoveAt(i, true)
}
