package blobstore

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/hupe1980/segkit/internal/cache"
	"golang.org/x/sync/errgroup"
)

// DefaultBlockSize is the CachingStore block size when none is given.
const DefaultBlockSize = 4096

// CachingStore wraps a BlobStore with a read-through block cache. Writes
// and deletes invalidate every cached block of the blob.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	blockSize int64
	fills     cache.FillGuard
}

var (
	_ BlobStore         = (*CachingStore)(nil)
	_ ConditionalPutter = (*CachingStore)(nil)
)

// NewCachingStore wraps inner. blockSize <= 0 selects DefaultBlockSize.
func NewCachingStore(inner BlobStore, c cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &CachingStore{inner: inner, cache: c, blockSize: blockSize}
}

// Open opens the inner blob and serves reads through the cache.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	// The handle's content is fixed at Open; a later write makes its fills stale.
	fl := s.fills.Begin(name)
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		s.fills.End(fl)
		return nil, err
	}
	return &cachingBlob{inner: b, cache: s.cache, fills: &s.fills, fill: fl, name: name, blockSize: s.blockSize}, nil
}

// Put writes through and invalidates the blob's blocks.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	err := s.inner.Put(ctx, name, data)
	s.invalidate(name)
	return err
}

// PutIfAbsent forwards to the inner store.
func (s *CachingStore) PutIfAbsent(ctx context.Context, name string, data []byte) error {
	err := PutIfAbsent(ctx, s.inner, name, data)
	if err == nil {
		s.invalidate(name)
	}
	return err
}

// Delete removes the blob and its cached blocks.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	err := s.inner.Delete(ctx, name)
	s.invalidate(name)
	return err
}

// List forwards to the inner store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// invalidate drops the blob's blocks and every fill still reading the
// previous content.
func (s *CachingStore) invalidate(name string) {
	s.fills.Write(name, func() {
		s.cache.Invalidate(cache.MatchPath(cache.KindBlock, name))
	})
}

type cachingBlob struct {
	inner     Blob
	cache     cache.BlockCache
	fills     *cache.FillGuard
	fill      cache.Fill
	closed    atomic.Bool
	name      string
	blockSize int64
}

func (b *cachingBlob) Close() error {
	if !b.closed.Swap(true) {
		b.fills.End(b.fill)
	}
	return b.inner.Close()
}

func (b *cachingBlob) Size() int64 { return b.inner.Size() }

func (b *cachingBlob) key(blk int64) cache.Key {
	return cache.Key{Kind: cache.KindBlock, Path: b.name, Offset: uint64(blk)}
}

func (b *cachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if b.fills.Stale(b.fill) {
		// The blob changed since Open; cached blocks belong to newer content.
		return b.inner.ReadAt(ctx, p, off)
	}
	size := b.Size()
	if off >= size {
		return 0, io.EOF
	}

	want := p
	if rest := size - off; int64(len(want)) > rest {
		want = want[:rest]
	}
	startBlock := off / b.blockSize
	endBlock := (off + int64(len(want)) - 1) / b.blockSize

	if err := b.fillCache(ctx, startBlock, endBlock); err != nil {
		return 0, err
	}

	total := 0
	for blk := startBlock; blk <= endBlock; blk++ {
		blkStart := blk * b.blockSize
		lo := max(blkStart, off)
		hi := min(blkStart+b.blockSize, off+int64(len(want)))

		data, err := b.fetchBlock(ctx, blk)
		if err != nil {
			return total, err
		}
		src := lo - blkStart
		if src >= int64(len(data)) {
			break
		}
		n := copy(want[lo-off:hi-off], data[src:])
		total += n
	}

	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

// fillCache loads every missing block in [startBlock, endBlock], one inner
// read per contiguous run of misses.
func (b *cachingBlob) fillCache(ctx context.Context, startBlock, endBlock int64) error {
	type run struct{ start, count int64 }
	var missing []run
	for blk := startBlock; blk <= endBlock; blk++ {
		if _, ok := b.cache.Get(ctx, b.key(blk)); ok {
			continue
		}
		if n := len(missing); n > 0 && missing[n-1].start+missing[n-1].count == blk {
			missing[n-1].count++
		} else {
			missing = append(missing, run{blk, 1})
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	size := b.Size()
	for _, r := range missing {
		g.Go(func() error {
			start := r.start * b.blockSize
			length := min(r.count*b.blockSize, size-start)
			if length <= 0 {
				return nil
			}
			buf := make([]byte, length)
			n, err := b.inner.ReadAt(ctx, buf, start)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			buf = buf[:n]
			for i := int64(0); i < r.count; i++ {
				lo := i * b.blockSize
				if lo >= int64(len(buf)) {
					break
				}
				hi := min(lo+b.blockSize, int64(len(buf)))
				// Copy so one cached block does not pin the whole run.
				blk := append([]byte(nil), buf[lo:hi]...)
				if !b.fills.Store(b.fill, func() { b.cache.Set(ctx, b.key(r.start+i), blk) }) {
					return nil
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// fetchBlock returns block blk, reading it directly when the cache declined
// to keep it.
func (b *cachingBlob) fetchBlock(ctx context.Context, blk int64) ([]byte, error) {
	if data, ok := b.cache.Get(ctx, b.key(blk)); ok {
		return data, nil
	}
	buf := make([]byte, b.blockSize)
	n, err := b.inner.ReadAt(ctx, buf, blk*b.blockSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}
