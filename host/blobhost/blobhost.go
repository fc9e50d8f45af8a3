// Package blobhost stores segkit buffers as blobs.
//
// Every buffer is one blob named after its key (base58) below an optional
// prefix. Blobs are framed: a 12-byte header carries the payload encoding,
// the decoded length and a CRC32C of the decoded bytes, so corruption is
// detected on every read.
//
//	store := blobstore.NewLocalStore(dir)
//	h := blobhost.New(store,
//	    blobhost.WithCompression(blobhost.CompressionZSTD),
//	    blobhost.WithCacheBytes(32<<20),
//	)
//	eng := segkit.New(h)
package blobhost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/hupe1980/segkit/blobstore"
	"github.com/hupe1980/segkit/host"
	"github.com/hupe1980/segkit/internal/cache"
	"github.com/hupe1980/segkit/model"
	"github.com/hupe1980/segkit/resource"
	"golang.org/x/sync/singleflight"
)

// Host implements host.Host on a blobstore.BlobStore.
type Host struct {
	store       blobstore.BlobStore
	prefix      string
	compression Compression
	rc          *resource.Controller
	cache       *cache.LRUBlockCache
	logger      *slog.Logger

	reads singleflight.Group
	fills cache.FillGuard

	mu       sync.Mutex
	reserved map[model.StorageKey]int64
}

var (
	_ host.Host   = (*Host)(nil)
	_ host.Lister = (*Host)(nil)
)

// Option configures a Host.
type Option func(*Host)

// WithCompression selects the payload encoding of written frames. Frames
// of every encoding can always be read.
func WithCompression(c Compression) Option {
	return func(h *Host) { h.compression = c }
}

// WithPrefix stores blobs below prefix.
func WithPrefix(prefix string) Option {
	return func(h *Host) { h.prefix = prefix }
}

// WithCacheBytes keeps up to n bytes of decoded buffers in an LRU cache.
func WithCacheBytes(n int64) Option {
	return func(h *Host) {
		if n > 0 {
			h.cache = cache.NewLRUBlockCache(n, nil)
		}
	}
}

// WithResourceController applies rc's limits. Allocations and growth that
// exceed the memory limit fail with host.ErrGrowthDenied; backend traffic
// is throttled by the IO limits.
func WithResourceController(rc *resource.Controller) Option {
	return func(h *Host) { h.rc = rc }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// New creates a Host on store.
func New(store blobstore.BlobStore, opts ...Option) *Host {
	h := &Host{
		store:    store,
		logger:   slog.New(slog.DiscardHandler),
		reserved: make(map[model.StorageKey]int64),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Host) name(key model.StorageKey) string {
	if h.prefix == "" {
		return key.String()
	}
	return path.Join(h.prefix, key.String())
}

func (h *Host) cacheKey(name string) cache.Key {
	return cache.Key{Kind: cache.KindBuffer, Path: name}
}

// reserve moves key's memory reservation to n bytes.
func (h *Host) reserve(key model.StorageKey, n int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delta := int64(n) - h.reserved[key]
	if delta > 0 && !h.rc.TryAcquireMemory(delta) {
		return fmt.Errorf("%w: %s: %d bytes exceeds memory limit %d (in use %d)",
			host.ErrGrowthDenied, key, n, h.rc.MemoryLimit(), h.rc.MemoryUsage())
	}
	if delta < 0 {
		h.rc.ReleaseMemory(-delta)
	}
	h.reserved[key] = int64(n)
	return nil
}

func (h *Host) unreserve(key model.StorageKey) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rc.ReleaseMemory(h.reserved[key])
	delete(h.reserved, key)
}

func (h *Host) io(ctx context.Context, n int, fn func() error) error {
	if err := h.rc.AcquireSlot(ctx); err != nil {
		return err
	}
	defer h.rc.ReleaseSlot()
	if err := h.rc.AcquireIO(ctx, n); err != nil {
		return err
	}
	return fn()
}

func (h *Host) write(ctx context.Context, key model.StorageKey, buf []byte, ifAbsent bool) error {
	frame, err := encodeFrame(buf, h.compression)
	if err != nil {
		return err
	}
	name := h.name(key)
	err = h.io(ctx, len(frame), func() error {
		if ifAbsent {
			return blobstore.PutIfAbsent(ctx, h.store, name, frame)
		}
		return h.store.Put(ctx, name, frame)
	})
	if err != nil {
		if errors.Is(err, blobstore.ErrExists) {
			return fmt.Errorf("%w: %s", host.ErrExists, key)
		}
		h.logger.ErrorContext(ctx, "blob write failed", "key", key.String(), "error", err)
		return err
	}

	fresh := clone(buf)
	h.fills.Write(name, func() {
		if h.cache != nil {
			h.cache.Set(ctx, h.cacheKey(name), fresh)
		}
	})
	// Later reads must not join a fetch of the previous content.
	h.reads.Forget(name)
	h.logger.DebugContext(ctx, "buffer written", "key", key.String(), "bytes", len(buf), "stored", len(frame))
	return nil
}

// Allocate implements host.Host.
func (h *Host) Allocate(ctx context.Context, key model.StorageKey, initialLen int) ([]byte, error) {
	if initialLen < 0 {
		return nil, fmt.Errorf("blobhost: %s: negative length %d", key, initialLen)
	}
	if !h.rc.TryAcquireMemory(int64(initialLen)) {
		return nil, fmt.Errorf("%w: %s: %d bytes exceeds memory limit %d (in use %d)",
			host.ErrGrowthDenied, key, initialLen, h.rc.MemoryLimit(), h.rc.MemoryUsage())
	}
	buf := make([]byte, initialLen)
	if err := h.write(ctx, key, buf, true); err != nil {
		h.rc.ReleaseMemory(int64(initialLen))
		return nil, err
	}

	h.mu.Lock()
	h.rc.ReleaseMemory(h.reserved[key])
	h.reserved[key] = int64(initialLen)
	h.mu.Unlock()
	return buf, nil
}

// Read implements host.Host. Concurrent reads of one key share a single
// backend fetch.
func (h *Host) Read(ctx context.Context, key model.StorageKey) ([]byte, error) {
	buf, err := h.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return clone(buf), nil
}

// load returns the decoded buffer. The result may be shared.
func (h *Host) load(ctx context.Context, key model.StorageKey) ([]byte, error) {
	name := h.name(key)
	if h.cache != nil {
		if buf, ok := h.cache.Get(ctx, h.cacheKey(name)); ok {
			return buf, nil
		}
	}

	v, err, _ := h.reads.Do(name, func() (any, error) {
		fl := h.fills.Begin(name)
		defer h.fills.End(fl)

		var frame []byte
		err := h.io(ctx, 0, func() error {
			var err error
			frame, err = blobstore.ReadAll(ctx, h.store, name)
			return err
		})
		if err != nil {
			return nil, err
		}
		if err := h.rc.AcquireIO(ctx, len(frame)); err != nil {
			return nil, err
		}
		buf, err := decodeFrame(frame)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if h.cache != nil {
			h.fills.Store(fl, func() { h.cache.Set(ctx, h.cacheKey(name), buf) })
		}
		return buf, nil
	})
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", host.ErrNotFound, key)
		}
		return nil, err
	}
	return v.([]byte), nil
}

// storedLen returns the decoded length of key without decoding the payload
// when it is not cached.
func (h *Host) storedLen(ctx context.Context, key model.StorageKey) (int, error) {
	name := h.name(key)
	if h.cache != nil {
		if buf, ok := h.cache.Get(ctx, h.cacheKey(name)); ok {
			return len(buf), nil
		}
	}

	b, err := h.store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return 0, fmt.Errorf("%w: %s", host.ErrNotFound, key)
		}
		return 0, err
	}
	defer func() { _ = b.Close() }()

	var header [frameHeaderSize]byte
	n, err := b.ReadAt(ctx, header[:], 0)
	if err != nil && !(errors.Is(err, io.EOF) && n == frameHeaderSize) {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%s: %w: truncated header", key, ErrCorruptFrame)
		}
		return 0, err
	}
	return frameLen(header[:])
}

// Resize implements host.Host.
func (h *Host) Resize(ctx context.Context, key model.StorageKey, newLen int) ([]byte, error) {
	if newLen < 0 {
		return nil, fmt.Errorf("blobhost: %s: negative length %d", key, newLen)
	}
	old, err := h.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := h.reserve(key, newLen); err != nil {
		h.logger.WarnContext(ctx, "growth denied", "key", key.String(), "from", len(old), "to", newLen)
		return nil, err
	}

	buf := make([]byte, newLen)
	copy(buf, old)
	if err := h.write(ctx, key, buf, false); err != nil {
		_ = h.reserve(key, len(old))
		return nil, err
	}
	return buf, nil
}

// Persist implements host.Host.
func (h *Host) Persist(ctx context.Context, key model.StorageKey, buf []byte) error {
	n, err := h.storedLen(ctx, key)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("%w: %s: stored %d, got %d", host.ErrLengthMismatch, key, n, len(buf))
	}
	return h.write(ctx, key, buf, false)
}

// Release implements host.Host.
func (h *Host) Release(ctx context.Context, key model.StorageKey) error {
	name := h.name(key)
	if err := h.io(ctx, 0, func() error { return h.store.Delete(ctx, name) }); err != nil {
		return err
	}
	h.fills.Write(name, func() {
		if h.cache != nil {
			h.cache.Invalidate(cache.MatchPath(cache.KindBuffer, name))
		}
	})
	h.reads.Forget(name)
	h.unreserve(key)
	return nil
}

// Keys implements host.Lister. Blobs whose names are not keys are skipped.
func (h *Host) Keys(ctx context.Context) ([]model.StorageKey, error) {
	names, err := h.store.List(ctx, h.prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]model.StorageKey, 0, len(names))
	for _, name := range names {
		rel := strings.TrimPrefix(strings.TrimPrefix(name, h.prefix), "/")
		k, err := model.ParseStorageKey(rel)
		if err != nil {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// CacheStats returns buffer cache hits and misses.
func (h *Host) CacheStats() (hits, misses int64) {
	if h.cache == nil {
		return 0, 0
	}
	return h.cache.Stats()
}

// Close drops the buffer cache.
func (h *Host) Close() error {
	if h.cache != nil {
		return h.cache.Close()
	}
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
