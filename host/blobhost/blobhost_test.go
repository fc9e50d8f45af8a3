package blobhost

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/segkit/blobstore"
	"github.com/hupe1980/segkit/host"
	"github.com/hupe1980/segkit/host/hosttest"
	"github.com/hupe1980/segkit/internal/cache"
	"github.com/hupe1980/segkit/model"
	"github.com/hupe1980/segkit/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHost_Conformance(t *testing.T) {
	for name, opts := range map[string][]Option{
		"plain":  nil,
		"lz4":    {WithCompression(CompressionLZ4)},
		"zstd":   {WithCompression(CompressionZSTD), WithCacheBytes(1 << 20)},
		"prefix": {WithPrefix("accounts")},
	} {
		t.Run(name, func(t *testing.T) {
			hosttest.Run(t, func(*testing.T) host.Host {
				return New(blobstore.NewMemoryStore(), opts...)
			})
		})
	}
}

func TestHost_LocalStore(t *testing.T) {
	hosttest.Run(t, func(t *testing.T) host.Host {
		return New(blobstore.NewLocalStore(t.TempDir()), WithCompression(CompressionZSTD))
	})
}

func TestHost_CachingStore(t *testing.T) {
	hosttest.Run(t, func(t *testing.T) host.Host {
		blocks := cache.NewLRUBlockCache(1<<20, nil)
		t.Cleanup(func() { _ = blocks.Close() })
		return New(blobstore.NewCachingStore(blobstore.NewMemoryStore(), blocks, 64), WithCompression(CompressionLZ4))
	})
}

func TestHost_StoredFrames(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	h := New(store, WithPrefix("acct"), WithCompression(CompressionZSTD))
	key := hosttest.Key("framed")

	buf, err := h.Allocate(ctx, key, 4096)
	require.NoError(t, err)
	copy(buf, "header")
	require.NoError(t, h.Persist(ctx, key, buf))

	names, err := store.List(ctx, "acct")
	require.NoError(t, err)
	require.Equal(t, []string{"acct/" + key.String()}, names)

	frame, err := blobstore.ReadAll(ctx, store, names[0])
	require.NoError(t, err)
	assert.Equal(t, byte(CompressionZSTD), frame[0])
	assert.Less(t, len(frame), 4096)

	keys, err := h.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{key.String()}, []string{keys[0].String()})
}

func TestHost_DetectsCorruption(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	h := New(store)
	key := hosttest.Key("corrupt")

	_, err := h.Allocate(ctx, key, 32)
	require.NoError(t, err)

	frame, err := blobstore.ReadAll(ctx, store, key.String())
	require.NoError(t, err)
	frame[len(frame)-1] = 0x42
	require.NoError(t, store.Put(ctx, key.String(), frame))

	_, err = h.Read(ctx, key)
	assert.ErrorIs(t, err, ErrCorruptFrame)
}

func TestHost_MemoryLimit(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 100})
	h := New(blobstore.NewMemoryStore(), WithResourceController(rc))

	a, b := hosttest.Key("a"), hosttest.Key("b")
	_, err := h.Allocate(ctx, a, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(60), rc.MemoryUsage())

	_, err = h.Allocate(ctx, b, 50)
	assert.ErrorIs(t, err, host.ErrGrowthDenied)
	assert.Equal(t, int64(60), rc.MemoryUsage())

	_, err = h.Resize(ctx, a, 101)
	assert.ErrorIs(t, err, host.ErrGrowthDenied)

	grown, err := h.Resize(ctx, a, 100)
	require.NoError(t, err)
	assert.Len(t, grown, 100)
	assert.Equal(t, int64(100), rc.MemoryUsage())

	_, err = h.Resize(ctx, a, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(40), rc.MemoryUsage())

	_, err = h.Allocate(ctx, b, 60)
	require.NoError(t, err)

	require.NoError(t, h.Release(ctx, a))
	require.NoError(t, h.Release(ctx, b))
	assert.Zero(t, rc.MemoryUsage())
}

func TestHost_DuplicateAllocateKeepsReservation(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 100})
	h := New(blobstore.NewMemoryStore(), WithResourceController(rc))
	key := hosttest.Key("dup")

	_, err := h.Allocate(ctx, key, 30)
	require.NoError(t, err)
	_, err = h.Allocate(ctx, key, 30)
	assert.ErrorIs(t, err, host.ErrExists)
	assert.Equal(t, int64(30), rc.MemoryUsage())
}

func TestHost_CacheServesReads(t *testing.T) {
	ctx := context.Background()
	h := New(blobstore.NewMemoryStore(), WithCacheBytes(1<<20))
	defer h.Close()
	key := hosttest.Key("cached")

	buf, err := h.Allocate(ctx, key, 64)
	require.NoError(t, err)
	buf[0] = 7
	require.NoError(t, h.Persist(ctx, key, buf))

	for range 3 {
		got, err := h.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, byte(7), got[0])
		got[0] = 0 // callers own their copy
	}
	hits, _ := h.CacheStats()
	assert.GreaterOrEqual(t, hits, int64(3))

	require.NoError(t, h.Release(ctx, key))
	_, err = h.Read(ctx, key)
	assert.ErrorIs(t, err, host.ErrNotFound)
}

func TestHost_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	h := New(blobstore.NewMemoryStore(), WithCompression(CompressionLZ4))
	key := hosttest.Key("shared")

	buf, err := h.Allocate(ctx, key, 2048)
	require.NoError(t, err)
	copy(buf, bytes.Repeat([]byte("x"), 2048))
	require.NoError(t, h.Persist(ctx, key, buf))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := h.Read(ctx, key)
			if assert.NoError(t, err) {
				assert.Equal(t, buf, got)
			}
		}()
	}
	wg.Wait()
}

func TestHost_IOLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1, MaxConcurrentIO: 1})
	h := New(blobstore.NewMemoryStore(), WithResourceController(rc))

	cancel()
	_, err := h.Allocate(ctx, hosttest.Key("slow"), 1024)
	assert.Error(t, err)
}

// gatedStore holds the first armed Open after it took its snapshot until
// proceed is closed.
type gatedStore struct {
	*blobstore.MemoryStore
	armed   atomic.Bool
	opened  chan struct{}
	proceed chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		MemoryStore: blobstore.NewMemoryStore(),
		opened:      make(chan struct{}),
		proceed:     make(chan struct{}),
	}
}

func (g *gatedStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	b, err := g.MemoryStore.Open(ctx, name)
	if g.armed.CompareAndSwap(true, false) {
		close(g.opened)
		<-g.proceed
	}
	return b, err
}

func seedBuffer(t *testing.T, store blobstore.BlobStore, content string) model.StorageKey {
	t.Helper()
	ctx := context.Background()
	key := hosttest.Key(t.Name())
	seed := New(store)
	buf, err := seed.Allocate(ctx, key, len(content))
	require.NoError(t, err)
	copy(buf, content)
	require.NoError(t, seed.Persist(ctx, key, buf))
	return key
}

func TestHost_PersistDuringCacheMiss(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	key := seedBuffer(t, store, "old-old!")
	h := New(store, WithCacheBytes(1<<20))
	defer h.Close()

	store.armed.Store(true)
	done := make(chan []byte)
	go func() {
		got, err := h.Read(ctx, key)
		assert.NoError(t, err)
		done <- got
	}()
	<-store.opened

	require.NoError(t, h.Persist(ctx, key, []byte("new-new!")))
	close(store.proceed)
	<-done

	got, err := h.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "new-new!", string(got))
	assert.Zero(t, h.fills.Pending())
}

func TestHost_ReleaseDuringCacheMiss(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	key := seedBuffer(t, store, "released")
	h := New(store, WithCacheBytes(1<<20))
	defer h.Close()

	store.armed.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.Read(ctx, key)
	}()
	<-store.opened

	require.NoError(t, h.Release(ctx, key))
	close(store.proceed)
	<-done

	_, err := h.Read(ctx, key)
	assert.ErrorIs(t, err, host.ErrNotFound)
}

func TestHost_PersistDuringUncachedRead(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	key := seedBuffer(t, store, "old-old!")
	h := New(store)

	store.armed.Store(true)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.Read(ctx, key)
	}()
	<-store.opened

	require.NoError(t, h.Persist(ctx, key, []byte("new-new!")))
	// Reads issued after Persist returned must not join the earlier fetch.
	got := make(chan []byte)
	go func() {
		b, err := h.Read(ctx, key)
		assert.NoError(t, err)
		got <- b
	}()
	assert.Equal(t, "new-new!", string(<-got))

	close(store.proceed)
	<-done
}
