package segkit

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/hupe1980/segkit/collection"
	"github.com/hupe1980/segkit/container"
	"github.com/hupe1980/segkit/host"
	"github.com/hupe1980/segkit/model"
	"github.com/hupe1980/segkit/paging"
	"github.com/hupe1980/segkit/proxy"
	"github.com/hupe1980/segkit/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type u64Codec struct{}

func (u64Codec) Size() int                   { return 8 }
func (u64Codec) Encode(dst []byte, v uint64) { binary.LittleEndian.PutUint64(dst, v) }
func (u64Codec) Decode(src []byte) uint64    { return binary.LittleEndian.Uint64(src) }

var (
	accountSchema = schema.New("account", 0x54434341)
	balance       = accountSchema.MetaU64("balance")
	history       = accountSchema.FlexCollection("history", 8, 2)
	accountDef    = accountSchema.MustBuild()

	fixedSchema = schema.New("fixed", 0x44584946)
	fixedPages  = fixedSchema.Collection("pages", paging.MetaSize, 4)
	fixedDef    = fixedSchema.MustBuild()

	pageDef = schema.New("page", 0x45474150).MustBuild()
)

func key(name string) model.StorageKey {
	return model.DeriveKey(model.ZeroKey, []byte("segkit-test/"+name), 0)
}

func newEngine(t *testing.T, opts ...Option) (*Engine, *host.Memory) {
	t.Helper()
	h := host.NewMemory()
	return New(h, opts...), h
}

func TestEngine_CreateViewUpdate(t *testing.T) {
	ctx := context.Background()
	eng, h := newEngine(t)
	k := key("account")

	require.NoError(t, eng.Create(ctx, k, accountDef, 0))
	assert.Equal(t, 1, h.Len())

	name, ok := eng.Registry().Lookup(accountDef.Tag())
	assert.True(t, ok)
	assert.Equal(t, "account", name)

	require.NoError(t, eng.Update(ctx, k, accountDef, func(c *container.Container) error {
		balance.Set(c.Meta(), 42)
		log, err := container.OpenArray(c, history.Index, u64Codec{})
		if err != nil {
			return err
		}
		return log.TryInsert(42)
	}))

	require.NoError(t, eng.View(ctx, k, accountDef, func(c *container.Container) error {
		assert.Equal(t, uint64(42), balance.Get(c.Meta()))
		log, err := container.OpenArray(c, history.Index, u64Codec{})
		require.NoError(t, err)
		assert.Equal(t, []uint64{42}, log.Values())
		return nil
	}))
}

func TestEngine_CreateErrors(t *testing.T) {
	ctx := context.Background()
	eng, h := newEngine(t)
	k := key("dup")

	require.NoError(t, eng.Create(ctx, k, accountDef, 0))
	assert.ErrorIs(t, eng.Create(ctx, k, accountDef, 0), ErrExists)

	err := eng.Create(ctx, key("small"), accountDef, accountDef.InitialDataLen()-1)
	assert.ErrorIs(t, err, ErrBufferTooSmall)
	assert.Equal(t, 1, h.Len())
}

func TestEngine_CreateLargerBuffer(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)
	k := key("large")

	require.NoError(t, eng.Create(ctx, k, accountDef, accountDef.InitialDataLen()+3*8))
	require.NoError(t, eng.View(ctx, k, accountDef, func(c *container.Container) error {
		log, err := container.OpenArray(c, history.Index, u64Codec{})
		require.NoError(t, err)
		assert.Equal(t, 5, log.Capacity())
		return nil
	}))
}

func TestEngine_UpdateNotPersistedOnError(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)
	k := key("rollback")
	require.NoError(t, eng.Create(ctx, k, accountDef, 0))

	err := eng.Update(ctx, k, accountDef, func(c *container.Container) error {
		balance.Set(c.Meta(), 7)
		return ErrEntryNotFound
	})
	assert.ErrorIs(t, err, ErrEntryNotFound)

	require.NoError(t, eng.View(ctx, k, accountDef, func(c *container.Container) error {
		assert.Zero(t, balance.Get(c.Meta()))
		return nil
	}))
}

func TestEngine_ViewErrors(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)
	noop := func(*container.Container) error { return nil }

	err := eng.View(ctx, key("missing"), accountDef, noop)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, host.ErrNotFound)

	k := key("fixed")
	require.NoError(t, eng.Create(ctx, k, fixedDef, 0))
	err = eng.View(ctx, k, accountDef, noop)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	var mismatch *ErrContainerTypeMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, accountDef.Tag(), mismatch.Expected)
	assert.Equal(t, fixedDef.Tag(), mismatch.Found)
	assert.Equal(t, "fixed", mismatch.FoundName)
}

func TestEngine_Grow(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)
	k := key("grow")
	require.NoError(t, eng.Create(ctx, k, accountDef, 0))

	insert := func(v uint64) error {
		return eng.Update(ctx, k, accountDef, func(c *container.Container) error {
			log, err := container.OpenArray(c, history.Index, u64Codec{})
			if err != nil {
				return err
			}
			return log.TryInsert(v)
		})
	}
	require.NoError(t, insert(1))
	require.NoError(t, insert(2))
	assert.ErrorIs(t, insert(3), ErrCollectionFull)

	require.NoError(t, eng.Grow(ctx, k, accountDef, accountDef.InitialDataLen()+16))
	require.NoError(t, insert(3))

	require.NoError(t, eng.View(ctx, k, accountDef, func(c *container.Container) error {
		log, err := container.OpenArray(c, history.Index, u64Codec{})
		require.NoError(t, err)
		assert.Equal(t, 4, log.Capacity())
		assert.Equal(t, []uint64{1, 2, 3}, log.Values())
		return nil
	}))

	assert.ErrorIs(t, eng.Grow(ctx, k, accountDef, accountDef.InitialDataLen()), ErrInvalidSize)
	assert.NoError(t, eng.Grow(ctx, k, accountDef, accountDef.InitialDataLen()+16))
}

func TestEngine_GrowErrors(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)

	k := key("fixed")
	require.NoError(t, eng.Create(ctx, k, fixedDef, 0))
	assert.ErrorIs(t, eng.Grow(ctx, k, fixedDef, fixedDef.InitialDataLen()+8), ErrInvalidSize)
	assert.ErrorIs(t, eng.Grow(ctx, key("missing"), accountDef, 128), ErrNotFound)

	limited := New(host.NewMemory(host.WithMaxLen(64)))
	a := key("account")
	require.NoError(t, limited.Create(ctx, a, accountDef, 0))
	assert.ErrorIs(t, limited.Grow(ctx, a, accountDef, 128), ErrGrowthDenied)
}

// persistFailHost fails Persist while failing is set.
type persistFailHost struct {
	*host.Memory
	failing bool
}

var errPersist = errors.New("persist failed")

func (h *persistFailHost) Persist(ctx context.Context, k model.StorageKey, buf []byte) error {
	if h.failing {
		return errPersist
	}
	return h.Memory.Persist(ctx, k, buf)
}

func TestEngine_GrowFailureRestoresLength(t *testing.T) {
	ctx := context.Background()
	h := &persistFailHost{Memory: host.NewMemory()}
	eng := New(h)
	k := key("grow-rollback")
	require.NoError(t, eng.Create(ctx, k, accountDef, 0))
	require.NoError(t, eng.Update(ctx, k, accountDef, func(c *container.Container) error {
		log, err := container.OpenArray(c, history.Index, u64Codec{})
		if err != nil {
			return err
		}
		return log.TryInsert(7)
	}))

	h.failing = true
	err := eng.Grow(ctx, k, accountDef, accountDef.InitialDataLen()+16)
	require.ErrorIs(t, err, errPersist)
	h.failing = false

	buf, err := h.Read(ctx, k)
	require.NoError(t, err)
	assert.Len(t, buf, accountDef.InitialDataLen())

	require.NoError(t, eng.View(ctx, k, accountDef, func(c *container.Container) error {
		log, err := container.OpenArray(c, history.Index, u64Codec{})
		require.NoError(t, err)
		assert.Equal(t, 2, log.Capacity())
		assert.Equal(t, []uint64{7}, log.Values())
		return nil
	}))

	require.NoError(t, eng.Grow(ctx, k, accountDef, accountDef.InitialDataLen()+16))
}

func TestEngine_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t)
	k := key("counter")
	require.NoError(t, eng.Create(ctx, k, accountDef, 0))

	const workers = 32
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, eng.Update(ctx, k, accountDef, func(c *container.Container) error {
				balance.Add(c.Meta(), 1)
				return nil
			}))
		}()
	}
	wg.Wait()

	require.NoError(t, eng.View(ctx, k, accountDef, func(c *container.Container) error {
		assert.Equal(t, uint64(workers), balance.Get(c.Meta()))
		return nil
	}))
	assert.Zero(t, eng.locks.len())
}

func TestEngine_Release(t *testing.T) {
	ctx := context.Background()
	eng, h := newEngine(t)
	k := key("release")
	require.NoError(t, eng.Create(ctx, k, accountDef, 0))

	require.NoError(t, eng.Release(ctx, k))
	require.NoError(t, eng.Release(ctx, k))
	assert.Zero(t, h.Len())
}

func TestEngine_Proxies(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	eng, _ := newEngine(t, WithMetricsCollector(metrics))

	target := key("target")
	require.NoError(t, eng.Create(ctx, target, accountDef, 0))

	a, b, c := key("a"), key("b"), key("c")
	require.NoError(t, eng.CreateProxy(ctx, c, target))
	require.NoError(t, eng.CreateProxy(ctx, b, c))
	require.NoError(t, eng.CreateProxy(ctx, a, b))

	next, err := eng.Resolve(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, b, next)

	resolved, err := eng.ResolveChain(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, target, resolved)

	resolved, err = eng.ResolveChain(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, target, resolved)

	_, err = eng.Resolve(ctx, target)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	assert.ErrorIs(t, eng.CreateProxy(ctx, a, a), ErrSelfReference)

	stats := metrics.GetStats()
	assert.Equal(t, int64(5), stats.CreateCount)
	assert.Equal(t, int64(1), stats.CreateErrors)
	assert.Equal(t, int64(4), stats.ResolveCount)
	assert.Equal(t, int64(5), stats.ResolveHops)
	assert.Equal(t, int64(1), stats.ResolveErrors)
}

func TestEngine_ResolveChainLimits(t *testing.T) {
	ctx := context.Background()
	eng, _ := newEngine(t, WithMaxProxyHops(2))

	a, b, c, d := key("a"), key("b"), key("c"), key("d")
	require.NoError(t, eng.Create(ctx, d, accountDef, 0))
	require.NoError(t, eng.CreateProxy(ctx, c, d))
	require.NoError(t, eng.CreateProxy(ctx, b, c))
	require.NoError(t, eng.CreateProxy(ctx, a, b))

	_, err := eng.ResolveChain(ctx, a)
	assert.ErrorIs(t, err, ErrTooManyHops)

	resolved, err := eng.ResolveChain(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, d, resolved)

	x, y := key("x"), key("y")
	require.NoError(t, eng.CreateProxy(ctx, x, y))
	require.NoError(t, eng.CreateProxy(ctx, y, x))
	_, err = eng.ResolveChain(ctx, x)
	assert.ErrorIs(t, err, ErrProxyCycle)

	_, err = eng.ResolveChain(ctx, key("nowhere"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_Retarget(t *testing.T) {
	ctx := context.Background()
	eng, h := newEngine(t)
	p, first, second := key("p"), key("first"), key("second")

	require.NoError(t, eng.CreateProxy(ctx, p, first))
	require.NoError(t, eng.Retarget(ctx, p, second))

	next, err := eng.Resolve(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, second, next)

	buf, err := h.Read(ctx, p)
	require.NoError(t, err)
	assert.Len(t, buf, proxy.Size)
	assert.ErrorIs(t, eng.Retarget(ctx, p, p), ErrSelfReference)
}

func TestEngine_Pages(t *testing.T) {
	ctx := context.Background()
	eng, h := newEngine(t)
	owner := key("owner")
	seed := []byte("values")
	require.NoError(t, eng.Create(ctx, owner, fixedDef, 0))

	values := schema.New("values", 0x534c4156)
	slots := values.Collection("slots", 8, 2)
	valuesDef := values.MustBuild()

	meta, err := eng.CreatePage(ctx, owner, fixedDef, fixedPages.Index, seed, 1, valuesDef)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), meta.Index)
	assert.Equal(t, 2, h.Len())

	var inserted []paging.PageMeta
	require.NoError(t, eng.UpdatePager(ctx, owner, fixedDef, fixedPages.Index, seed, func(p *paging.Pager) error {
		assert.Len(t, p.Pages(1), 1)
		paged, err := paging.NewPaged(p, 1, valuesDef, slots.Index, collection.Codec[uint64](u64Codec{}))
		if err != nil {
			return err
		}
		for v := range uint64(5) {
			m, err := paged.Insert(ctx, v)
			if err != nil {
				return err
			}
			inserted = append(inserted, m)
		}
		return nil
	}))
	assert.Equal(t, uint32(2), inserted[4].Index)

	require.NoError(t, eng.View(ctx, owner, fixedDef, func(c *container.Container) error {
		window, err := c.Segment(fixedPages.Index)
		require.NoError(t, err)
		p, err := paging.Open(window, h, owner, seed)
		require.NoError(t, err)
		assert.Equal(t, 3, p.Len())

		paged, err := paging.NewPaged(p, 1, valuesDef, slots.Index, collection.Codec[uint64](u64Codec{}))
		require.NoError(t, err)
		got, err := paged.Values(ctx)
		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1, 2, 3, 4}, got)
		return nil
	}))

	meta, err = eng.CreatePage(ctx, owner, fixedDef, fixedPages.Index, seed, 2, pageDef)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), meta.Index)

	_, err = eng.CreatePage(ctx, owner, fixedDef, fixedPages.Index, seed, 2, pageDef)
	assert.ErrorIs(t, err, ErrCollectionFull)
	assert.Equal(t, 5, h.Len())
}

func TestLogger_TypeMismatchIsWarning(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	eng, _ := newEngine(t, WithLogger(logger))

	k := key("fixed")
	require.NoError(t, eng.Create(ctx, k, fixedDef, 0))
	assert.Contains(t, out.String(), `"msg":"create completed"`)

	out.Reset()
	err := eng.View(ctx, k, accountDef, func(*container.Container) error { return nil })
	require.Error(t, err)
	assert.Contains(t, out.String(), `"level":"WARN"`)
	assert.Contains(t, out.String(), `"msg":"container type mismatch"`)

	out.Reset()
	_ = eng.View(ctx, key("missing"), accountDef, func(*container.Container) error { return nil })
	assert.Contains(t, out.String(), `"level":"ERROR"`)
}

func TestOptions_Defaults(t *testing.T) {
	o := applyOptions([]Option{nil, WithLogger(nil), WithMetricsCollector(nil), WithMaxProxyHops(-1)})
	assert.NotNil(t, o.logger)
	assert.NotNil(t, o.registry)
	assert.IsType(t, NoopMetricsCollector{}, o.metricsCollector)
	assert.Equal(t, DefaultMaxProxyHops, o.maxProxyHops)
}

func TestKeyLocks(t *testing.T) {
	l := newKeyLocks()
	unlockA := l.lock(key("a"))
	unlockB := l.lock(key("b"))
	assert.Equal(t, 2, l.len())

	done := make(chan struct{})
	go func() {
		unlock := l.lock(key("a"))
		unlock()
		close(done)
	}()

	unlockB()
	unlockA()
	<-done
	assert.Zero(t, l.len())
}
