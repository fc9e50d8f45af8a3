package segkit

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/segkit/container"
	"github.com/hupe1980/segkit/host"
	"github.com/hupe1980/segkit/model"
	"github.com/hupe1980/segkit/paging"
	"github.com/hupe1980/segkit/proxy"
	"github.com/hupe1980/segkit/registry"
)

// Engine binds container definitions to a host. It is safe for concurrent
// use; updates to the same key are serialised.
type Engine struct {
	host         host.Host
	registry     *registry.Registry
	logger       *Logger
	metrics      MetricsCollector
	maxProxyHops int
	locks        *keyLocks
}

// New creates an Engine on top of h.
func New(h host.Host, optFns ...Option) *Engine {
	o := applyOptions(optFns)
	return &Engine{
		host:         h,
		registry:     o.registry,
		logger:       o.logger,
		metrics:      o.metricsCollector,
		maxProxyHops: o.maxProxyHops,
		locks:        newKeyLocks(),
	}
}

// Host returns the underlying host.
func (e *Engine) Host() host.Host { return e.host }

// Registry returns the type registry used for error messages.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Create allocates key with size bytes and formats it as def. A size of 0
// means def.InitialDataLen(). Nothing is left allocated on failure.
func (e *Engine) Create(ctx context.Context, key model.StorageKey, def *container.Definition, size int) (err error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordCreate(time.Since(start), err)
	}()

	if size == 0 {
		size = def.InitialDataLen()
	}
	if size < def.InitialDataLen() {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrBufferTooSmall, def.Name(), def.InitialDataLen(), size)
	}
	if rerr := e.registry.Register(def.Tag(), def.Name()); rerr != nil {
		e.logger.WarnContext(ctx, "type tag registered under another name", "error", rerr)
	}

	err = e.format(ctx, key, size, func(buf []byte) error {
		_, cerr := container.TryCreate(buf, def)
		return cerr
	})
	e.logger.LogCreate(ctx, key, def.Name(), size, err)
	return err
}

// format allocates key, runs init on the fresh buffer and persists it,
// releasing the key again when any step fails.
func (e *Engine) format(ctx context.Context, key model.StorageKey, size int, init func([]byte) error) error {
	buf, err := e.host.Allocate(ctx, key, size)
	if err != nil {
		return translateError(err)
	}
	if err := init(buf); err != nil {
		e.release(ctx, key)
		return err
	}
	if err := e.host.Persist(ctx, key, buf); err != nil {
		e.logger.LogPersist(ctx, key, len(buf), err)
		e.release(ctx, key)
		return translateError(err)
	}
	return nil
}

func (e *Engine) release(ctx context.Context, key model.StorageKey) {
	if err := e.host.Release(ctx, key); err != nil {
		e.logger.ErrorContext(ctx, "release after failed create", "key", key.String(), "error", err)
	}
}

func (e *Engine) load(ctx context.Context, key model.StorageKey, def *container.Definition) (*container.Container, error) {
	buf, err := e.host.Read(ctx, key)
	if err != nil {
		err = translateError(err)
		e.logger.LogLoad(ctx, key, def.Name(), err)
		return nil, err
	}
	c, err := container.TryLoad(buf, def, e.registry)
	e.logger.LogLoad(ctx, key, def.Name(), err)
	return c, err
}

// View loads key as def and passes it to fn. Changes fn makes are not
// persisted; the container must not be used after fn returns.
func (e *Engine) View(ctx context.Context, key model.StorageKey, def *container.Definition, fn func(*container.Container) error) (err error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordView(time.Since(start), err)
	}()

	c, err := e.load(ctx, key, def)
	if err != nil {
		return err
	}
	return fn(c)
}

// Update loads key as def, runs fn and persists the buffer when fn
// succeeds. When fn fails nothing is written.
func (e *Engine) Update(ctx context.Context, key model.StorageKey, def *container.Definition, fn func(*container.Container) error) (err error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordUpdate(time.Since(start), err)
	}()

	unlock := e.locks.lock(key)
	defer unlock()

	c, err := e.load(ctx, key, def)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return e.persist(ctx, key, c.Buffer())
}

func (e *Engine) persist(ctx context.Context, key model.StorageKey, buf []byte) error {
	err := translateError(e.host.Persist(ctx, key, buf))
	e.logger.LogPersist(ctx, key, len(buf), err)
	return err
}

// Grow resizes key to newLen bytes, hands the growth to the flex segment
// and raises the capacity of a flex collection to match. Shrinking is
// rejected with ErrInvalidSize. If the grown buffer cannot be formatted or
// persisted, the buffer is resized back to its old length.
func (e *Engine) Grow(ctx context.Context, key model.StorageKey, def *container.Definition, newLen int) (err error) {
	start := time.Now()
	delta := 0
	defer func() {
		e.metrics.RecordGrow(delta, time.Since(start), err)
	}()

	unlock := e.locks.lock(key)
	defer unlock()

	cur, err := e.load(ctx, key, def)
	if err != nil {
		return err
	}
	oldLen := len(cur.Buffer())
	if newLen < oldLen {
		return fmt.Errorf("%w: cannot shrink %s from %d to %d bytes", ErrInvalidSize, key, oldLen, newLen)
	}
	if newLen == oldLen {
		return nil
	}
	if _, ok := def.Layout().Flex(); !ok {
		return fmt.Errorf("%w: %s has no flex segment", ErrInvalidSize, def.Name())
	}

	buf, err := e.host.Resize(ctx, key, newLen)
	if err != nil {
		e.logger.WarnContext(ctx, "resize failed", "key", key.String(), "from", oldLen, "to", newLen, "error", err)
		return translateError(err)
	}
	if err := e.expand(ctx, key, def, buf); err != nil {
		e.shrinkBack(ctx, key, oldLen)
		return err
	}
	delta = newLen - oldLen
	return nil
}

func (e *Engine) expand(ctx context.Context, key model.StorageKey, def *container.Definition, buf []byte) error {
	c, err := container.TryLoad(buf, def, e.registry)
	if err != nil {
		return err
	}
	if err := c.ExpandCollections(); err != nil {
		return err
	}
	return e.persist(ctx, key, buf)
}

// shrinkBack undoes the resize of a failed Grow. The stored prefix still
// holds the old content.
func (e *Engine) shrinkBack(ctx context.Context, key model.StorageKey, oldLen int) {
	if _, err := e.host.Resize(ctx, key, oldLen); err != nil {
		e.logger.ErrorContext(ctx, "resize back after failed grow", "key", key.String(), "to", oldLen, "error", err)
	}
}

// Release frees key on the host.
func (e *Engine) Release(ctx context.Context, key model.StorageKey) error {
	unlock := e.locks.lock(key)
	defer unlock()
	return translateError(e.host.Release(ctx, key))
}

// CreateProxy allocates key as a proxy pointing at target.
func (e *Engine) CreateProxy(ctx context.Context, key, target model.StorageKey) (err error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordCreate(time.Since(start), err)
	}()

	if key == target {
		return fmt.Errorf("%w: %s", ErrSelfReference, key)
	}
	if rerr := e.registry.Register(proxy.Tag, proxy.Definition.Name()); rerr != nil {
		e.logger.WarnContext(ctx, "proxy tag registered under another name", "error", rerr)
	}
	err = e.format(ctx, key, proxy.Size, func(buf []byte) error {
		return proxy.TryCreate(buf, target)
	})
	e.logger.LogCreate(ctx, key, proxy.Definition.Name(), proxy.Size, err)
	return err
}

// Retarget points the proxy at key to target.
func (e *Engine) Retarget(ctx context.Context, key, target model.StorageKey) error {
	if key == target {
		return fmt.Errorf("%w: %s", ErrSelfReference, key)
	}
	return e.Update(ctx, key, proxy.Definition, func(c *container.Container) error {
		return proxy.Retarget(c.Buffer(), target)
	})
}

// Resolve follows the proxy at key one hop. A key that is not a proxy
// fails with a *ErrContainerTypeMismatch.
func (e *Engine) Resolve(ctx context.Context, key model.StorageKey) (target model.StorageKey, err error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordResolve(1, time.Since(start), err)
	}()

	buf, err := e.host.Read(ctx, key)
	if err != nil {
		return model.ZeroKey, translateError(err)
	}
	target, err = proxy.TryLoad(buf, e.registry)
	if err != nil {
		e.logger.LogLoad(ctx, key, proxy.Definition.Name(), err)
	}
	return target, err
}

// ResolveChain follows proxies from key until it reaches a buffer that is
// not a proxy and returns that buffer's key. A key that is not a proxy
// resolves to itself. Loops fail with ErrProxyCycle, chains longer than
// the configured maximum with ErrTooManyHops.
func (e *Engine) ResolveChain(ctx context.Context, key model.StorageKey) (resolved model.StorageKey, err error) {
	start := time.Now()
	hops := 0
	defer func() {
		e.metrics.RecordResolve(hops, time.Since(start), err)
	}()

	visited := map[model.StorageKey]struct{}{key: {}}
	cur := key
	for {
		buf, err := e.host.Read(ctx, cur)
		if err != nil {
			return model.ZeroKey, translateError(err)
		}
		if !proxy.IsProxy(buf) {
			return cur, nil
		}
		if hops == e.maxProxyHops {
			return model.ZeroKey, fmt.Errorf("%w: %s after %d hops", ErrTooManyHops, key, hops)
		}
		next, err := proxy.TryLoad(buf, e.registry)
		if err != nil {
			return model.ZeroKey, err
		}
		hops++
		if _, seen := visited[next]; seen {
			return model.ZeroKey, fmt.Errorf("%w: %s revisits %s", ErrProxyCycle, key, next)
		}
		visited[next] = struct{}{}
		cur = next
	}
}

// UpdatePager opens the page-meta collection in segment of owner and passes
// a pager over it to fn. The owner is persisted when fn succeeds, so page
// metas recorded by fn become durable. Pages fn created before failing stay
// allocated.
func (e *Engine) UpdatePager(ctx context.Context, owner model.StorageKey, def *container.Definition, segment int, seed []byte, fn func(*paging.Pager) error) error {
	return e.Update(ctx, owner, def, func(c *container.Container) error {
		window, err := c.Segment(segment)
		if err != nil {
			return err
		}
		p, err := paging.Open(window, e.host, owner, seed)
		if err != nil {
			return err
		}
		return fn(p)
	})
}

// CreatePage adds one page of pageDef for dataType to owner and persists
// the owner.
func (e *Engine) CreatePage(ctx context.Context, owner model.StorageKey, def *container.Definition, segment int, seed []byte, dataType uint32, pageDef *container.Definition) (paging.PageMeta, error) {
	var meta paging.PageMeta
	err := e.UpdatePager(ctx, owner, def, segment, seed, func(p *paging.Pager) error {
		m, err := p.CreatePage(ctx, dataType, pageDef)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	e.logger.LogPage(ctx, owner, dataType, meta.Index, err)
	if err != nil {
		return paging.PageMeta{}, err
	}
	return meta, nil
}
