package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the
// memory limit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits. Zero values mean unlimited.
type Config struct {
	// MemoryLimitBytes caps the bytes a host keeps resident.
	MemoryLimitBytes int64

	// MaxConcurrentIO caps concurrent backend round trips.
	MaxConcurrentIO int64

	// IOLimitBytesPerSec caps backend throughput.
	IOLimitBytesPerSec int64
}

// Controller enforces Config. A nil *Controller enforces nothing.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted
	memUsed atomic.Int64

	ioSem     *semaphore.Weighted
	ioLimiter *rate.Limiter
}

// NewController creates a controller for cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.MaxConcurrentIO > 0 {
		c.ioSem = semaphore.NewWeighted(cfg.MaxConcurrentIO)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), burst(cfg.IOLimitBytesPerSec))
	}
	return c
}

func burst(perSec int64) int {
	const maxBurst = 1 << 30
	if perSec > maxBurst {
		return maxBurst
	}
	return int(perSec)
}

// AcquireMemory reserves bytes without blocking.
func (c *Controller) AcquireMemory(bytes int64) error {
	if !c.TryAcquireMemory(bytes) {
		return ErrMemoryLimitExceeded
	}
	return nil
}

// TryAcquireMemory reserves bytes and reports whether it succeeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory returns a reservation.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured limit, 0 when unlimited.
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireSlot blocks until a concurrent IO slot is free.
func (c *Controller) AcquireSlot(ctx context.Context) error {
	if c == nil || c.ioSem == nil {
		return nil
	}
	return c.ioSem.Acquire(ctx, 1)
}

// TryAcquireSlot takes a concurrent IO slot if one is free.
func (c *Controller) TryAcquireSlot() bool {
	if c == nil || c.ioSem == nil {
		return true
	}
	return c.ioSem.TryAcquire(1)
}

// ReleaseSlot frees a slot taken by AcquireSlot.
func (c *Controller) ReleaseSlot() {
	if c == nil || c.ioSem == nil {
		return
	}
	c.ioSem.Release(1)
}

// AcquireIO waits until the throughput limit admits bytes. Requests larger
// than the bucket are admitted in bucket-sized steps.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}
	b := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, b)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
