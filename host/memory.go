package host

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/segkit/model"
)

// Memory is an in-process Host. It copies on every call, so callers never
// share bytes with the stored state.
type Memory struct {
	mu     sync.Mutex
	bufs   map[model.StorageKey][]byte
	maxLen int
}

var (
	_ Host   = (*Memory)(nil)
	_ Lister = (*Memory)(nil)
)

// MemoryOption configures a Memory host.
type MemoryOption func(*Memory)

// WithMaxLen caps every buffer at n bytes. Larger allocations and resizes
// fail with ErrGrowthDenied. Zero means unlimited.
func WithMaxLen(n int) MemoryOption {
	return func(m *Memory) { m.maxLen = n }
}

// NewMemory creates an empty Memory host.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{bufs: make(map[model.StorageKey][]byte)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) checkLen(key model.StorageKey, n int) error {
	if n < 0 {
		return fmt.Errorf("host: %s: negative length %d", key, n)
	}
	if m.maxLen > 0 && n > m.maxLen {
		return fmt.Errorf("%w: %s: %d bytes exceeds limit %d", ErrGrowthDenied, key, n, m.maxLen)
	}
	return nil
}

// Allocate implements Host.
func (m *Memory) Allocate(ctx context.Context, key model.StorageKey, initialLen int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.checkLen(key, initialLen); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bufs[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, key)
	}
	m.bufs[key] = make([]byte, initialLen)
	return make([]byte, initialLen), nil
}

// Resize implements Host.
func (m *Memory) Resize(ctx context.Context, key model.StorageKey, newLen int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.checkLen(key, newLen); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.bufs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	buf := make([]byte, newLen)
	copy(buf, old)
	m.bufs[key] = buf
	return clone(buf), nil
}

// Read implements Host.
func (m *Memory) Read(ctx context.Context, key model.StorageKey) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	buf, ok := m.bufs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return clone(buf), nil
}

// Persist implements Host.
func (m *Memory) Persist(ctx context.Context, key model.StorageKey, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.bufs[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if len(old) != len(buf) {
		return fmt.Errorf("%w: %s: stored %d, got %d", ErrLengthMismatch, key, len(old), len(buf))
	}
	copy(old, buf)
	return nil
}

// Release implements Host.
func (m *Memory) Release(ctx context.Context, key model.StorageKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bufs, key)
	return nil
}

// Keys implements Lister. Keys are returned in ascending byte order.
func (m *Memory) Keys(ctx context.Context) ([]model.StorageKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	keys := make([]model.StorageKey, 0, len(m.bufs))
	for k := range m.bufs {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	return keys, nil
}

// Len returns the number of stored buffers.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bufs)
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
