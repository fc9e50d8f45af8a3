//go:build unix

package filehost

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/segkit/host"
	"github.com/hupe1980/segkit/internal/mmap"
	"github.com/hupe1980/segkit/model"
)

const ext = ".seg"

// Host implements host.Host on a directory of mapped files.
type Host struct {
	dir    string
	maxLen int
	noSync bool
	logger *slog.Logger

	mu   sync.Mutex
	maps map[model.StorageKey]*mmap.Mapping
}

var (
	_ host.Host   = (*Host)(nil)
	_ host.Lister = (*Host)(nil)
)

// Option configures a Host.
type Option func(*Host)

// WithMaxLen caps every file at n bytes; larger requests fail with
// host.ErrGrowthDenied.
func WithMaxLen(n int) Option {
	return func(h *Host) { h.maxLen = n }
}

// WithoutSync skips msync on Persist. Data reaches the file when the kernel
// writes the pages back.
func WithoutSync() Option {
	return func(h *Host) { h.noSync = true }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// New opens (creating if needed) a host rooted at dir.
func New(dir string, opts ...Option) (*Host, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	h := &Host{
		dir:    dir,
		logger: slog.New(slog.DiscardHandler),
		maps:   make(map[model.StorageKey]*mmap.Mapping),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Host) path(key model.StorageKey) string {
	return filepath.Join(h.dir, key.String()+ext)
}

func (h *Host) checkLen(key model.StorageKey, n int) error {
	if n < 0 {
		return fmt.Errorf("filehost: %s: negative length %d", key, n)
	}
	if h.maxLen > 0 && n > h.maxLen {
		return fmt.Errorf("%w: %s: %d bytes exceeds limit %d", host.ErrGrowthDenied, key, n, h.maxLen)
	}
	return nil
}

// mapping returns the open mapping of key, mapping the file on first use.
// h.mu must be held.
func (h *Host) mapping(key model.StorageKey) (*mmap.Mapping, error) {
	if m, ok := h.maps[key]; ok {
		return m, nil
	}
	m, err := mmap.OpenRW(h.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", host.ErrNotFound, key)
		}
		return nil, err
	}
	h.maps[key] = m
	return m, nil
}

func (h *Host) unmap(key model.StorageKey) error {
	m, ok := h.maps[key]
	if !ok {
		return nil
	}
	delete(h.maps, key)
	return m.Close()
}

// Allocate implements host.Host.
func (h *Host) Allocate(ctx context.Context, key model.StorageKey, initialLen int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := h.checkLen(key, initialLen); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	p := h.path(key)
	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", host.ErrExists, key)
		}
		return nil, err
	}
	err = f.Truncate(int64(initialLen))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(p)
		return nil, err
	}

	if _, err := h.mapping(key); err != nil {
		_ = os.Remove(p)
		return nil, err
	}
	h.logger.DebugContext(ctx, "file allocated", "key", key.String(), "bytes", initialLen)
	return make([]byte, initialLen), nil
}

// Resize implements host.Host.
func (h *Host) Resize(ctx context.Context, key model.StorageKey, newLen int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := h.checkLen(key, newLen); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	m, err := h.mapping(key)
	if err != nil {
		return nil, err
	}
	if m.Size() > 0 && !h.noSync {
		if err := m.Sync(); err != nil {
			return nil, err
		}
	}
	if err := h.unmap(key); err != nil {
		return nil, err
	}
	if err := os.Truncate(h.path(key), int64(newLen)); err != nil {
		return nil, err
	}
	m, err = h.mapping(key)
	if err != nil {
		return nil, err
	}
	h.logger.DebugContext(ctx, "file resized", "key", key.String(), "bytes", newLen)
	return clone(m.Bytes()), nil
}

// Read implements host.Host.
func (h *Host) Read(ctx context.Context, key model.StorageKey) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	m, err := h.mapping(key)
	if err != nil {
		return nil, err
	}
	return clone(m.Bytes()), nil
}

// Persist implements host.Host.
func (h *Host) Persist(ctx context.Context, key model.StorageKey, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	m, err := h.mapping(key)
	if err != nil {
		return err
	}
	if m.Size() != len(buf) {
		return fmt.Errorf("%w: %s: stored %d, got %d", host.ErrLengthMismatch, key, m.Size(), len(buf))
	}
	copy(m.Bytes(), buf)
	if h.noSync || len(buf) == 0 {
		return nil
	}
	if err := m.Sync(); err != nil {
		h.logger.ErrorContext(ctx, "msync failed", "key", key.String(), "error", err)
		return err
	}
	return nil
}

// Release implements host.Host.
func (h *Host) Release(ctx context.Context, key model.StorageKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.unmap(key); err != nil {
		return err
	}
	if err := os.Remove(h.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Keys implements host.Lister.
func (h *Host) Keys(ctx context.Context) ([]model.StorageKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return nil, err
	}
	var keys []model.StorageKey
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ext)
		if !ok || e.IsDir() {
			continue
		}
		k, err := model.ParseStorageKey(name)
		if err != nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	return keys, nil
}

// Close unmaps every file.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for key := range h.maps {
		errs = append(errs, h.unmap(key))
	}
	return errors.Join(errs...)
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
