// Package leveldb keeps segkit buffers in a LevelDB database, one record
// per key under a one-byte prefix.
package leveldb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hupe1980/segkit/host"
	"github.com/hupe1980/segkit/model"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"
)

// bufferPrefix separates buffer records from anything else in the database.
const bufferPrefix = 'B'

// Host implements host.Host on a *leveldb.DB.
type Host struct {
	db     *leveldb.DB
	owned  bool
	wo     *opt.WriteOptions
	maxLen int
	logger *slog.Logger

	// Serialises read-modify-write sequences (Allocate, Resize, Persist).
	mu sync.Mutex
}

var (
	_ host.Host   = (*Host)(nil)
	_ host.Lister = (*Host)(nil)
)

// Option configures a Host.
type Option func(*Host)

// WithSync makes every write wait for fsync.
func WithSync() Option {
	return func(h *Host) { h.wo = &opt.WriteOptions{Sync: true} }
}

// WithMaxLen caps buffers at n bytes; larger requests fail with
// host.ErrGrowthDenied.
func WithMaxLen(n int) Option {
	return func(h *Host) { h.maxLen = n }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// Open opens or creates the database at path. Close releases it.
func Open(path string, opts ...Option) (*Host, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldb: open %s: %w", path, err)
	}
	h := New(db, opts...)
	h.owned = true
	return h, nil
}

// OpenStorage opens a database on a goleveldb storage, e.g.
// storage.NewMemStorage() in tests.
func OpenStorage(stor storage.Storage, opts ...Option) (*Host, error) {
	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, err
	}
	h := New(db, opts...)
	h.owned = true
	return h, nil
}

// New wraps an open database. The caller keeps ownership of db.
func New(db *leveldb.DB, opts ...Option) *Host {
	h := &Host{db: db, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(h)
	}
	return h
}

func dbKey(key model.StorageKey) []byte {
	k := make([]byte, 1+model.KeySize)
	k[0] = bufferPrefix
	copy(k[1:], key[:])
	return k
}

func (h *Host) checkLen(key model.StorageKey, n int) error {
	if n < 0 {
		return fmt.Errorf("leveldb: %s: negative length %d", key, n)
	}
	if h.maxLen > 0 && n > h.maxLen {
		return fmt.Errorf("%w: %s: %d bytes exceeds limit %d", host.ErrGrowthDenied, key, n, h.maxLen)
	}
	return nil
}

func (h *Host) get(key model.StorageKey) ([]byte, error) {
	val, err := h.db.Get(dbKey(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", host.ErrNotFound, key)
		}
		return nil, err
	}
	return val, nil
}

func (h *Host) put(ctx context.Context, key model.StorageKey, buf []byte) error {
	if err := h.db.Put(dbKey(key), buf, h.wo); err != nil {
		h.logger.ErrorContext(ctx, "leveldb put failed", "key", key.String(), "error", err)
		return err
	}
	return nil
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

	exists, err := h.db.Has(dbKey(key), nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", host.ErrExists, key)
	}
	if err := h.put(ctx, key, make([]byte, initialLen)); err != nil {
		return nil, err
	}
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

	old, err := h.get(key)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, newLen)
	copy(buf, old)
	if err := h.put(ctx, key, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Read implements host.Host. goleveldb returns a fresh slice per Get.
func (h *Host) Read(ctx context.Context, key model.StorageKey) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.get(key)
}

// Persist implements host.Host.
func (h *Host) Persist(ctx context.Context, key model.StorageKey, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	old, err := h.get(key)
	if err != nil {
		return err
	}
	if len(old) != len(buf) {
		return fmt.Errorf("%w: %s: stored %d, got %d", host.ErrLengthMismatch, key, len(old), len(buf))
	}
	return h.put(ctx, key, buf)
}

// Release implements host.Host. Deleting a missing key is not an error in
// LevelDB either.
func (h *Host) Release(ctx context.Context, key model.StorageKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.db.Delete(dbKey(key), h.wo)
}

// ReleaseAll deletes several buffers in one atomic batch.
func (h *Host) ReleaseAll(ctx context.Context, keys ...model.StorageKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	for _, k := range keys {
		batch.Delete(dbKey(k))
	}
	return h.db.Write(batch, h.wo)
}

// Keys implements host.Lister. LevelDB iterates in key order.
func (h *Host) Keys(ctx context.Context) ([]model.StorageKey, error) {
	iter := h.db.NewIterator(ldb_util.BytesPrefix([]byte{bufferPrefix}), nil)
	defer iter.Release()

	var keys []model.StorageKey
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		k, err := model.KeyFromBytes(iter.Key()[1:])
		if err != nil {
			continue
		}
		keys = append(keys, k)
	}
	return keys, iter.Error()
}

// Close closes the database if the host opened it.
func (h *Host) Close() error {
	if !h.owned {
		return nil
	}
	return h.db.Close()
}
