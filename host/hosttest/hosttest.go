// Package hosttest checks host.Host implementations against the contract
// every segkit host shares.
package hosttest

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/hupe1980/segkit/host"
	"github.com/hupe1980/segkit/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty host.
type Factory func(t *testing.T) host.Host

// Key returns a deterministic test key.
func Key(name string) model.StorageKey {
	return model.DeriveKey(model.ZeroKey, []byte("hosttest/"+name), 0)
}

func keyOf(t *testing.T) model.StorageKey {
	return model.DeriveKey(model.ZeroKey, []byte(t.Name()), 0)
}

// Run executes the conformance suite.
func Run(t *testing.T, newHost Factory) {
	t.Run("AllocateRead", func(t *testing.T) {
		h, ctx, key := newHost(t), context.Background(), keyOf(t)

		buf, err := h.Allocate(ctx, key, 64)
		require.NoError(t, err)
		assert.Len(t, buf, 64)
		assert.Equal(t, make([]byte, 64), buf)

		_, err = h.Allocate(ctx, key, 64)
		assert.ErrorIs(t, err, host.ErrExists)

		got, err := h.Read(ctx, key)
		require.NoError(t, err)
		assert.Len(t, got, 64)
	})

	t.Run("ReadMissing", func(t *testing.T) {
		h := newHost(t)
		_, err := h.Read(context.Background(), keyOf(t))
		assert.ErrorIs(t, err, host.ErrNotFound)
	})

	t.Run("PersistRoundTrip", func(t *testing.T) {
		h, ctx, key := newHost(t), context.Background(), keyOf(t)

		buf, err := h.Allocate(ctx, key, 16)
		require.NoError(t, err)
		copy(buf, "segkit-persisted")
		require.NoError(t, h.Persist(ctx, key, buf))

		got, err := h.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "segkit-persisted", string(got))

		assert.ErrorIs(t, h.Persist(ctx, key, make([]byte, 8)), host.ErrLengthMismatch)
		assert.ErrorIs(t, h.Persist(ctx, Key("never-allocated"), buf), host.ErrNotFound)
	})

	t.Run("ResizeKeepsPrefix", func(t *testing.T) {
		h, ctx, key := newHost(t), context.Background(), keyOf(t)

		buf, err := h.Allocate(ctx, key, 8)
		require.NoError(t, err)
		copy(buf, "abcdefgh")
		require.NoError(t, h.Persist(ctx, key, buf))

		grown, err := h.Resize(ctx, key, 12)
		require.NoError(t, err)
		assert.Equal(t, append([]byte("abcdefgh"), 0, 0, 0, 0), grown)

		got, err := h.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, grown, got)

		shrunk, err := h.Resize(ctx, key, 4)
		require.NoError(t, err)
		assert.Equal(t, "abcd", string(shrunk))

		_, err = h.Resize(ctx, Key("never-allocated"), 4)
		assert.ErrorIs(t, err, host.ErrNotFound)
	})

	t.Run("ReleaseIdempotent", func(t *testing.T) {
		h, ctx, key := newHost(t), context.Background(), keyOf(t)

		_, err := h.Allocate(ctx, key, 8)
		require.NoError(t, err)
		require.NoError(t, h.Release(ctx, key))
		require.NoError(t, h.Release(ctx, key))

		_, err = h.Read(ctx, key)
		assert.ErrorIs(t, err, host.ErrNotFound)

		// The key can be reused.
		_, err = h.Allocate(ctx, key, 8)
		require.NoError(t, err)
	})

	t.Run("Isolation", func(t *testing.T) {
		h, ctx, key := newHost(t), context.Background(), keyOf(t)

		buf, err := h.Allocate(ctx, key, 4)
		require.NoError(t, err)
		buf[0] = 0xff

		got, err := h.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, byte(0), got[0], "unpersisted writes must not be visible")
	})

	t.Run("Concurrent", func(t *testing.T) {
		h, ctx := newHost(t), context.Background()

		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				key := model.DeriveKey(keyOf(t), nil, uint32(i))
				buf, err := h.Allocate(ctx, key, 32)
				if !assert.NoError(t, err) {
					return
				}
				buf[0] = byte(i)
				assert.NoError(t, h.Persist(ctx, key, buf))
			}()
		}
		wg.Wait()

		for i := range 8 {
			got, err := h.Read(ctx, model.DeriveKey(keyOf(t), nil, uint32(i)))
			require.NoError(t, err)
			assert.Equal(t, byte(i), got[0])
		}
	})

	t.Run("ReadAfterPersist", func(t *testing.T) {
		h, ctx, key := newHost(t), context.Background(), keyOf(t)
		buf, err := h.Allocate(ctx, key, 8)
		require.NoError(t, err)

		for i := range 32 {
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = h.Read(ctx, key)
			}()
			want := bytes.Repeat([]byte{byte(i + 1)}, len(buf))
			require.NoError(t, h.Persist(ctx, key, want))
			wg.Wait()

			got, err := h.Read(ctx, key)
			require.NoError(t, err)
			require.Equal(t, want, got, "round %d", i)
		}
	})

	t.Run("ReadAfterRelease", func(t *testing.T) {
		h, ctx, key := newHost(t), context.Background(), keyOf(t)

		for i := range 16 {
			buf, err := h.Allocate(ctx, key, 8)
			require.NoError(t, err)
			buf[0] = byte(i)
			require.NoError(t, h.Persist(ctx, key, buf))

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = h.Read(ctx, key)
			}()
			require.NoError(t, h.Release(ctx, key))
			wg.Wait()

			_, err = h.Read(ctx, key)
			require.ErrorIs(t, err, host.ErrNotFound, "round %d", i)
		}
	})
}
