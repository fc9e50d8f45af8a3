// Package host defines how segkit obtains storage buffers.
//
// A Host owns every buffer. The engine never grows a slice itself: it asks
// the host for an initial allocation, for a resize, and hands mutated
// buffers back with Persist. Buffers returned by Read and Allocate belong to
// the caller until the next call for the same key.
package host

import (
	"context"
	"errors"

	"github.com/hupe1980/segkit/model"
)

var (
	// ErrNotFound is returned for keys that were never allocated or were
	// released.
	ErrNotFound = errors.New("host: buffer not found")

	// ErrExists is returned by Allocate for keys that already have a buffer.
	ErrExists = errors.New("host: buffer already exists")

	// ErrGrowthDenied is returned when a host refuses a resize.
	ErrGrowthDenied = errors.New("host: growth denied")

	// ErrConflict is returned when a concurrent writer changed the buffer
	// since it was read.
	ErrConflict = errors.New("host: concurrent modification")

	// ErrLengthMismatch is returned by Persist when the buffer length
	// differs from the stored length. Lengths only change through Resize.
	ErrLengthMismatch = errors.New("host: buffer length changed outside Resize")
)

// Host hands out and stores buffers by key. Implementations must be safe
// for concurrent use.
type Host interface {
	// Allocate creates a zeroed buffer of initialLen bytes.
	Allocate(ctx context.Context, key model.StorageKey, initialLen int) ([]byte, error)

	// Resize changes the stored length, keeping the common prefix and
	// zero-filling growth. It returns the resized buffer.
	Resize(ctx context.Context, key model.StorageKey, newLen int) ([]byte, error)

	// Read returns the current buffer.
	Read(ctx context.Context, key model.StorageKey) ([]byte, error)

	// Persist stores buf as the new content of key.
	Persist(ctx context.Context, key model.StorageKey, buf []byte) error

	// Release drops the buffer. Releasing a missing key is not an error.
	Release(ctx context.Context, key model.StorageKey) error
}

// Lister is implemented by hosts that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context) ([]model.StorageKey, error)
}
