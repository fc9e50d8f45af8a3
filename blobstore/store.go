package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrNotFound is returned when a blob does not exist. It is os.ErrNotExist
	// so filesystem errors match it directly.
	ErrNotFound = os.ErrNotExist

	// ErrExists is returned by PutIfAbsent when the blob is already there.
	ErrExists = os.ErrExist
)

// BlobStore stores named byte blobs. Implementations must be safe for
// concurrent use. Delete of a missing blob is not an error.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put writes a blob, replacing any previous content atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ConditionalPutter is implemented by stores that can create a blob only if
// it does not exist yet.
type ConditionalPutter interface {
	PutIfAbsent(ctx context.Context, name string, data []byte) error
}

// Blob is a read handle to one blob.
type Blob interface {
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	Size() int64
	Close() error
}

// Mappable is implemented by blobs whose bytes are directly addressable.
type Mappable interface {
	// Bytes returns the content, valid until the blob is closed.
	Bytes() ([]byte, error)
}

// ReadAll reads a whole blob into a fresh slice.
func ReadAll(ctx context.Context, s BlobStore, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Close() }()

	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), data...), nil
	}

	size := b.Size()
	if size < 0 || int64(int(size)) != size {
		return nil, fmt.Errorf("blobstore: %s: invalid size %d", name, size)
	}
	out := make([]byte, size)
	n, err := b.ReadAt(ctx, out, 0)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(out)) {
		return nil, err
	}
	if n != len(out) {
		return nil, fmt.Errorf("blobstore: %s: short read %d of %d: %w", name, n, len(out), io.ErrUnexpectedEOF)
	}
	return out, nil
}

// PutIfAbsent creates a blob only if it is missing. Stores without native
// support fall back to an Open check followed by Put, which is not atomic.
func PutIfAbsent(ctx context.Context, s BlobStore, name string, data []byte) error {
	if cp, ok := s.(ConditionalPutter); ok {
		return cp.PutIfAbsent(ctx, name, data)
	}
	b, err := s.Open(ctx, name)
	if err == nil {
		_ = b.Close()
		return fmt.Errorf("%w: %s", ErrExists, name)
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.Put(ctx, name, data)
}
