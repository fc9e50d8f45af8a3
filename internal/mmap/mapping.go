package mmap

import (
	"errors"
	"io"
	"os"
	"sync/atomic"
)

// AccessPattern hints the kernel about upcoming access.
type AccessPattern int

const (
	AccessDefault AccessPattern = iota
	AccessSequential
	AccessRandom
	AccessWillNeed
	AccessDontNeed
)

var (
	// ErrClosed is returned when using a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned for negative or unmappable file sizes.
	ErrInvalidSize = errors.New("mmap: invalid file size")
	// ErrInvalidOffset is returned for negative read offsets.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
	// ErrReadOnly is returned when syncing a read-only mapping.
	ErrReadOnly = errors.New("mmap: mapping is read-only")
)

// Mapping is a memory-mapped file. It owns the mapped bytes.
type Mapping struct {
	data     []byte
	writable bool
	closed   atomic.Bool
	unmap    func([]byte) error
	flush    func([]byte) error
}

// Open maps the file at path read-only.
func Open(path string) (*Mapping, error) {
	return open(path, os.O_RDONLY, false)
}

// OpenRW maps the file at path read-write and shared, so writes to Bytes
// reach the file. The mapping covers the file's current size.
func OpenRW(path string) (*Mapping, error) {
	return open(path, os.O_RDWR, true)
}

func open(path string, flag int, writable bool) (*Mapping, error) {
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}
	// The mapping outlives the descriptor.
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size < 0 || int64(int(size)) != size {
		return nil, ErrInvalidSize
	}
	if size == 0 {
		return &Mapping{writable: writable}, nil
	}

	data, unmap, flush, err := osMap(f, int(size), writable)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, writable: writable, unmap: unmap, flush: flush}, nil
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}

// Bytes returns the mapped bytes, valid until Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the mapped length.
func (m *Mapping) Size() int { return len(m.data) }

// Writable reports whether the mapping was opened with OpenRW.
func (m *Mapping) Writable() bool { return m.writable }

// Sync flushes dirty pages to the file.
func (m *Mapping) Sync() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if !m.writable {
		return ErrReadOnly
	}
	if m.flush == nil || len(m.data) == 0 {
		return nil
	}
	return m.flush(m.data)
}

// Advise passes an access hint to the kernel.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if len(m.data) == 0 {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
