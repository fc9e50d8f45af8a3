package cache

import "context"

// Kind separates key spaces.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindBlock holds fixed-size blocks of a blob.
	KindBlock
	// KindBuffer holds whole decoded storage buffers.
	KindBuffer
)

// Key identifies a cached value.
type Key struct {
	Kind   Kind
	Path   string
	Offset uint64
}

// BlockCache is a byte cache with a size budget. Returned slices are shared
// and must be treated as read-only.
type BlockCache interface {
	Get(ctx context.Context, key Key) ([]byte, bool)
	Set(ctx context.Context, key Key, b []byte)
	// Invalidate removes every entry matching predicate.
	Invalidate(predicate func(key Key) bool)
	Close() error
	Stats() (hits, misses int64)
}

// MatchPath returns a predicate selecting every entry of one path.
func MatchPath(kind Kind, path string) func(Key) bool {
	return func(k Key) bool { return k.Kind == kind && k.Path == path }
}
