// Package registry maps container type tags to human-readable names.
//
// The registry exists for diagnostics only: a missing name is never fatal,
// callers fall back to the numeric tag. There is no process-wide instance.
// Construct one at start-up and pass it to whatever needs lookups.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/segkit/model"
)

// ErrDuplicateTag is returned when a tag is registered under two names.
var ErrDuplicateTag = errors.New("type tag already registered")

// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	names map[model.TypeTag]string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{names: make(map[model.TypeTag]string)}
}

// Register records name for tag. Registering the same pair twice is a no-op.
func (r *Registry) Register(tag model.TypeTag, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.names[tag]; ok {
		if prev == name {
			return nil
		}
		return fmt.Errorf("%w: %s is %q, not %q", ErrDuplicateTag, tag, prev, name)
	}
	r.names[tag] = name
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(tag model.TypeTag, name string) {
	if err := r.Register(tag, name); err != nil {
		panic(err)
	}
}

// Lookup returns the name registered for tag.
func (r *Registry) Lookup(tag model.TypeTag) (string, bool) {
	if r == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.names[tag]
	return name, ok
}

// Name returns the registered name, or the hex tag when none is known.
func (r *Registry) Name(tag model.TypeTag) string {
	if name, ok := r.Lookup(tag); ok {
		return name
	}
	return tag.String()
}

// Tags returns every registered tag in ascending order.
func (r *Registry) Tags() []model.TypeTag {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]model.TypeTag, 0, len(r.names))
	for t := range r.names {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Len returns the number of registered tags.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
