package segkit

import (
	"sync"

	"github.com/hupe1980/segkit/model"
)

// keyLocks hands out one mutex per storage key. Entries are reference
// counted and dropped once nobody holds or waits for them.
type keyLocks struct {
	mu    sync.Mutex
	locks map[model.StorageKey]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[model.StorageKey]*keyLock)}
}

// lock blocks until key is held and returns the matching unlock.
func (l *keyLocks) lock(key model.StorageKey) func() {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()

	return func() {
		kl.mu.Unlock()

		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *keyLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
