package cache

import "sync"

// FillGuard orders read-through fills against writes of the same path. A
// fill that began before a write finished is dropped instead of caching
// the bytes it fetched. The zero value is ready to use.
type FillGuard struct {
	mu    sync.Mutex
	fills map[string]*fill
}

type fill struct {
	refs  int
	stale bool
}

// Fill is one in-flight fetch of a path.
type Fill struct {
	path string
	f    *fill
}

// Begin registers a fetch of path. Call it before reading the backend and
// End when done.
func (g *FillGuard) Begin(path string) Fill {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fills == nil {
		g.fills = make(map[string]*fill)
	}
	f, ok := g.fills[path]
	if !ok {
		f = &fill{}
		g.fills[path] = f
	}
	f.refs++
	return Fill{path: path, f: f}
}

// Store runs set unless a write to the fill's path happened since Begin.
// It reports whether set ran.
func (g *FillGuard) Store(fl Fill, set func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if fl.f.stale {
		return false
	}
	set()
	return true
}

// Stale reports whether a write to the fill's path happened since Begin.
func (g *FillGuard) Stale(fl Fill) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fl.f.stale
}

// End releases the fill.
func (g *FillGuard) End(fl Fill) {
	g.mu.Lock()
	defer g.mu.Unlock()

	fl.f.refs--
	if fl.f.refs == 0 && g.fills[fl.path] == fl.f {
		delete(g.fills, fl.path)
	}
}

// Write marks every in-flight fill of path stale and runs update, which
// brings the cache in line with the write. Call it after the write reached
// the backend.
func (g *FillGuard) Write(path string, update func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if f, ok := g.fills[path]; ok {
		f.stale = true
		// Fills beginning from now on read the new content.
		delete(g.fills, path)
	}
	if update != nil {
		update()
	}
}

// Pending returns the number of paths with fills in flight.
func (g *FillGuard) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.fills)
}
