package service

import "sync"

// busyPaths tracks drawing files with a save in flight. A save that finds
// its path busy is dropped, not queued: the running save already captures
// the live scene, so a second write of the same file adds nothing.
type busyPaths struct {
	mu    sync.Mutex
	paths map[string]struct{}
	// idle is closed whenever no save is in flight.
	idle  chan struct{}
}

// claim marks path busy and returns the func that frees it. ok is false
// when path was already busy.
func (b *busyPaths) claim(path string) (release func(), ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paths == nil {
		b.paths = make(map[string]struct{})
	}
	if _, busy := b.paths[path]; busy {
		return nil, false
	}
	if len(b.paths) == 0 {
		b.idle = make(chan struct{})
	}
	b.paths[path] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.paths, path)
			if len(b.paths) == 0 {
				close(b.idle)
			}
		})
	}, true
}

// drained returns a channel that is closed once nothing is being saved.
func (b *busyPaths) drained() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.paths) == 0 {
		done := make(chan struct{})
		close(done)
		return done
	}
	return b.idle
}
