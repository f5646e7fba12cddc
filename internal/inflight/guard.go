// Package inflight suppresses duplicate concurrent actions on the same key.
package inflight

import "sync"

// Guard tracks keys with an action currently in progress. The zero value is
// ready to use.
type Guard struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

// New returns an empty guard.
func New() *Guard {
	return &Guard{busy: make(map[string]struct{})}
}

// TryAcquire marks key busy. It returns a release func and true when the key
// was free, or nil and false when another caller holds it.
func (g *Guard) TryAcquire(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy == nil {
		g.busy = make(map[string]struct{})
	}
	if _, held := g.busy[key]; held {
		return nil, false
	}
	g.busy[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.busy, key)
			g.mu.Unlock()
		})
	}, true
}
