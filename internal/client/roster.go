package client

import (
	"slices"
	"sync"
)

// Roster caches the online users last reported by the server.
type Roster struct {
	mu    sync.RWMutex
	names []string
}

// Update replaces the cached list.
func (r *Roster) Update(names []string) {
	r.mu.Lock()
	r.names = slices.Clone(names)
	r.mu.Unlock()
}

// Contains reports whether name was online in the latest update.
func (r *Roster) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.names, name)
}

// Names returns a copy of the cached list.
func (r *Roster) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.names)
}
