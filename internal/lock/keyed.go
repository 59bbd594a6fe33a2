// Package lock serializes work per key while letting different keys run in parallel.
package lock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Keyed is a set of mutexes indexed by string. Idle entries are dropped.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewKeyed creates an empty Keyed lock.
func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

// Lock blocks until key is held and returns the matching unlock function.
func (k *Keyed) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

// Size returns the number of keys currently held or awaited.
func (k *Keyed) Size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
