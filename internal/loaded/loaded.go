// Package loaded tracks which canonical identifiers have been evaluated.
package loaded

import (
	"sort"
	"sync"
)

// Set is a grow-only set of identifiers. There is no removal: once an
// identifier is recorded every later request for it is already satisfied.
type Set struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// New returns an empty Set.
func New() *Set {
	return &Set{ids: make(map[string]struct{})}
}

// Contains reports whether id has been recorded.
func (s *Set) Contains(id string) bool {
	s.mu.RLock()
	_, ok := s.ids[id]
	s.mu.RUnlock()
	return ok
}

// Record adds id to the set.
func (s *Set) Record(id string) {
	s.RecordIfAbsent(id)
}

// RecordIfAbsent adds id and reports whether this call added it. Exactly one
// of several concurrent callers for the same id gets true.
func (s *Set) RecordIfAbsent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Len returns the number of recorded identifiers.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// List returns the recorded identifiers in sorted order.
func (s *Set) List() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}
