package notification

import (
	"sync"
	"time"
)

// dedupSet is an in-memory TTL set used to collapse duplicate notifications.
// Keys expire after the window; expired entries are pruned lazily on access.
// Being in-memory, the window is per-process: after a restart a duplicate may
// slip through, which is acceptable for a best-effort collapse.
type dedupSet struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

func newDedupSet(window time.Duration) *dedupSet {
	return &dedupSet{
		window: window,
		seen:   make(map[string]time.Time),
	}
}

// observe records key and reports whether it was already present within the
// window.
func (s *dedupSet) observe(key string) bool {
	if s.window <= 0 {
		return false
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.window)
	for k, at := range s.seen {
		if at.Before(cutoff) {
			delete(s.seen, k)
		}
	}

	_, dup := s.seen[key]
	s.seen[key] = now

	return dup
}

// forget drops key from the set.
func (s *dedupSet) forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.seen, key)
}
