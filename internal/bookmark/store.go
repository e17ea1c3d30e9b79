// Package bookmark holds the per-process bookmark state: one Store per
// logical database, owned by a Registry that is passed around explicitly.
package bookmark

import (
	"sync"
	"sync/atomic"

	"bookmarksync/internal/domain"
)

// Store holds the current merged bookmark set of one database.
//
// Reads are lock-free loads of an immutable snapshot. Merges serialize on a
// short mutex around union-and-replace, so no update is ever lost. No I/O
// happens while the mutex is held.
type Store struct {
	database string
	current  atomic.Pointer[domain.BookmarkSet]
	mu       sync.Mutex
}

// NewStore creates an empty store for database
func NewStore(database string) *Store {
	s := &Store{database: database}
	s.current.Store(&domain.BookmarkSet{})
	return s
}

// Database returns the database this store belongs to
func (s *Store) Database() string {
	return s.database
}

// Current returns a consistent snapshot of the merged set
func (s *Store) Current() domain.BookmarkSet {
	return *s.current.Load()
}

// Merge unions incoming into the current set and reports whether it grew.
// It never publishes anything; broadcasting is the publisher's job.
func (s *Store) Merge(incoming domain.BookmarkSet) bool {
	if incoming.IsEmpty() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	if cur.ContainsAll(incoming) {
		return false
	}
	next := cur.Union(incoming)
	s.current.Store(&next)
	return true
}
