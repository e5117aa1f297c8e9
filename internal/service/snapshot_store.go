package service

import (
	"sync"
	"time"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
)

// SnapshotStore holds the last successfully fetched oracle snapshot. It has
// a single slot with no expiry other than being overwritten, and is safe for
// concurrent use.
type SnapshotStore struct {
	mu     sync.Mutex
	cached *domain.CachedSnapshot
}

// NewSnapshotStore creates an empty SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Put replaces the cached snapshot.
func (s *SnapshotStore) Put(snap domain.OracleSnapshot, capturedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = &domain.CachedSnapshot{Snapshot: snap, CapturedAt: capturedAt}
}

// Get returns a copy of the cached snapshot, or false when nothing has been
// stored yet.
func (s *SnapshotStore) Get() (domain.CachedSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		return domain.CachedSnapshot{}, false
	}
	return *s.cached, true
}
