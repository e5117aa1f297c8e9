// Package memory provides in-process implementations of domain stores for
// local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
)

// HistoryStore implements domain.HistoryStore on a slice. IDs are assigned
// from a counter that never goes backwards, like an auto-increment column.
type HistoryStore struct {
	mu      sync.Mutex
	nextID  int64
	records []domain.HistoryRecord
}

// NewHistoryStore creates an empty HistoryStore.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{nextID: 1}
}

// List returns a copy of the retained records ordered by ID ascending.
func (s *HistoryStore) List(_ context.Context) ([]domain.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.HistoryRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// InsertAndTrim appends a record and keeps only the keep highest IDs.
func (s *HistoryStore) InsertAndTrim(_ context.Context, price float64, timestamp int64, keep int) (domain.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := domain.HistoryRecord{ID: s.nextID, Price: price, Timestamp: timestamp}
	s.nextID++
	s.records = append(s.records, rec)

	sort.Slice(s.records, func(i, j int) bool { return s.records[i].ID < s.records[j].ID })
	if keep >= 0 && len(s.records) > keep {
		s.records = append([]domain.HistoryRecord(nil), s.records[len(s.records)-keep:]...)
	}
	return rec, nil
}

// Compile-time interface check.
var _ domain.HistoryStore = (*HistoryStore)(nil)
