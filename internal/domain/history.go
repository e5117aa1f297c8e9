package domain

import "context"

// HistoryRecord is one accepted price observation. Timestamp is in unix
// seconds; ID grows monotonically with insertion order.
type HistoryRecord struct {
	ID        int64
	Price     float64
	Timestamp int64
}

// HistoryStore persists the bounded price history.
type HistoryStore interface {
	// List returns every retained record ordered by ID ascending.
	List(ctx context.Context) ([]HistoryRecord, error)
	// InsertAndTrim appends a record and then deletes everything except the
	// keep highest-ID rows, as one atomic step.
	InsertAndTrim(ctx context.Context, price float64, timestamp int64, keep int) (HistoryRecord, error)
}
