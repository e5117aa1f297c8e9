package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
)

// HistoryStore implements domain.HistoryStore using PostgreSQL.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a new HistoryStore backed by the given connection pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// List returns every retained record ordered by id ascending.
func (s *HistoryStore) List(ctx context.Context) ([]domain.HistoryRecord, error) {
	const query = `SELECT id, price, timestamp FROM price_history ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list price history: %w", err)
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		var r domain.HistoryRecord
		if err := rows.Scan(&r.ID, &r.Price, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan price history: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list price history rows: %w", err)
	}
	return records, nil
}

// InsertAndTrim inserts a record and deletes every row outside the keep
// highest ids, in one transaction holding an exclusive table lock.
func (s *HistoryStore) InsertAndTrim(ctx context.Context, price float64, timestamp int64, keep int) (domain.HistoryRecord, error) {
	rec := domain.HistoryRecord{Price: price, Timestamp: timestamp}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Writers from other processes would otherwise interleave their
		// trims and leave more than keep rows behind.
		if _, err := tx.Exec(ctx, `LOCK TABLE price_history IN EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock: %w", err)
		}

		const insert = `INSERT INTO price_history (price, timestamp) VALUES ($1, $2) RETURNING id`
		if err := tx.QueryRow(ctx, insert, price, timestamp).Scan(&rec.ID); err != nil {
			return fmt.Errorf("insert: %w", err)
		}

		const trim = `
			DELETE FROM price_history
			WHERE id NOT IN (SELECT id FROM price_history ORDER BY id DESC LIMIT $1)`
		if _, err := tx.Exec(ctx, trim, keep); err != nil {
			return fmt.Errorf("trim: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("postgres: record price %v: %w", price, err)
	}
	return rec, nil
}

// Compile-time interface check.
var _ domain.HistoryStore = (*HistoryStore)(nil)
