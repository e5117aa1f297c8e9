package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
	"github.com/alanyoungcy/oraclerelay/internal/metrics"
)

// retainedRecords is the size of the history window.
const retainedRecords = 2

// LedgerConfig holds the dedup and retention thresholds of the ledger.
type LedgerConfig struct {
	// PriceDeltaThreshold is the absolute price move that makes an
	// observation novel. It is a raw price-unit value, not a percentage.
	PriceDeltaThreshold float64
	// Debounce is the minimum age of a lone record before a second one is
	// accepted.
	Debounce time.Duration
	// MinUpdateInterval forces an insert once the newest record is older
	// than this, whatever the price.
	MinUpdateInterval time.Duration
	// QueueSize bounds the number of pending observations.
	QueueSize int
}

// DefaultLedgerConfig returns the production thresholds.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		PriceDeltaThreshold: 1,
		Debounce:            2 * time.Second,
		MinUpdateInterval:   300 * time.Second,
		QueueSize:           64,
	}
}

type observation struct {
	price float64
	at    time.Time
}

// HistoryLedger keeps a deduplicated window of at most two accepted price
// observations. Writes are handed to a single worker goroutine (see Run) so
// callers never wait on the store. Store failures are logged and absorbed.
type HistoryLedger struct {
	store  domain.HistoryStore
	cfg    LedgerConfig
	clk    clock.Clock
	logger *slog.Logger

	// mu serializes every read and every read/insert/trim sequence.
	mu      sync.Mutex
	pending chan observation
}

// NewHistoryLedger creates a HistoryLedger over store. A nil clk uses the
// wall clock.
func NewHistoryLedger(store domain.HistoryStore, cfg LedgerConfig, clk clock.Clock, logger *slog.Logger) *HistoryLedger {
	def := DefaultLedgerConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if clk == nil {
		clk = clock.New()
	}
	return &HistoryLedger{
		store:   store,
		cfg:     cfg,
		clk:     clk,
		logger:  logger.With(slog.String("component", "history_ledger")),
		pending: make(chan observation, cfg.QueueSize),
	}
}

// Record queues a price observation for the worker. It never blocks: when
// the queue is full the observation is dropped.
func (l *HistoryLedger) Record(price float64) {
	obs := observation{price: price, at: l.clk.Now()}
	select {
	case l.pending <- obs:
	default:
		metrics.RecordLedger(metrics.LedgerDropped)
		l.logger.Warn("history queue full, observation dropped",
			slog.Float64("price", price),
		)
	}
}

// Run applies queued observations in order until ctx is cancelled. Call it
// in its own goroutine.
func (l *HistoryLedger) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case obs := <-l.pending:
			l.observe(ctx, obs)
		}
	}
}

// PreviousPrice returns the oldest retained price. It reports false when the
// ledger is empty or the store cannot be read.
func (l *HistoryLedger) PreviousPrice(ctx context.Context) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.store.List(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "history read failed",
			slog.String("error", fmt.Errorf("%w: %w", domain.ErrHistoryStore, err).Error()),
		)
		return 0, false
	}
	if len(records) == 0 {
		return 0, false
	}
	return records[0].Price, true
}

// observe decides whether obs is novel enough to persist and inserts it if
// so. It returns the decision for metrics and tests.
func (l *HistoryLedger) observe(ctx context.Context, obs observation) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.store.List(ctx)
	if err != nil {
		return l.fail(ctx, "list", err)
	}

	if !l.accept(records, obs) {
		metrics.RecordLedger(metrics.LedgerDiscarded)
		return metrics.LedgerDiscarded
	}

	rec, err := l.store.InsertAndTrim(ctx, obs.price, obs.at.Unix(), retainedRecords)
	if err != nil {
		return l.fail(ctx, "insert", err)
	}

	l.logger.DebugContext(ctx, "price observation recorded",
		slog.Int64("id", rec.ID),
		slog.Float64("price", rec.Price),
		slog.Int64("timestamp", rec.Timestamp),
	)
	metrics.RecordLedger(metrics.LedgerInserted)
	return metrics.LedgerInserted
}

func (l *HistoryLedger) accept(records []domain.HistoryRecord, obs observation) bool {
	switch len(records) {
	case 0:
		return true
	case 1:
		return age(records[0], obs.at) > l.cfg.Debounce
	default:
		// Compare against the newer of the two most recent rows.
		recent := records[len(records)-1]
		if math.Abs(recent.Price-obs.price) > l.cfg.PriceDeltaThreshold {
			return true
		}
		return age(recent, obs.at) > l.cfg.MinUpdateInterval
	}
}

func (l *HistoryLedger) fail(ctx context.Context, op string, err error) string {
	metrics.RecordLedger(metrics.LedgerFailed)
	l.logger.WarnContext(ctx, "history write skipped",
		slog.String("op", op),
		slog.String("error", fmt.Errorf("%w: %w", domain.ErrHistoryStore, err).Error()),
	)
	return metrics.LedgerFailed
}

// age is the time elapsed since rec was stamped. Rows carry whole seconds;
// now keeps its sub-second part.
func age(rec domain.HistoryRecord, now time.Time) time.Duration {
	return now.Sub(time.Unix(rec.Timestamp, 0))
}
