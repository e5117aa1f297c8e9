package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
)

// Fetcher returns the current oracle snapshot, live or stale.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.OracleSnapshot, error)
}

// PriceHistory is the ledger as seen by the relay.
type PriceHistory interface {
	PreviousPrice(ctx context.Context) (float64, bool)
	Record(price float64)
}

// RelayService is the facade the HTTP layer calls. It turns a snapshot into
// a domain.Quote and feeds the history ledger.
type RelayService struct {
	fetcher Fetcher
	history PriceHistory
	format  PriceFormat
	logger  *slog.Logger
}

// NewRelayService creates a RelayService.
func NewRelayService(fetcher Fetcher, history PriceHistory, format PriceFormat, logger *slog.Logger) *RelayService {
	return &RelayService{
		fetcher: fetcher,
		history: history,
		format:  format,
		logger:  logger.With(slog.String("component", "relay")),
	}
}

// Quote fetches the current snapshot and derives the public price fields.
// The previous price falls back to the current one when there is no
// history. The observation is recorded after the quote is built and never
// delays it. Quote returns domain.ErrUnavailable when no snapshot exists.
func (s *RelayService) Quote(ctx context.Context) (domain.Quote, error) {
	snap, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("relay: quote: %w", err)
	}

	previous, ok := s.history.PreviousPrice(ctx)
	if !ok {
		previous = snap.Price
	}

	q := BuildQuote(snap, previous, s.format)
	s.history.Record(snap.Price)
	return q, nil
}

// Snapshot fetches the current snapshot without touching the ledger.
func (s *RelayService) Snapshot(ctx context.Context) (domain.OracleSnapshot, error) {
	snap, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return domain.OracleSnapshot{}, fmt.Errorf("relay: snapshot: %w", err)
	}
	return snap, nil
}

// BuildQuote derives the public fields from a snapshot and a previous
// price. Exactly one of IsUp, IsDown and IsNeutral is set.
func BuildQuote(snap domain.OracleSnapshot, previous float64, format PriceFormat) domain.Quote {
	change := snap.Price - previous
	return domain.Quote{
		Price:           snap.Price,
		FormattedPrice:  format.Format(snap.Price),
		PreviousPrice:   previous,
		PriceChange:     change,
		IsUp:            change > 0,
		IsDown:          change < 0,
		IsNeutral:       change == 0,
		PriceAgeSeconds: snap.LatencySeconds,
		PriceState:      snap.PriceState,
	}
}
