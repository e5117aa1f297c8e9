package domain

import "time"

// Price states reported by the upstream oracle. PriceStateStale is also
// forced by the relay on snapshots served from its fallback slot.
const (
	PriceStateFresh   = "fresh"
	PriceStateAging   = "aging"
	PriceStateStale   = "stale"
	PriceStateUnknown = "unknown"
)

// StatusUnknown is used when the upstream omits its status field.
const StatusUnknown = "unknown"

// OracleSnapshot is one point-in-time report of the oracle price and its
// quality metrics.
type OracleSnapshot struct {
	Price               float64
	Status              string
	Score               float64
	PriceState          string
	LatencySeconds      float64
	AvgDeviationPercent float64
	MaxDeviationPercent float64
	Checks              int64
}

// IsStale reports whether the snapshot was synthesized from a cached copy.
func (s OracleSnapshot) IsStale() bool {
	return s.PriceState == PriceStateStale
}

// CachedSnapshot is the last successfully fetched snapshot together with the
// time it was captured.
type CachedSnapshot struct {
	Snapshot   OracleSnapshot
	CapturedAt time.Time
}

// Aged returns a stale copy of the cached snapshot as observed at now. The
// latency grows by the wall-clock time elapsed since capture; a clock that
// moved backwards never shrinks it.
func (c CachedSnapshot) Aged(now time.Time) OracleSnapshot {
	out := c.Snapshot
	out.PriceState = PriceStateStale
	if elapsed := now.Sub(c.CapturedAt); elapsed > 0 {
		out.LatencySeconds += elapsed.Seconds()
	}
	return out
}
