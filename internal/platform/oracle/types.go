package oracle

import "github.com/alanyoungcy/oraclerelay/internal/domain"

// healthResponse mirrors the oracle bot's /oracle/health payload. Every
// field is optional on the wire; nil means the upstream omitted it or sent
// null.
type healthResponse struct {
	Status              *string  `json:"status"`
	Score               *float64 `json:"score"`
	PriceState          *string  `json:"price_state"`
	LatencySeconds      *float64 `json:"latency_seconds"`
	AvgDeviationPercent *float64 `json:"avg_deviation_percent"`
	MaxDeviationPercent *float64 `json:"max_deviation_percent"`
	LastOraclePrice     *float64 `json:"last_oracle_price"`
	Checks              *int64   `json:"checks"`
}

// toSnapshot applies per-field defaults. It reports false when the required
// price field is missing.
func (r healthResponse) toSnapshot() (domain.OracleSnapshot, bool) {
	if r.LastOraclePrice == nil {
		return domain.OracleSnapshot{}, false
	}
	return domain.OracleSnapshot{
		Price:               *r.LastOraclePrice,
		Status:              stringOr(r.Status, domain.StatusUnknown),
		Score:               floatOr(r.Score, 0),
		PriceState:          stringOr(r.PriceState, domain.PriceStateUnknown),
		LatencySeconds:      floatOr(r.LatencySeconds, 0),
		AvgDeviationPercent: floatOr(r.AvgDeviationPercent, 0),
		MaxDeviationPercent: floatOr(r.MaxDeviationPercent, 0),
		Checks:              intOr(r.Checks, 0),
	}, true
}

func stringOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int64, def int64) int64 {
	if v == nil {
		return def
	}
	return *v
}
