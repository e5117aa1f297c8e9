// Package metrics holds the relay's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/oraclerelay/internal/domain"
)

// Fetch outcomes.
const (
	FetchLive        = "live"
	FetchStale       = "stale"
	FetchUnavailable = "unavailable"
)

// Ledger decisions.
const (
	LedgerInserted  = "inserted"
	LedgerDiscarded = "discarded"
	LedgerDropped   = "dropped"
	LedgerFailed    = "failed"
)

var (
	// Registry holds the relay's collectors. It is served on /metrics.
	Registry = prometheus.NewRegistry()

	oracleFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oraclerelay",
			Subsystem: "oracle",
			Name:      "fetches_total",
			Help:      "Oracle fetches by outcome (live, stale, unavailable).",
		},
		[]string{"outcome"},
	)

	oracleFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "oraclerelay",
			Subsystem: "oracle",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of upstream oracle requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 11), // 5ms to ~5s
		},
	)

	snapshotAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "oraclerelay",
			Subsystem: "oracle",
			Name:      "served_latency_seconds",
			Help:      "Latency of the most recently served snapshot, including staleness.",
		},
	)

	oracleScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "oraclerelay",
			Subsystem: "oracle",
			Name:      "score",
			Help:      "Quality score reported by the last live snapshot.",
		},
	)

	oracleDeviation = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "oraclerelay",
			Subsystem: "oracle",
			Name:      "deviation_percent",
			Help:      "Source deviation reported by the last live snapshot (avg, max).",
		},
		[]string{"stat"},
	)

	oracleChecks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "oraclerelay",
			Subsystem: "oracle",
			Name:      "checks",
			Help:      "Health check count reported by the last live snapshot.",
		},
	)

	oracleStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "oraclerelay",
			Subsystem: "oracle",
			Name:      "status_info",
			Help:      "Set to 1 for the status and price state of the last live snapshot.",
		},
		[]string{"status", "price_state"},
	)

	ledgerDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oraclerelay",
			Subsystem: "history",
			Name:      "observations_total",
			Help:      "Price observations handed to the history ledger, by decision.",
		},
		[]string{"decision"},
	)

	rateLimitDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oraclerelay",
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions by caller trust and result.",
		},
		[]string{"trusted", "allowed"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oraclerelay",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oraclerelay",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 13),
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		oracleFetches,
		oracleFetchDuration,
		snapshotAge,
		oracleScore,
		oracleDeviation,
		oracleChecks,
		oracleStatus,
		ledgerDecisions,
		rateLimitDecisions,
		httpRequests,
		httpDuration,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordFetch counts one fetch outcome.
func RecordFetch(outcome string) {
	oracleFetches.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records the duration of one upstream request.
func ObserveUpstream(d time.Duration) {
	oracleFetchDuration.Observe(d.Seconds())
}

// SetServedLatency records the latency of the snapshot just served.
func SetServedLatency(seconds float64) {
	snapshotAge.Set(seconds)
}

// SetSnapshotQuality exports the quality fields of a live snapshot. Only the
// latest status and price state pair is kept.
func SetSnapshotQuality(snap domain.OracleSnapshot) {
	oracleScore.Set(snap.Score)
	oracleDeviation.WithLabelValues("avg").Set(snap.AvgDeviationPercent)
	oracleDeviation.WithLabelValues("max").Set(snap.MaxDeviationPercent)
	oracleChecks.Set(float64(snap.Checks))
	oracleStatus.Reset()
	oracleStatus.WithLabelValues(snap.Status, snap.PriceState).Set(1)
}

// RecordLedger counts one ledger decision.
func RecordLedger(decision string) {
	ledgerDecisions.WithLabelValues(decision).Inc()
}

// RecordRateLimit counts one rate limit decision.
func RecordRateLimit(trusted, allowed bool) {
	rateLimitDecisions.WithLabelValues(strconv.FormatBool(trusted), strconv.FormatBool(allowed)).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, path string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
