package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── HTTP request metrics (RED method) ──────────────────────────────────

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "unlock_emissions",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status_code"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "unlock_emissions",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "unlock_emissions",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being processed.",
	})
)

// ── Batch run metrics ──────────────────────────────────────────────────

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "unlock_emissions",
		Subsystem: "run",
		Name:      "total",
		Help:      "Total number of batch runs by outcome.",
	}, []string{"status"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "unlock_emissions",
		Subsystem: "run",
		Name:      "duration_seconds",
		Help:      "Wall-clock duration of a batch run in seconds.",
		Buckets:   []float64{10, 30, 60, 120, 300, 600, 840},
	})

	RunLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "unlock_emissions",
		Subsystem: "run",
		Name:      "last_success_timestamp",
		Help:      "Unix timestamp of the last batch run that completed without a batch-level error.",
	})

	AdaptersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "unlock_emissions",
		Subsystem: "run",
		Name:      "adapters_active",
		Help:      "Number of adapters currently being processed.",
	})

	IndexSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "unlock_emissions",
		Subsystem: "run",
		Name:      "index_size",
		Help:      "Number of protocols in the persisted protocol index.",
	})
)

// ── Per-protocol metrics ───────────────────────────────────────────────

var (
	ProtocolsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "unlock_emissions",
		Subsystem: "protocol",
		Name:      "processed_total",
		Help:      "Total protocol definitions processed by outcome.",
	}, []string{"adapter", "status"})

	ProtocolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "unlock_emissions",
		Subsystem: "protocol",
		Name:      "duration_seconds",
		Help:      "Duration of processing one protocol definition in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 180},
	}, []string{"adapter"})
)

// ── Upstream lookups ───────────────────────────────────────────────────

var (
	PriceLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "unlock_emissions",
		Subsystem: "prices",
		Name:      "lookups_total",
		Help:      "Historical price lookups by result (hit, ok, missing, error).",
	}, []string{"status"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "unlock_emissions",
		Subsystem: "notify",
		Name:      "sent_total",
		Help:      "Notifications sent by channel and outcome.",
	}, []string{"channel", "status"})
)
