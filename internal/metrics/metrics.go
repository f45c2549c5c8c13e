// README: Process-wide Prometheus collectors, registered on the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_cache_hits_total",
			Help: "Cache lookups that found a live entry",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_cache_misses_total",
			Help: "Cache lookups that found nothing or an expired entry",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_cache_evictions_total",
			Help: "Entries removed by capacity or expiry",
		},
		[]string{"cache", "cause"},
	)

	DedupShared = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_dedup_shared_total",
			Help: "Calls that attached to an in-flight identical call",
		},
		[]string{"group"},
	)

	GateInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_gate_in_flight",
			Help: "Requests currently admitted",
		},
	)

	GateQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_gate_queued",
			Help: "Requests waiting for admission",
		},
	)

	GateRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_gate_rejected_total",
			Help: "Requests refused by the admission gate",
		},
		[]string{"cause"},
	)

	SearchResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_search_responses_total",
			Help: "Search responses by mode and failure reason",
		},
		[]string{"mode", "reason"},
	)

	NarrationSource = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_narration_total",
			Help: "Assistant messages by source and fallback cause",
		},
		[]string{"source", "cause"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scout_stage_duration_seconds",
			Help:    "Duration of each search stage in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)
)
