// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// SourceCalls counts source queries by outcome ("ok", "timeout",
	// "transport_error", "malformed_response").
	SourceCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keydate_source_calls_total",
			Help: "Total number of date-source queries by outcome",
		},
		[]string{"source", "outcome"},
	)

	SourceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keydate_source_latency_seconds",
			Help:    "Latency of individual date-source queries",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 45},
		},
		[]string{"source"},
	)

	OrchestrationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "keydate_orchestration_duration_seconds",
			Help:    "Wall time of one fan-out pass across all sources",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		},
	)

	RankedDates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "keydate_ranked_dates",
			Help:    "Number of ranked dates produced per item",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6},
		},
	)

	PipelineItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_items_processed_total",
			Help: "Inventory items processed by the batch driver",
		},
		[]string{"status"},
	)

	PriceMultipliers = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricing_multiplier",
			Help:    "Multipliers computed by the pricing engine",
			Buckets: []float64{0.9, 1.0, 1.1, 1.15, 1.2, 1.25, 1.3, 1.35, 1.5},
		},
	)

	// TierVotes counts tier classifications by source and outcome (a tier
	// name or a source error kind).
	TierVotes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_tier_votes_total",
			Help: "Event tier classifications by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	PriceUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_price_updates_total",
			Help: "Listing price updates pushed to the marketplace",
		},
		[]string{"outcome"},
	)
)
