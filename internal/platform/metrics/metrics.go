package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the safeguard engine.
type Metrics struct {
	TransfersAdmitted  prometheus.Counter
	TransfersCompleted prometheus.Counter
	TransfersFailed    prometheus.Counter
	TransfersRejected  *prometheus.CounterVec

	StagedTransfers  prometheus.Counter
	StagingResolved  *prometheus.CounterVec
	RateLimitDenials prometheus.Counter

	ExecutorDuration prometheus.Histogram
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		TransfersAdmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundgate_transfers_admitted_total",
			Help: "Transfer attempts that passed every safeguard gate",
		}),
		TransfersCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundgate_transfers_completed_total",
			Help: "Admitted transfers the executor completed",
		}),
		TransfersFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundgate_transfers_failed_total",
			Help: "Admitted transfers that failed at the executor",
		}),
		TransfersRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fundgate_transfers_rejected_total",
			Help: "Transfer attempts rejected before execution, by reason",
		}, []string{"reason"}),
		StagedTransfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundgate_staged_transfers_total",
			Help: "Transfers staged for two-phase confirmation",
		}),
		StagingResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fundgate_staging_resolved_total",
			Help: "Staged transfers resolved, by terminal status",
		}, []string{"status"}),
		RateLimitDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fundgate_rate_limit_denials_total",
			Help: "Messages rejected by the per-identity rate limiter",
		}),
		ExecutorDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fundgate_executor_duration_seconds",
			Help:    "Latency of upstream transfer execution",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
