package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// VerdictTotal counts dirty-check verdicts by table and verdict kind
	VerdictTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tqentity_verdict_total",
			Help: "Total number of dirty-check verdicts",
		},
		[]string{"table", "verdict"},
	)

	// SnapshotHits counts snapshot cache hits by table
	SnapshotHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tqentity_snapshot_hits_total",
			Help: "Total number of snapshot cache hits",
		},
		[]string{"table"},
	)

	// SnapshotMisses counts snapshot cache misses by table
	SnapshotMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tqentity_snapshot_misses_total",
			Help: "Total number of snapshot cache misses",
		},
		[]string{"table"},
	)

	// PartitionSize tracks executed partition sizes by table and operation
	PartitionSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tqentity_partition_size",
			Help:    "Number of rows per executed partition",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"table", "op"},
	)

	// ShapeOverflow counts rows redirected into the overflow statement shape
	ShapeOverflow = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tqentity_shape_overflow_total",
			Help: "Total rows redirected to the overflow statement shape",
		},
		[]string{"table"},
	)

	// BatchLatency tracks batch execution latency by table and operation
	BatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tqentity_batch_latency_seconds",
			Help:    "Batch execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table", "op"},
	)

	// LockConflicts counts optimistic lock conflicts by table
	LockConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tqentity_lock_conflicts_total",
			Help: "Total number of optimistic lock conflicts",
		},
		[]string{"table"},
	)

	// CleanupErrors counts statement close failures demoted to warnings
	CleanupErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tqentity_cleanup_errors_total",
			Help: "Total number of statement close failures during cleanup",
		},
		[]string{"table"},
	)

	once sync.Once
)

// Init registers all metrics with Prometheus
func Init() {
	once.Do(func() {
		prometheus.MustRegister(VerdictTotal)
		prometheus.MustRegister(SnapshotHits)
		prometheus.MustRegister(SnapshotMisses)
		prometheus.MustRegister(PartitionSize)
		prometheus.MustRegister(ShapeOverflow)
		prometheus.MustRegister(BatchLatency)
		prometheus.MustRegister(LockConflicts)
		prometheus.MustRegister(CleanupErrors)
	})
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
