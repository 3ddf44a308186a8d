package metrics

import "time"

// Sink receives observations from the write engine. The engine never touches
// a global registry itself; callers inject a Sink at construction time.
type Sink interface {
	// Verdict records one dirty-check outcome ("clean", "all_dirty", "columns").
	Verdict(table, verdict string)
	// SnapshotLookup records a snapshot cache hit or miss.
	SnapshotLookup(table string, hit bool)
	// Overflow records rows redirected to the overflow statement shape.
	Overflow(table string, rows int)
	// Batch records one executed partition.
	Batch(table, op string, rows int, elapsed time.Duration)
	// LockConflict records an optimistic lock conflict.
	LockConflict(table string)
	// CleanupError records a statement close failure during cleanup.
	CleanupError(table string)
}

// Prom is a Sink backed by this package's Prometheus collectors. Call Init
// before serving the Handler.
type Prom struct{}

func (Prom) Verdict(table, verdict string) {
	VerdictTotal.WithLabelValues(table, verdict).Inc()
}

func (Prom) SnapshotLookup(table string, hit bool) {
	if hit {
		SnapshotHits.WithLabelValues(table).Inc()
	} else {
		SnapshotMisses.WithLabelValues(table).Inc()
	}
}

func (Prom) Overflow(table string, rows int) {
	ShapeOverflow.WithLabelValues(table).Add(float64(rows))
}

func (Prom) Batch(table, op string, rows int, elapsed time.Duration) {
	PartitionSize.WithLabelValues(table, op).Observe(float64(rows))
	BatchLatency.WithLabelValues(table, op).Observe(elapsed.Seconds())
}

func (Prom) LockConflict(table string) {
	LockConflicts.WithLabelValues(table).Inc()
}

func (Prom) CleanupError(table string) {
	CleanupErrors.WithLabelValues(table).Inc()
}

// Nop is a Sink that discards everything.
type Nop struct{}

func (Nop) Verdict(string, string)                      {}
func (Nop) SnapshotLookup(string, bool)                 {}
func (Nop) Overflow(string, int)                        {}
func (Nop) Batch(string, string, int, time.Duration)    {}
func (Nop) LockConflict(string)                         {}
func (Nop) CleanupError(string)                         {}
