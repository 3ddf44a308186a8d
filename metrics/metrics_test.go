package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_Init(t *testing.T) {
	// Init should not panic when called multiple times
	Init()
	Init()
}

func TestMetrics_Handler(t *testing.T) {
	Init()

	// Create a test request to /metrics
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()

	// Check that our custom metrics are registered
	expectedMetrics := []string{
		"tqentity_verdict_total",
		"tqentity_snapshot_hits_total",
		"tqentity_snapshot_misses_total",
		"tqentity_partition_size",
		"tqentity_shape_overflow_total",
		"tqentity_batch_latency_seconds",
		"tqentity_lock_conflicts_total",
		"tqentity_cleanup_errors_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Expected metric %q not found in response", metric)
		}
	}
}

func TestPromSink(t *testing.T) {
	Init()

	var sink Sink = Prom{}
	sink.Verdict("users", "clean")
	sink.SnapshotLookup("users", true)
	sink.SnapshotLookup("users", false)
	sink.Overflow("users", 3)
	sink.Batch("users", "update", 50, 2*time.Millisecond)
	sink.LockConflict("users")
	sink.CleanupError("users")

	// Verify by checking /metrics output
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, `table="users"`) {
		t.Error("Expected label table=users in output")
	}
}

func TestNopSink(t *testing.T) {
	// Nop must accept everything without side effects or panics.
	var sink Sink = Nop{}
	sink.Verdict("t", "clean")
	sink.SnapshotLookup("t", false)
	sink.Overflow("t", 1)
	sink.Batch("t", "insert", 1, time.Millisecond)
	sink.LockConflict("t")
	sink.CleanupError("t")
}
