package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/objectfs/s3drive/pkg/errors"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	t.Run("with valid config", func(t *testing.T) {
		config := &Config{
			Enabled:   true,
			Address:   ":0",
			Path:      "/metrics",
			Namespace: "s3drive",
			Subsystem: "test",
		}
		collector, err := NewCollector(config)
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.config != config {
			t.Error("collector.config does not match input config")
		}
		if collector.Registry() == nil {
			t.Error("collector registry is nil")
		}
	})

	t.Run("with nil config uses defaults", func(t *testing.T) {
		collector, err := NewCollector(nil)
		if err != nil {
			t.Fatalf("NewCollector(nil) error = %v, want nil", err)
		}
		if collector.config.Path != "/metrics" {
			t.Errorf("default path = %q, want %q", collector.config.Path, "/metrics")
		}
		if collector.config.Namespace != "s3drive" {
			t.Errorf("default namespace = %q, want %q", collector.config.Namespace, "s3drive")
		}
	})

	t.Run("with disabled config", func(t *testing.T) {
		collector, err := NewCollector(&Config{Enabled: false})
		if err != nil {
			t.Fatalf("NewCollector() error = %v", err)
		}
		if collector.Registry() != nil {
			t.Error("disabled collector should not have registry")
		}

		// Should not panic
		collector.RecordOperation("get_object", time.Millisecond, 10, true)
		collector.RecordCacheHit("existence")
		collector.RecordError("get_object", fmt.Errorf("boom"))
		collector.RecordRemaps("MoveFolder", 3)
		if len(collector.operations) != 0 {
			t.Error("disabled collector should not track operations")
		}
		if err := collector.Start(context.Background()); err != nil {
			t.Errorf("Start() on disabled collector = %v", err)
		}
	})
}

func TestRecordOperation(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&Config{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	collector.RecordOperation("get_object", 100*time.Millisecond, 1000, true)
	collector.RecordOperation("get_object", 200*time.Millisecond, 2000, true)
	collector.RecordOperation("get_object", 300*time.Millisecond, 3000, false)

	operations := collector.GetMetrics()["operations"].(map[string]*OperationMetrics)
	op := operations["get_object"]
	if op.Count != 3 {
		t.Errorf("op.Count = %d, want 3", op.Count)
	}
	if op.Errors != 1 {
		t.Errorf("op.Errors = %d, want 1", op.Errors)
	}
	if op.AvgSize != 2000 {
		t.Errorf("op.AvgSize = %.2f, want 2000", op.AvgSize)
	}
	if op.AvgDuration != 200*time.Millisecond {
		t.Errorf("op.AvgDuration = %v, want 200ms", op.AvgDuration)
	}

	if got := testutil.ToFloat64(collector.operationCounter.WithLabelValues("get_object", "success")); got != 2 {
		t.Errorf("success counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.operationCounter.WithLabelValues("get_object", "error")); got != 1 {
		t.Errorf("error counter = %v, want 1", got)
	}

	collector.ResetMetrics()
	if n := len(collector.GetMetrics()["operations"].(map[string]*OperationMetrics)); n != 0 {
		t.Errorf("operations after reset = %d, want 0", n)
	}
}

func TestRecordCacheAndRemaps(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&Config{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	collector.RecordCacheHit("existence")
	collector.RecordCacheHit("existence")
	collector.RecordCacheMiss("permissions")
	collector.UpdateCacheEntries("existence", 42)
	collector.RecordRemaps("MoveFolder", 4)
	collector.RecordRemaps("MoveFolder", 0)

	if got := testutil.ToFloat64(collector.cacheCounter.WithLabelValues("existence", "hit")); got != 2 {
		t.Errorf("existence hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.cacheCounter.WithLabelValues("permissions", "miss")); got != 1 {
		t.Errorf("permission misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.cacheEntries.WithLabelValues("existence")); got != 42 {
		t.Errorf("existence entries = %v, want 42", got)
	}
	if got := testutil.ToFloat64(collector.remapCounter.WithLabelValues("MoveFolder")); got != 4 {
		t.Errorf("remaps = %v, want 4", got)
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{errors.NewError(errors.ErrCodeObjectNotFound, "gone"), "object_not_found"},
		{fmt.Errorf("wrapped: %w", errors.NewError(errors.ErrCodeAccessDenied, "no")), "access_denied"},
		{fmt.Errorf("i/o timeout"), "timeout"},
		{fmt.Errorf("connection refused"), "connection"},
		{fmt.Errorf("key not found"), "not_found"},
		{fmt.Errorf("Access Denied"), "permission"},
		{fmt.Errorf("SlowDown: please reduce your request rate"), "throttling"},
		{fmt.Errorf("something else"), "other"},
	}

	for _, tt := range tests {
		if got := classifyError(tt.err); got != tt.want {
			t.Errorf("classifyError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&Config{Enabled: true, Namespace: "test", Path: "/metrics"})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}
	collector.RecordOperation("put_object", time.Millisecond, 2048, true)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_operations_total") {
		t.Error("metrics output does not contain test_operations_total")
	}

	rec = httptest.NewRecorder()
	collector.debugOperationsHandler(rec, httptest.NewRequest(http.MethodGet, "/debug/operations", nil))
	if !strings.Contains(rec.Body.String(), "put_object") {
		t.Error("debug output does not list put_object")
	}

	disabled, _ := NewCollector(&Config{Enabled: false})
	rec = httptest.NewRecorder()
	disabled.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("disabled handler status = %d, want 404", rec.Code)
	}
}
