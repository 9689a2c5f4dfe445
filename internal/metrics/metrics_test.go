package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.CacheHit("dashboard")
	m.CacheHit("dashboard")
	m.CacheMiss("dashboard")
	m.CacheError("get")
	m.SourceFailure("activity")

	if got := testutil.ToFloat64(m.cacheHits.WithLabelValues("dashboard")); got != 2 {
		t.Fatalf("hits = %v", got)
	}
	if got := testutil.ToFloat64(m.cacheMisses.WithLabelValues("dashboard")); got != 1 {
		t.Fatalf("misses = %v", got)
	}
	if got := testutil.ToFloat64(m.sourceFailures.WithLabelValues("activity")); got != 1 {
		t.Fatalf("source failures = %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CacheHit("x")
	m.CacheError("set")
	m.SetScored(3)
	m.HTTPRequest("/", http.MethodGet, 200)
	if m.Registry() != nil {
		t.Fatal("nil metrics should expose no registry")
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.SetScored(42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthscore_customers_scored 42") {
		t.Fatalf("gauge missing from output:\n%s", rec.Body.String())
	}
}
