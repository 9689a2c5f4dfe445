package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prompt-general/healthscore/internal/aggregator"
	"github.com/prompt-general/healthscore/internal/config"
	"github.com/prompt-general/healthscore/internal/customersuccess"
	"github.com/prompt-general/healthscore/internal/health"
	"github.com/prompt-general/healthscore/internal/metrics"
	"github.com/prompt-general/healthscore/internal/window"
)

type fakeViews struct {
	err      error
	clearErr error
	lastWin  window.Window
	cleared  string
}

func (f *fakeViews) HealthScoresJSON(_ context.Context, w window.Window) ([]byte, error) {
	f.lastWin = w
	if f.err != nil {
		return nil, f.err
	}
	return []byte(`{"123":{"customer_id":"123","total":0.71,"category":"Healthy"}}`), nil
}

func (f *fakeViews) DashboardJSON(_ context.Context, w window.Window) ([]byte, error) {
	f.lastWin = w
	if f.err != nil {
		return nil, f.err
	}
	return []byte(`{"active":2,"mrr":"500"}`), nil
}

func (f *fakeViews) ClearCache(_ context.Context, scope string) (customersuccess.ClearResult, error) {
	f.cleared = scope
	if f.clearErr != nil {
		return customersuccess.ClearResult{}, f.clearErr
	}
	if scope == "" {
		scope = customersuccess.ScopeAll
	}
	return customersuccess.ClearResult{Scope: scope, Removed: 3}, nil
}

func newTestGateway(views Views, users map[string]string) (*Gateway, *metrics.Metrics) {
	cfg := config.Default().API
	cfg.BasicAuthUsers = users
	m := metrics.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGateway(cfg, views, health.NewHealthChecker(0), m, logger), m
}

func do(t *testing.T, h http.Handler, method, target string, setup ...func(*http.Request)) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for _, fn := range setup {
		fn(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, body
}

func TestHealthScoresEnvelope(t *testing.T) {
	views := &fakeViews{}
	g, _ := newTestGateway(views, nil)

	rec, body := do(t, g.Handler(), http.MethodGet, "/api/v1/health-scores?data_inicio=2024-01-01&data_fim=2024-12-31")
	if rec.Code != http.StatusOK || !body.Success {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"data":{"123":{"customer_id":"123","total":0.71,"category":"Healthy"}}`) {
		t.Fatalf("cached payload not embedded verbatim: %s", rec.Body.String())
	}
	if start, end := views.lastWin.Key(); start != "2024-01-01" || end != "2024-12-31" {
		t.Fatalf("window = %s..%s", start, end)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}
}

func TestWindowAliasesAndInvalidDates(t *testing.T) {
	views := &fakeViews{}
	g, _ := newTestGateway(views, nil)

	do(t, g.Handler(), http.MethodGet, "/api/v1/dashboard?start=2024-06-01&end=garbage")
	start, end := views.lastWin.Key()
	if start != "2024-06-01" || end != window.AllBound {
		t.Fatalf("window = %s..%s", start, end)
	}

	do(t, g.Handler(), http.MethodGet, "/api/v1/dashboard")
	if !views.lastWin.Unbounded() {
		t.Fatal("no parameters should mean an unbounded window")
	}
}

func TestSourceUnavailableMapsTo503(t *testing.T) {
	views := &fakeViews{err: fmt.Errorf("%w: activity: %w", aggregator.ErrSourceUnavailable, context.DeadlineExceeded)}
	g, _ := newTestGateway(views, nil)

	for _, path := range []string{"/api/v1/health-scores", "/api/v1/dashboard"} {
		rec, body := do(t, g.Handler(), http.MethodGet, path)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
		if body.Success || body.Error == nil || body.Error.Code != "SOURCE_UNAVAILABLE" {
			t.Fatalf("%s: body = %s", path, rec.Body.String())
		}
		if body.Data != nil {
			t.Fatalf("%s: failure must not carry data", path)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Fatalf("%s: Retry-After missing", path)
		}
	}

	views.err = errors.New("encode failed")
	rec, body := do(t, g.Handler(), http.MethodGet, "/api/v1/dashboard")
	if rec.Code != http.StatusInternalServerError || body.Error.Code != "INTERNAL_ERROR" {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestClearCache(t *testing.T) {
	views := &fakeViews{}
	g, _ := newTestGateway(views, nil)

	rec, body := do(t, g.Handler(), http.MethodPost, "/api/v1/admin/cache/clear?scope=dashboard")
	if rec.Code != http.StatusOK || !body.Success || views.cleared != "dashboard" {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	views.clearErr = fmt.Errorf("%w: clientes", customersuccess.ErrUnknownView)
	rec, body = do(t, g.Handler(), http.MethodPost, "/api/v1/admin/cache/clear?scope=clientes")
	if rec.Code != http.StatusBadRequest || body.Error.Code != "INVALID_SCOPE" {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec, _ = do(t, g.Handler(), http.MethodGet, "/api/v1/admin/cache/clear")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET clear status = %d", rec.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	g, _ := newTestGateway(&fakeViews{}, map[string]string{"ops": "s3cret"})

	rec, body := do(t, g.Handler(), http.MethodGet, "/api/v1/dashboard")
	if rec.Code != http.StatusUnauthorized || body.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("anonymous status = %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("challenge header missing")
	}

	rec, _ = do(t, g.Handler(), http.MethodGet, "/api/v1/dashboard", func(r *http.Request) { r.SetBasicAuth("ops", "wrong") })
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", rec.Code)
	}
	rec, _ = do(t, g.Handler(), http.MethodGet, "/api/v1/dashboard", func(r *http.Request) { r.SetBasicAuth("nobody", "s3cret") })
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user status = %d", rec.Code)
	}
	rec, _ = do(t, g.Handler(), http.MethodGet, "/api/v1/dashboard", func(r *http.Request) { r.SetBasicAuth("ops", "s3cret") })
	if rec.Code != http.StatusOK {
		t.Fatalf("valid credentials status = %d", rec.Code)
	}

	rec, _ = do(t, g.Handler(), http.MethodGet, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("health should not require credentials, status = %d", rec.Code)
	}
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	g, _ := newTestGateway(&fakeViews{}, nil)
	do(t, g.Handler(), http.MethodGet, "/api/v1/dashboard")

	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `healthscore_http_requests_total{method="GET",route="/api/v1/dashboard",status="2xx"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Fatalf("metrics output missing %s", want)
	}
}

func TestCORSPreflight(t *testing.T) {
	g, _ := newTestGateway(&fakeViews{}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/dashboard", nil)
	req.Header.Set("Origin", "https://cs.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("preflight not answered: %d %v", rec.Code, rec.Header())
	}
}
