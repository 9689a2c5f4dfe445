package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

type HealthCheck interface {
	Name() string
	Check(ctx context.Context) HealthResult
}

type HealthResult struct {
	Name     string        `json:"name"`
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

type HealthChecker struct {
	checks  []HealthCheck
	timeout time.Duration
	mu      sync.RWMutex
}

// NewHealthChecker bounds every run of the registered checks by timeout.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HealthChecker{checks: make([]HealthCheck, 0), timeout: timeout}
}

func (hc *HealthChecker) Register(check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks = append(hc.checks, check)
}

// Check runs every registered check concurrently.
func (hc *HealthChecker) Check(ctx context.Context) map[string]HealthResult {
	hc.mu.RLock()
	checks := make([]HealthCheck, len(hc.checks))
	copy(checks, hc.checks)
	hc.mu.RUnlock()

	results := make(map[string]HealthResult, len(checks))
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, c := range checks {
		wg.Add(1)
		go func(ch HealthCheck) {
			defer wg.Done()
			start := time.Now()
			res := ch.Check(ctx)
			res.Duration = time.Since(start)
			mu.Lock()
			results[ch.Name()] = res
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return results
}

func (hc *HealthChecker) OverallStatus(results map[string]HealthResult) HealthStatus {
	hasDegraded := false
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			hasDegraded = true
		}
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

func (hc *HealthChecker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), hc.timeout)
		defer cancel()
		results := hc.Check(ctx)
		overall := hc.OverallStatus(results)
		resp := map[string]interface{}{
			"status":    overall,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"checks":    results,
		}
		w.Header().Set("Content-Type", "application/json")
		statusCode := http.StatusOK
		if overall == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(resp)
	}
}

// PingCheck wraps a ping function. A failing ping reports Failure, a ping
// slower than Slow reports degraded.
type PingCheck struct {
	CheckName string
	Ping      func(ctx context.Context) error
	Slow      time.Duration
	// Failure is the status of a failed ping; unhealthy when empty.
	Failure HealthStatus
}

func (p *PingCheck) Name() string { return p.CheckName }

func (p *PingCheck) Check(ctx context.Context) HealthResult {
	start := time.Now()
	err := p.Ping(ctx)
	duration := time.Since(start)

	res := HealthResult{Name: p.CheckName, Duration: duration}
	switch {
	case err != nil:
		res.Status = p.Failure
		if res.Status == "" {
			res.Status = StatusUnhealthy
		}
		res.Message = p.CheckName + " unreachable"
		res.Error = err.Error()
	case p.Slow > 0 && duration > p.Slow:
		res.Status = StatusDegraded
		res.Message = p.CheckName + " responding slowly"
	default:
		res.Status = StatusHealthy
		res.Message = p.CheckName + " healthy"
	}
	return res
}

// DatabaseCheck reports a source database; failure is unhealthy.
func DatabaseCheck(name string, ping func(context.Context) error) *PingCheck {
	return &PingCheck{CheckName: name, Ping: ping, Slow: 100 * time.Millisecond}
}

// CacheCheck reports the cache backend; views are still served without it,
// so failure only degrades.
func CacheCheck(ping func(context.Context) error) *PingCheck {
	return &PingCheck{CheckName: "cache", Ping: ping, Slow: 50 * time.Millisecond, Failure: StatusDegraded}
}

// KafkaCheck reports the alert broker; failure only degrades.
func KafkaCheck(ping func(context.Context) error) *PingCheck {
	return &PingCheck{CheckName: "kafka", Ping: ping, Slow: 500 * time.Millisecond, Failure: StatusDegraded}
}
