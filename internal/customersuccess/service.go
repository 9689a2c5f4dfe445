// Package customersuccess exposes the health-score and dashboard views over
// the cached scoring pipeline.
package customersuccess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prompt-general/healthscore/internal/aggregator"
	"github.com/prompt-general/healthscore/internal/cache"
	"github.com/prompt-general/healthscore/internal/dashboard"
	"github.com/prompt-general/healthscore/internal/kafka"
	"github.com/prompt-general/healthscore/internal/metrics"
	"github.com/prompt-general/healthscore/internal/scoring"
	"github.com/prompt-general/healthscore/internal/telemetry"
	"github.com/prompt-general/healthscore/internal/window"
)

// Cached views.
const (
	ViewHealthScores = "health-scores"
	ViewDashboard    = "dashboard"

	ScopeAll = "all"
)

// Views lists every cached view.
var Views = []string{ViewHealthScores, ViewDashboard}

var ErrUnknownView = errors.New("unknown view")

// Aggregator yields the joined customers of a window.
type Aggregator interface {
	Aggregate(ctx context.Context, w window.Window) ([]aggregator.Joined, error)
}

type Service struct {
	aggregator Aggregator
	scorer     *scoring.Scorer
	cache      *cache.Layer
	producer   kafka.Producer
	config     Config
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewService(
	agg Aggregator,
	scorer *scoring.Scorer,
	layer *cache.Layer,
	producer kafka.Producer,
	config Config,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if config.AlertTopic == "" {
		config.AlertTopic = kafka.AtRiskTopic
	}
	return &Service{
		aggregator: agg,
		scorer:     scorer,
		cache:      layer,
		producer:   producer,
		config:     config,
		metrics:    m,
		logger:     logger,
	}
}

// HealthScoresJSON returns the encoded health scores of w, keyed by customer
// id. The bytes are shared with the cache and must not be modified.
func (s *Service) HealthScoresJSON(ctx context.Context, w window.Window) ([]byte, error) {
	return s.cache.GetOrCompute(ctx, ViewHealthScores, w, func(ctx context.Context) (any, error) {
		return s.computeHealthScores(ctx, w)
	})
}

func (s *Service) HealthScores(ctx context.Context, w window.Window) (map[string]HealthScore, error) {
	data, err := s.HealthScoresJSON(ctx, w)
	if err != nil {
		return nil, err
	}
	var out map[string]HealthScore
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode health scores: %w", err)
	}
	return out, nil
}

// DashboardJSON returns the encoded dashboard snapshot of w.
func (s *Service) DashboardJSON(ctx context.Context, w window.Window) ([]byte, error) {
	return s.cache.GetOrCompute(ctx, ViewDashboard, w, func(ctx context.Context) (any, error) {
		return s.computeDashboard(ctx, w)
	})
}

func (s *Service) Dashboard(ctx context.Context, w window.Window) (dashboard.Snapshot, error) {
	var snap dashboard.Snapshot
	data, err := s.DashboardJSON(ctx, w)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode dashboard: %w", err)
	}
	return snap, nil
}

// ClearCache removes cached views. Scope is "all" (or empty) or one view name.
func (s *Service) ClearCache(ctx context.Context, scope string) (ClearResult, error) {
	res := ClearResult{Scope: scope}
	var err error
	switch {
	case scope == "" || scope == ScopeAll:
		res.Scope = ScopeAll
		res.Removed, err = s.cache.ClearAll(ctx)
	case knownView(scope):
		res.Removed, err = s.cache.ClearPrefix(ctx, scope)
	default:
		return res, fmt.Errorf("%w: %s", ErrUnknownView, scope)
	}
	return res, err
}

func knownView(v string) bool {
	for _, view := range Views {
		if v == view {
			return true
		}
	}
	return false
}

func (s *Service) computeHealthScores(ctx context.Context, w window.Window) (map[string]HealthScore, error) {
	ctx, span := telemetry.StartSpan(ctx, "customersuccess.HealthScores")
	defer span.End()

	joined, err := s.aggregator.Aggregate(ctx, w)
	if err != nil {
		telemetry.RecordSpanError(span, err, nil)
		return nil, err
	}

	scores := make(map[string]HealthScore, len(joined))
	for _, j := range joined {
		scores[j.Customer.ID] = s.score(j)
	}
	s.metrics.SetScored(len(scores))
	telemetry.AddSpanAttributes(span, map[string]string{
		"window":    w.String(),
		"customers": fmt.Sprint(len(scores)),
	})
	s.logger.Info("health scores computed", slog.String("window", w.String()), slog.Int("customers", len(scores)))
	return scores, nil
}

func (s *Service) computeDashboard(ctx context.Context, w window.Window) (dashboard.Snapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "customersuccess.Dashboard")
	defer span.End()

	joined, err := s.aggregator.Aggregate(ctx, w)
	if err != nil {
		telemetry.RecordSpanError(span, err, nil)
		return dashboard.Snapshot{}, err
	}

	entries := make([]dashboard.Entry, 0, len(joined))
	for _, j := range joined {
		_, category := s.scorer.Combine(s.scorer.Pillars(j.Activity))
		entries = append(entries, dashboard.Entry{Customer: j.Customer, Category: category})
	}
	snap := dashboard.Summarize(w, entries)
	s.logger.Info("dashboard computed",
		slog.String("window", w.String()),
		slog.Int("customers", len(entries)),
		slog.Int("active", snap.Active))
	return snap, nil
}

func (s *Service) score(j aggregator.Joined) HealthScore {
	cfg := s.scorer.Config()
	p := j.Activity
	pillars := s.scorer.Pillars(p)
	total, category := s.scorer.Combine(pillars)

	integrations := p.Integrations
	if integrations == nil {
		integrations = []string{}
	}

	return HealthScore{
		CustomerID:  j.Customer.ID,
		ClientID:    j.Customer.ClientID,
		TenantID:    p.TenantID,
		Name:        j.Customer.Name,
		Slug:        p.Slug,
		Stage:       j.Customer.Stage,
		Pillars:     pillars,
		Total:       total,
		Category:    category,
		HasActivity: j.HasActivity,
		Metrics: RawMetrics{
			Logins:       p.Logins,
			ActiveUsers:  p.ActiveUsers,
			TeamSize:     scoring.TeamSizeBucket(p.ActiveUsers, cfg.Engagement.TeamSize),
			InventoryIn:  p.InventoryIn,
			InventoryOut: p.InventoryOut,
			StockSize:    p.StockSize,
			StockBucket:  scoring.StockSizeBucket(p.StockSize, cfg.Operational.StockSize),
			Leads:        p.Leads,
			Adoption: AdoptionFlags{
				Messaging: p.MessagingActive,
				Ads:       p.AdsActive,
				Reports:   p.ReportsActive,
				Contracts: p.ContractsActive,
			},
		},
		MessagingStatus: p.MessagingStatus,
		Integrations:    integrations,
	}
}
