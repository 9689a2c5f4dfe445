package customersuccess

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/prompt-general/healthscore/internal/scoring"
	"github.com/prompt-general/healthscore/internal/window"
)

// Config tunes the at-risk monitor.
type Config struct {
	MonitorInterval time.Duration
	AlertTopic      string
}

// Monitor rescores every customer each MonitorInterval and publishes an
// alert for active customers in the Critical category. It returns when ctx
// is done, or immediately when no producer or interval is configured.
func (s *Service) Monitor(ctx context.Context) {
	if s.producer == nil || s.config.MonitorInterval <= 0 {
		s.logger.Info("at-risk monitor disabled")
		return
	}

	ticker := time.NewTicker(s.config.MonitorInterval)
	defer ticker.Stop()

	s.logger.Info("at-risk monitor started", slog.Duration("interval", s.config.MonitorInterval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ScanAtRisk(ctx)
			if err != nil {
				s.logger.Error("at-risk scan failed", slog.String("err", err.Error()))
				continue
			}
			s.logger.Info("at-risk scan complete", slog.Int("alerts", n))
		}
	}
}

// ScanAtRisk scores the whole customer base without the cache and publishes
// one alert per critical active customer. It returns the number published.
func (s *Service) ScanAtRisk(ctx context.Context) (int, error) {
	scores, err := s.computeHealthScores(ctx, window.All())
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(scores))
	for id, hs := range scores {
		if hs.Category == scoring.Critical && hs.Stage.Active() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	now := time.Now().UTC()
	published := 0
	for _, id := range ids {
		hs := scores[id]
		if err := s.publish(ctx, hs, now); err != nil {
			s.logger.Warn("failed to publish at-risk alert",
				slog.String("customer_id", id), slog.String("err", err.Error()))
			continue
		}
		published++
		s.metrics.AlertPublished()
	}
	return published, nil
}

func (s *Service) publish(ctx context.Context, hs HealthScore, now time.Time) error {
	alert := AtRiskAlert{
		EventID:    uuid.NewString(),
		CustomerID: hs.CustomerID,
		Name:       hs.Name,
		Stage:      hs.Stage,
		Total:      hs.Total,
		Category:   hs.Category,
		Pillars:    hs.Pillars,
		Formula:    s.scorer.Config().Formula,
		DetectedAt: now,
	}
	value, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	return s.producer.Send(ctx, s.config.AlertTopic, []byte(hs.CustomerID), value)
}
