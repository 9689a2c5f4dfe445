// Package aggregator fans out to the customer and activity sources and joins
// their results into one record per customer.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/prompt-general/healthscore/internal/activity"
	"github.com/prompt-general/healthscore/internal/customer"
	"github.com/prompt-general/healthscore/internal/metrics"
	"github.com/prompt-general/healthscore/internal/telemetry"
	"github.com/prompt-general/healthscore/internal/window"
)

// ErrSourceUnavailable is returned when either source fails or times out.
// The whole aggregation is abandoned; callers may retry.
var ErrSourceUnavailable = errors.New("source unavailable")

// Joined is a customer record with its activity profile.
type Joined struct {
	Customer customer.Record
	Activity activity.Profile
	// HasActivity is false when the profile is the empty placeholder.
	HasActivity bool
}

type Aggregator struct {
	customers customer.Repository
	activity  activity.Repository
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New builds an aggregator. A zero timeout leaves the caller's deadline as
// the only bound.
func New(customers customer.Repository, act activity.Repository, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		customers: customers,
		activity:  act,
		timeout:   timeout,
		metrics:   m,
		logger:    logger,
	}
}

// Aggregate returns the customers in w joined with their activity.
func (a *Aggregator) Aggregate(ctx context.Context, w window.Window) ([]Joined, error) {
	ctx, span := telemetry.StartSpan(ctx, "aggregator.Aggregate")
	defer span.End()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	var (
		records  []customer.Record
		profiles []activity.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = a.customers.Query(gctx, w)
		if err != nil {
			a.metrics.SourceFailure("customers")
			return fmt.Errorf("%w: customers: %w", ErrSourceUnavailable, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		profiles, err = a.activity.Query(gctx)
		if err != nil {
			a.metrics.SourceFailure("activity")
			return fmt.Errorf("%w: activity: %w", ErrSourceUnavailable, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		telemetry.RecordSpanError(span, err, map[string]string{"window": w.String()})
		return nil, err
	}

	joined := a.join(w, records, profiles)
	a.logger.Debug("aggregated sources",
		slog.String("window", w.String()),
		slog.Int("customers", len(records)),
		slog.Int("profiles", len(profiles)),
		slog.Int("joined", len(joined)))
	return joined, nil
}

func (a *Aggregator) join(w window.Window, records []customer.Record, profiles []activity.Profile) []Joined {
	byDoc := make(map[string]activity.Profile, len(profiles))
	for _, p := range profiles {
		key := customer.NormalizeDocument(p.Document)
		if key == "" {
			continue
		}
		if _, dup := byDoc[key]; dup {
			a.logger.Warn("duplicate activity document, keeping first", slog.String("document", key), slog.Int64("tenant_id", p.TenantID))
			continue
		}
		byDoc[key] = p
	}

	seen := make(map[string]bool, len(records))
	out := make([]Joined, 0, len(records))
	for _, rec := range records {
		if !w.Include(rec.AcquisitionDate, rec.ChurnDate) {
			continue
		}
		key := customer.NormalizeDocument(rec.Document)
		if key == "" {
			a.logger.Warn("customer without document, skipping", slog.Int64("client_id", rec.ClientID))
			continue
		}
		if seen[key] {
			a.logger.Warn("duplicate customer document, keeping first", slog.String("document", key), slog.Int64("client_id", rec.ClientID))
			continue
		}
		seen[key] = true
		rec.ID = key

		j := Joined{Customer: rec}
		if p, ok := byDoc[key]; ok {
			j.Activity, j.HasActivity = p, true
		} else {
			j.Activity = activity.Empty(key)
		}
		out = append(out, j)
	}
	return out
}
