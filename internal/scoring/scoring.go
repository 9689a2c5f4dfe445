// Package scoring turns an activity profile into four pillar scores and
// combines them into a categorized health score.
package scoring

import (
	"fmt"
	"math"

	"github.com/prompt-general/healthscore/internal/activity"
)

// Category is the health tier derived from a total score.
type Category string

const (
	Critical Category = "Critical"
	Normal   Category = "Normal"
	Healthy  Category = "Healthy"
	Champion Category = "Champion"
)

// Categories lists every tier from worst to best.
var Categories = []Category{Critical, Normal, Healthy, Champion}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Rank orders categories from worst (0) to best.
func (c Category) Rank() int {
	for i, k := range Categories {
		if c == k {
			return i
		}
	}
	return -1
}

type TeamBucket string

const (
	TeamSmall      TeamBucket = "small"
	TeamMedium     TeamBucket = "medium"
	TeamLarge      TeamBucket = "large"
	TeamExtraLarge TeamBucket = "extra_large"
)

var TeamBuckets = []TeamBucket{TeamSmall, TeamMedium, TeamLarge, TeamExtraLarge}

type StockBucket string

const (
	StockSmall  StockBucket = "small"
	StockMedium StockBucket = "medium"
	StockLarge  StockBucket = "large"
)

var StockBuckets = []StockBucket{StockSmall, StockMedium, StockLarge}

// TeamSizeBucket classifies a team by its users active in the last 30 days.
func TeamSizeBucket(activeUsers int, b TeamBounds) TeamBucket {
	switch {
	case activeUsers <= b.Small:
		return TeamSmall
	case activeUsers <= b.Medium:
		return TeamMedium
	case activeUsers <= b.Large:
		return TeamLarge
	default:
		return TeamExtraLarge
	}
}

// StockSizeBucket classifies a store by the vehicles it currently holds.
func StockSizeBucket(stock int, b StockBounds) StockBucket {
	switch {
	case stock <= b.Small:
		return StockSmall
	case stock <= b.Medium:
		return StockMedium
	default:
		return StockLarge
	}
}

// Pillars are the four sub-scores. Engagement, Operational and Relationship
// may exceed 1 at their top tier; Adoption stays within [0, 1].
type Pillars struct {
	Engagement   float64 `json:"engagement"`
	Operational  float64 `json:"operational"`
	Relationship float64 `json:"relationship"`
	Adoption     float64 `json:"adoption"`
}

// Scorer applies a validated Config.
type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	return &Scorer{cfg: cfg}, nil
}

func (s *Scorer) Config() Config { return s.cfg }

// Pillars scores one profile.
func (s *Scorer) Pillars(p activity.Profile) Pillars {
	return Pillars{
		Engagement:   s.Engagement(p),
		Operational:  s.Operational(p),
		Relationship: s.Relationship(p),
		Adoption:     s.Adoption(p),
	}
}

func (s *Scorer) Engagement(p activity.Profile) float64 {
	c := s.cfg.Engagement
	bucket := TeamSizeBucket(p.ActiveUsers, c.TeamSize)
	return round2(mean(
		c.Recency.Eval(days(p.Logins)),
		c.Volume[bucket].Eval(count(p.Logins)),
	))
}

func (s *Scorer) Operational(p activity.Profile) float64 {
	c := s.cfg.Operational
	bucket := StockSizeBucket(p.StockSize, c.StockSize)
	return round2(mean(
		c.EntryRecency.Eval(days(p.InventoryIn)),
		c.EntryVolume[bucket].Eval(count(p.InventoryIn)),
		c.ExitRecency.Eval(days(p.InventoryOut)),
		c.ExitVolume[bucket].Eval(count(p.InventoryOut)),
	))
}

func (s *Scorer) Relationship(p activity.Profile) float64 {
	c := s.cfg.Relationship
	return round2(mean(
		c.Recency.Eval(days(p.Leads)),
		c.Volume.Eval(count(p.Leads)),
	))
}

func (s *Scorer) Adoption(p activity.Profile) float64 {
	c := s.cfg.Adoption
	var score float64
	for _, f := range []struct {
		on     bool
		weight float64
	}{
		{p.MessagingActive, c.Messaging},
		{p.AdsActive, c.Ads},
		{p.ReportsActive, c.Reports},
		{p.ContractsActive, c.Contracts},
	} {
		if f.on {
			score += f.weight
		}
	}
	return round2(math.Min(1, math.Max(0, score)))
}

// Combine weights the pillars into a total and maps it to a category.
func (s *Scorer) Combine(p Pillars) (float64, Category) {
	w := s.cfg.Weights
	total := round2(
		p.Engagement*w.Engagement +
			p.Operational*w.Operational +
			p.Relationship*w.Relationship +
			p.Adoption*w.Adoption,
	)
	return total, s.Categorize(total)
}

// Categorize walks the thresholds from the highest down; comparisons are
// exclusive so a total equal to a boundary falls to the lower tier.
func (s *Scorer) Categorize(total float64) Category {
	for _, t := range s.cfg.Categories {
		if total > t.Above {
			return t.Category
		}
	}
	return s.cfg.Floor
}

// days treats negative values as missing.
func days(f activity.Family) float64 {
	if f.DaysSinceLast < 0 {
		return activity.Never
	}
	return float64(f.DaysSinceLast)
}

func count(f activity.Family) float64 {
	if f.CountLast30Days < 0 {
		return 0
	}
	return float64(f.CountLast30Days)
}

func mean(xs ...float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
