package scoring

import (
	"fmt"
	"math"
)

// FormulaVersion names the default weights and tier tables.
const FormulaVersion = "v2-30-30-20-20"

// Config holds every weight, threshold and tier table used by the scorer.
type Config struct {
	Formula      string             `yaml:"formula"`
	Weights      Weights            `yaml:"weights"`
	Categories   []Threshold        `yaml:"categories"`
	Floor        Category           `yaml:"floor"`
	Engagement   EngagementConfig   `yaml:"engagement"`
	Operational  OperationalConfig  `yaml:"operational"`
	Relationship RelationshipConfig `yaml:"relationship"`
	Adoption     AdoptionConfig     `yaml:"adoption"`
}

// Weights of each pillar in the total. They must sum to 1.
type Weights struct {
	Engagement   float64 `yaml:"engagement"`
	Operational  float64 `yaml:"operational"`
	Relationship float64 `yaml:"relationship"`
	Adoption     float64 `yaml:"adoption"`
}

// Threshold assigns Category to totals strictly above Above.
type Threshold struct {
	Category Category `yaml:"category"`
	Above    float64  `yaml:"above"`
}

// TeamBounds are the inclusive upper bounds on active users per team size.
type TeamBounds struct {
	Small  int `yaml:"small"`
	Medium int `yaml:"medium"`
	Large  int `yaml:"large"`
}

// StockBounds are the inclusive upper bounds on vehicles in stock.
type StockBounds struct {
	Small  int `yaml:"small"`
	Medium int `yaml:"medium"`
}

type EngagementConfig struct {
	TeamSize TeamBounds            `yaml:"team_size"`
	Recency  Ladder                `yaml:"recency"`
	Volume   map[TeamBucket]Ladder `yaml:"volume"`
}

type OperationalConfig struct {
	StockSize    StockBounds            `yaml:"stock_size"`
	EntryRecency Ladder                 `yaml:"entry_recency"`
	EntryVolume  map[StockBucket]Ladder `yaml:"entry_volume"`
	ExitRecency  Ladder                 `yaml:"exit_recency"`
	ExitVolume   map[StockBucket]Ladder `yaml:"exit_volume"`
}

type RelationshipConfig struct {
	Recency Ladder `yaml:"recency"`
	Volume  Ladder `yaml:"volume"`
}

// AdoptionConfig is the share of the adoption pillar each feature grants.
type AdoptionConfig struct {
	Messaging float64 `yaml:"messaging"`
	Ads       float64 `yaml:"ads"`
	Reports   float64 `yaml:"reports"`
	Contracts float64 `yaml:"contracts"`
}

// DefaultConfig returns the production formula.
func DefaultConfig() Config {
	return Config{
		Formula: FormulaVersion,
		Weights: Weights{
			Engagement:   0.30,
			Operational:  0.30,
			Relationship: 0.20,
			Adoption:     0.20,
		},
		Categories: []Threshold{
			{Category: Champion, Above: 0.8},
			{Category: Healthy, Above: 0.6},
			{Category: Normal, Above: 0.3},
		},
		Floor: Critical,
		Engagement: EngagementConfig{
			TeamSize: TeamBounds{Small: 2, Medium: 5, Large: 9},
			Recency:  lte(0, 3, 1, 7, 0.9, 14, 0.6, 30, 0.2),
			Volume: map[TeamBucket]Ladder{
				TeamSmall:      gte(0, 25, 1.2, 12, 1, 6, 0.7, 3, 0.5, 2, 0.3),
				TeamMedium:     gte(0, 40, 1.2, 20, 1, 10, 0.7, 5, 0.5, 3, 0.3),
				TeamLarge:      gte(0, 70, 1.2, 35, 1, 18, 0.7, 9, 0.5, 5, 0.3),
				TeamExtraLarge: gte(0, 95, 1.2, 48, 1, 24, 0.7, 12, 0.5, 7, 0.3),
			},
		},
		Operational: OperationalConfig{
			StockSize:    StockBounds{Small: 15, Medium: 50},
			EntryRecency: lte(0, 5, 1, 10, 0.8, 20, 0.5, 30, 0.2),
			EntryVolume: map[StockBucket]Ladder{
				StockSmall:  gte(0, 4, 1.2, 2, 0.8, 1, 0.4),
				StockMedium: gte(0, 10, 1.2, 5, 0.8, 2, 0.4),
				StockLarge:  gte(0, 30, 1.2, 15, 0.8, 7, 0.4),
			},
			ExitRecency: lte(0, 3, 1, 7, 0.8, 15, 0.5, 30, 0.2),
			ExitVolume: map[StockBucket]Ladder{
				StockSmall:  gte(0, 3, 1.2, 2, 0.8, 1, 0.4),
				StockMedium: gte(0, 8, 1.2, 4, 0.8, 2, 0.4),
				StockLarge:  gte(0, 25, 1.2, 12, 0.8, 6, 0.4),
			},
		},
		Relationship: RelationshipConfig{
			Recency: lte(0, 3, 1, 7, 0.9, 14, 0.6, 30, 0.2),
			Volume:  gt(0, 75, 1.2, 40, 1, 25, 0.7, 11, 0.5, 6, 0.3, 1, 0.15),
		},
		Adoption: AdoptionConfig{
			Messaging: 0.3,
			Ads:       0.4,
			Reports:   0.1,
			Contracts: 0.2,
		},
	}
}

const sumTolerance = 1e-6

// Validate rejects tables that would make the score ambiguous.
func (c Config) Validate() error {
	w := c.Weights
	for name, v := range map[string]float64{
		"engagement": w.Engagement, "operational": w.Operational,
		"relationship": w.Relationship, "adoption": w.Adoption,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative", name)
		}
	}
	if sum := w.Engagement + w.Operational + w.Relationship + w.Adoption; math.Abs(sum-1) > sumTolerance {
		return fmt.Errorf("weights must sum to 1, got %.4f", sum)
	}

	if len(c.Categories) == 0 {
		return fmt.Errorf("at least one category threshold is required")
	}
	seen := map[Category]bool{c.Floor: true}
	if !c.Floor.Valid() {
		return fmt.Errorf("unknown floor category %q", c.Floor)
	}
	for i, t := range c.Categories {
		if !t.Category.Valid() {
			return fmt.Errorf("unknown category %q", t.Category)
		}
		if seen[t.Category] {
			return fmt.Errorf("category %s listed twice", t.Category)
		}
		seen[t.Category] = true
		if i > 0 && t.Above >= c.Categories[i-1].Above {
			return fmt.Errorf("category thresholds must be strictly descending")
		}
	}

	tb := c.Engagement.TeamSize
	if !(0 <= tb.Small && tb.Small < tb.Medium && tb.Medium < tb.Large) {
		return fmt.Errorf("team size bounds must be strictly ascending")
	}
	sb := c.Operational.StockSize
	if !(0 <= sb.Small && sb.Small < sb.Medium) {
		return fmt.Errorf("stock size bounds must be strictly ascending")
	}

	ladders := map[string]Ladder{
		"engagement.recency":   c.Engagement.Recency,
		"operational.entry":    c.Operational.EntryRecency,
		"operational.exit":     c.Operational.ExitRecency,
		"relationship.recency": c.Relationship.Recency,
		"relationship.volume":  c.Relationship.Volume,
	}
	for _, b := range TeamBuckets {
		l, ok := c.Engagement.Volume[b]
		if !ok {
			return fmt.Errorf("engagement volume table missing for %s", b)
		}
		ladders["engagement.volume."+string(b)] = l
	}
	for _, b := range StockBuckets {
		in, ok := c.Operational.EntryVolume[b]
		if !ok {
			return fmt.Errorf("entry volume table missing for %s", b)
		}
		out, ok := c.Operational.ExitVolume[b]
		if !ok {
			return fmt.Errorf("exit volume table missing for %s", b)
		}
		ladders["operational.entry_volume."+string(b)] = in
		ladders["operational.exit_volume."+string(b)] = out
	}
	for name, l := range ladders {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	a := c.Adoption
	for _, v := range []float64{a.Messaging, a.Ads, a.Reports, a.Contracts} {
		if v < 0 {
			return fmt.Errorf("adoption fractions must not be negative")
		}
	}
	if sum := a.Messaging + a.Ads + a.Reports + a.Contracts; math.Abs(sum-1) > sumTolerance {
		return fmt.Errorf("adoption fractions must sum to 1, got %.4f", sum)
	}
	return nil
}
