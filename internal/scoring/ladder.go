package scoring

import (
	"fmt"
)

// Op is the comparison a ladder step applies to its input.
type Op string

const (
	OpLTE Op = "lte" // input <= threshold
	OpGTE Op = "gte" // input >= threshold
	OpGT  Op = "gt"  // input > threshold
)

// Step is one tier of a ladder.
type Step struct {
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Score     float64 `yaml:"score" json:"score"`
}

// Ladder is an ordered step function. Steps are listed from the best tier
// down and the first matching step wins. Default applies when none matches.
type Ladder struct {
	Op      Op      `yaml:"op" json:"op"`
	Steps   []Step  `yaml:"steps" json:"steps"`
	Default float64 `yaml:"default" json:"default"`
}

// Eval maps x through the ladder.
func (l Ladder) Eval(x float64) float64 {
	for _, s := range l.Steps {
		if l.Op.match(x, s.Threshold) {
			return s.Score
		}
	}
	return l.Default
}

func (o Op) match(x, threshold float64) bool {
	switch o {
	case OpLTE:
		return x <= threshold
	case OpGTE:
		return x >= threshold
	case OpGT:
		return x > threshold
	}
	return false
}

// Validate checks that thresholds are ordered so that no step shadows a
// later one and that no score is negative.
func (l Ladder) Validate() error {
	switch l.Op {
	case OpLTE, OpGTE, OpGT:
	default:
		return fmt.Errorf("unknown op %q", l.Op)
	}
	if len(l.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	if l.Default < 0 {
		return fmt.Errorf("default score must not be negative")
	}
	for i, s := range l.Steps {
		if s.Score < 0 {
			return fmt.Errorf("step %d: score must not be negative", i)
		}
		if i == 0 {
			continue
		}
		prev := l.Steps[i-1].Threshold
		if l.Op == OpLTE && s.Threshold <= prev {
			return fmt.Errorf("step %d: lte thresholds must be strictly ascending", i)
		}
		if l.Op != OpLTE && s.Threshold >= prev {
			return fmt.Errorf("step %d: %s thresholds must be strictly descending", i, l.Op)
		}
	}
	return nil
}

func lte(def float64, steps ...float64) Ladder { return build(OpLTE, def, steps) }
func gte(def float64, steps ...float64) Ladder { return build(OpGTE, def, steps) }
func gt(def float64, steps ...float64) Ladder  { return build(OpGT, def, steps) }

// build takes threshold/score pairs.
func build(op Op, def float64, pairs []float64) Ladder {
	l := Ladder{Op: op, Default: def}
	for i := 0; i+1 < len(pairs); i += 2 {
		l.Steps = append(l.Steps, Step{Threshold: pairs[i], Score: pairs[i+1]})
	}
	return l
}
