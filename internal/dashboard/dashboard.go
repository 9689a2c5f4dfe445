// Package dashboard derives fleet KPIs from a filtered set of customers.
package dashboard

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/prompt-general/healthscore/internal/customer"
	"github.com/prompt-general/healthscore/internal/scoring"
	"github.com/prompt-general/healthscore/internal/window"
)

// Entry is one customer and, when it was scored, its health category.
type Entry struct {
	Customer customer.Record
	Category scoring.Category
}

// Snapshot is the dashboard for one window.
type Snapshot struct {
	Active            int                      `json:"active"`
	Paying            int                      `json:"paying"`
	Onboarding        int                      `json:"onboarding"`
	NewInWindow       int                      `json:"new_in_window"`
	ChurnedInWindow   int                      `json:"churned_in_window"`
	Delinquent        int                      `json:"delinquent"`
	MRR               decimal.Decimal          `json:"mrr"`
	ChurnValue        decimal.Decimal          `json:"churn_value"`
	AvgOnboardingDays float64                  `json:"avg_onboarding_days"`
	OnboardingSample  int                      `json:"onboarding_sample"`
	Health            map[scoring.Category]int `json:"health"`
	Start             string                   `json:"start"`
	End               string                   `json:"end"`
}

// Summarize computes the snapshot. Entries are expected to be already
// filtered to w; w is still needed for the in-window counters.
func Summarize(w window.Window, entries []Entry) Snapshot {
	s := Snapshot{
		MRR:        decimal.Zero,
		ChurnValue: decimal.Zero,
		Health:     make(map[scoring.Category]int, len(scoring.Categories)),
	}
	s.Start, s.End = w.Key()
	for _, c := range scoring.Categories {
		s.Health[c] = 0
	}

	var onboardingDays []int
	for _, e := range entries {
		c := e.Customer
		value := c.ContractValue
		if value.IsNegative() {
			value = decimal.Zero
		}

		if c.Stage.Active() {
			s.Active++
			s.MRR = s.MRR.Add(value)
			if value.IsPositive() {
				s.Paying++
			}
			if c.OnboardingStart != nil && c.OnboardingEnd == nil {
				s.Onboarding++
			}
		}

		if w.Contains(c.AcquisitionDate) {
			s.NewInWindow++
		}
		if w.Contains(c.ChurnDate) {
			s.ChurnedInWindow++
			s.ChurnValue = s.ChurnValue.Add(value)
		}

		if c.OverdueInstallments > 0 && !c.Stage.Lost() {
			s.Delinquent++
		}

		if d, ok := onboardingDuration(c); ok {
			onboardingDays = append(onboardingDays, d)
		}

		if e.Category != "" && !c.Stage.Lost() {
			s.Health[e.Category]++
		}
	}

	s.MRR = s.MRR.Round(2)
	s.ChurnValue = s.ChurnValue.Round(2)
	s.OnboardingSample = len(onboardingDays)
	s.AvgOnboardingDays = average(onboardingDays)
	return s
}

// onboardingDuration is the number of whole days elapsed between onboarding
// start and end. Non-positive durations are not valid samples.
func onboardingDuration(c customer.Record) (int, bool) {
	if c.OnboardingStart == nil || c.OnboardingEnd == nil {
		return 0, false
	}
	days := int(c.OnboardingEnd.Sub(*c.OnboardingStart).Hours() / 24)
	if days <= 0 {
		return 0, false
	}
	return days, true
}

func average(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum int
	for _, x := range xs {
		sum += x
	}
	return math.Round(float64(sum)/float64(len(xs))*10) / 10
}
