package dashboard

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prompt-general/healthscore/internal/customer"
	"github.com/prompt-general/healthscore/internal/scoring"
	"github.com/prompt-general/healthscore/internal/window"
)

func date(s string) *time.Time {
	t, ok := window.ParseDate(s)
	if !ok {
		panic(s)
	}
	return &t
}

func stamp(s string) *time.Time {
	t, ok := window.ParseTimestamp(s)
	if !ok {
		panic(s)
	}
	return &t
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSummarizeNewCustomerInWindow(t *testing.T) {
	w := window.Parse("2024-01-01", "2024-12-31")
	entries := []Entry{{
		Customer: customer.Record{
			ID:              "1",
			Stage:           customer.StageOngoing,
			AcquisitionDate: date("2024-03-15"),
			ContractValue:   money("300"),
		},
		Category: scoring.Healthy,
	}}

	s := Summarize(w, entries)
	if s.NewInWindow != 1 || s.ChurnedInWindow != 0 {
		t.Fatalf("new=%d churned=%d", s.NewInWindow, s.ChurnedInWindow)
	}
	if !s.MRR.Equal(money("300")) {
		t.Fatalf("MRR = %s, want 300", s.MRR)
	}
	if s.Active != 1 || s.Paying != 1 {
		t.Fatalf("active=%d paying=%d", s.Active, s.Paying)
	}
	if s.Health[scoring.Healthy] != 1 {
		t.Fatalf("health histogram = %v", s.Health)
	}
}

func TestSummarizeChurnedInWindow(t *testing.T) {
	w := window.Parse("2024-06-01", "2024-06-30")
	c := customer.Record{
		ID:              "2",
		Stage:           customer.StageChurned,
		AcquisitionDate: date("2023-01-10"),
		ChurnDate:       date("2024-06-20"),
		ContractValue:   money("200"),
	}
	if !w.Include(c.AcquisitionDate, c.ChurnDate) {
		t.Fatal("customer churned in window should be included")
	}

	s := Summarize(w, []Entry{{Customer: c, Category: scoring.Critical}})
	if !s.ChurnValue.Equal(money("200")) {
		t.Fatalf("churn value = %s, want 200", s.ChurnValue)
	}
	if s.NewInWindow != 0 || s.ChurnedInWindow != 1 {
		t.Fatalf("new=%d churned=%d", s.NewInWindow, s.ChurnedInWindow)
	}
	if s.Active != 0 || !s.MRR.IsZero() {
		t.Fatalf("churned customer counted as active: %+v", s)
	}
	if s.Health[scoring.Critical] != 0 {
		t.Fatal("churned customers must not appear in the health histogram")
	}
}

func TestSummarizeWithoutOnboardingDates(t *testing.T) {
	s := Summarize(window.All(), []Entry{
		{Customer: customer.Record{Stage: customer.StageOngoing, OnboardingStart: date("2024-01-01")}},
		{Customer: customer.Record{Stage: customer.StageOngoing}},
	})
	if s.AvgOnboardingDays != 0 || s.OnboardingSample != 0 {
		t.Fatalf("TMO = %v over %d samples", s.AvgOnboardingDays, s.OnboardingSample)
	}
	if s.Onboarding != 1 {
		t.Fatalf("onboarding = %d, want 1", s.Onboarding)
	}
}

func TestSummarizeExcludesNegativeOnboarding(t *testing.T) {
	negative := customer.Record{
		Stage:           customer.StageOngoing,
		OnboardingStart: date("2024-02-10"),
		OnboardingEnd:   date("2024-02-01"),
	}
	s := Summarize(window.All(), []Entry{{Customer: negative}})
	if s.AvgOnboardingDays != 0 {
		t.Fatalf("negative duration should be excluded, TMO = %v", s.AvgOnboardingDays)
	}

	sameDay := customer.Record{
		Stage:           customer.StageOngoing,
		OnboardingStart: date("2024-02-10"),
		OnboardingEnd:   date("2024-02-10"),
	}
	valid := customer.Record{
		Stage:           customer.StageOngoing,
		OnboardingStart: date("2024-02-01"),
		OnboardingEnd:   date("2024-02-11"),
	}
	other := customer.Record{
		Stage:           customer.StageOngoing,
		OnboardingStart: date("2024-03-01"),
		OnboardingEnd:   date("2024-03-06"),
	}
	s = Summarize(window.All(), []Entry{{Customer: negative}, {Customer: sameDay}, {Customer: valid}, {Customer: other}})
	// (10 + 5) / 2
	if s.AvgOnboardingDays != 7.5 || s.OnboardingSample != 2 {
		t.Fatalf("TMO = %v over %d samples", s.AvgOnboardingDays, s.OnboardingSample)
	}
}

func TestSummarizeOnboardingUsesElapsedTime(t *testing.T) {
	overnight := customer.Record{
		Stage:           customer.StageOngoing,
		OnboardingStart: stamp("2024-02-10 23:00:00"),
		OnboardingEnd:   stamp("2024-02-11 01:00:00"),
	}
	partial := customer.Record{
		Stage:           customer.StageOngoing,
		OnboardingStart: stamp("2024-02-01 12:00:00"),
		OnboardingEnd:   stamp("2024-02-11 11:00:00"),
	}
	s := Summarize(window.All(), []Entry{{Customer: overnight}, {Customer: partial}})
	// overnight is under a day; partial is 9 whole days
	if s.AvgOnboardingDays != 9 || s.OnboardingSample != 1 {
		t.Fatalf("TMO = %v over %d samples", s.AvgOnboardingDays, s.OnboardingSample)
	}
}

func TestSummarizeCounts(t *testing.T) {
	entries := []Entry{
		{Customer: customer.Record{Stage: customer.StageOnboarding, ContractValue: money("100.10"), OnboardingStart: date("2024-01-01")}, Category: scoring.Normal},
		{Customer: customer.Record{Stage: customer.StageOngoing, ContractValue: money("0")}, Category: scoring.Champion},
		{Customer: customer.Record{Stage: customer.StageOngoing, ContractValue: money("250.255"), OverdueInstallments: 1}, Category: scoring.Champion},
		{Customer: customer.Record{Stage: customer.StageCancellationRequested, ContractValue: money("90"), OverdueInstallments: 3}},
		{Customer: customer.Record{Stage: customer.StageOther, ContractValue: money("40")}},
	}
	s := Summarize(window.All(), entries)

	if s.Active != 3 || s.Paying != 2 || s.Onboarding != 1 {
		t.Fatalf("active=%d paying=%d onboarding=%d", s.Active, s.Paying, s.Onboarding)
	}
	if s.MRR.String() != "350.36" {
		t.Fatalf("MRR = %s, want 350.36", s.MRR)
	}
	if s.Delinquent != 1 {
		t.Fatalf("delinquent = %d, want 1", s.Delinquent)
	}
	want := map[scoring.Category]int{scoring.Critical: 0, scoring.Normal: 1, scoring.Healthy: 0, scoring.Champion: 2}
	for k, v := range want {
		if s.Health[k] != v {
			t.Fatalf("health[%s] = %d, want %d", k, s.Health[k], v)
		}
	}
	if s.Start != window.AllBound || s.End != window.AllBound {
		t.Fatalf("bounds = %s..%s", s.Start, s.End)
	}
}
