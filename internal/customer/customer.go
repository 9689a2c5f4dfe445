// Package customer holds the contract-side view of a customer and the
// repository that reads it from the CRM store.
package customer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prompt-general/healthscore/internal/window"
)

type Stage string

const (
	StageOnboarding            Stage = "onboarding"
	StageOngoing               Stage = "ongoing"
	StageChurned               Stage = "churned"
	StageCancellationRequested Stage = "cancellation_requested"
	StageOther                 Stage = "other"
)

// Active reports whether the customer is currently served.
func (s Stage) Active() bool {
	return s == StageOnboarding || s == StageOngoing
}

// Lost reports whether the customer left or asked to leave.
func (s Stage) Lost() bool {
	return s == StageChurned || s == StageCancellationRequested
}

// Record is one customer/contract row from the CRM store.
type Record struct {
	ID                  string          `json:"id"`
	Document            string          `json:"document"`
	ClientID            int64           `json:"client_id"`
	Name                string          `json:"name"`
	Pipeline            string          `json:"pipeline"`
	Status              string          `json:"status"`
	Stage               Stage           `json:"stage"`
	ContractValue       decimal.Decimal `json:"contract_value"`
	OverdueInstallments int             `json:"overdue_installments"`
	AcquisitionDate     *time.Time      `json:"acquisition_date,omitempty"`
	OnboardingStart     *time.Time      `json:"onboarding_start,omitempty"`
	OnboardingEnd       *time.Time      `json:"onboarding_end,omitempty"`
	ChurnDate           *time.Time      `json:"churn_date,omitempty"`
}

// Repository reads customer records. Implementations may narrow the result
// to the window but callers still apply window.Include themselves.
type Repository interface {
	Query(ctx context.Context, w window.Window) ([]Record, error)
}

const (
	statusChurned          = "CHURNS"
	statusCancelRequested  = "Solicitar cancelamento"
	pipelineOnboarding     = "CS | ONBOARDING"
	pipelineOnboardingBank = "CS | BRADESCO"
	pipelineOngoing        = "CS | ONGOING"
)

// StageOf maps the CRM pipeline and status columns to a lifecycle stage.
// Status wins over pipeline: a churned customer may still sit in a CS
// pipeline.
func StageOf(pipeline, status string) Stage {
	switch status {
	case statusChurned:
		return StageChurned
	case statusCancelRequested:
		return StageCancellationRequested
	}
	switch pipeline {
	case pipelineOnboarding, pipelineOnboardingBank:
		return StageOnboarding
	case pipelineOngoing:
		return StageOngoing
	}
	return StageOther
}
