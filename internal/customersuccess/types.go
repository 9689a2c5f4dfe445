package customersuccess

import (
	"time"

	"github.com/prompt-general/healthscore/internal/activity"
	"github.com/prompt-general/healthscore/internal/customer"
	"github.com/prompt-general/healthscore/internal/scoring"
)

// HealthScore is the scored view of one customer.
type HealthScore struct {
	CustomerID string           `json:"customer_id"`
	ClientID   int64            `json:"client_id"`
	TenantID   int64            `json:"tenant_id,omitempty"`
	Name       string           `json:"name"`
	Slug       string           `json:"slug,omitempty"`
	Stage      customer.Stage   `json:"stage"`
	Pillars    scoring.Pillars  `json:"pillars"`
	Total      float64          `json:"total"`
	Category   scoring.Category `json:"category"`
	Metrics    RawMetrics       `json:"metrics"`
	// HasActivity is false when the customer has no tenant in the
	// operational store.
	HasActivity     bool     `json:"has_activity"`
	MessagingStatus string   `json:"messaging_status"`
	Integrations    []string `json:"integrations"`
}

// RawMetrics are the inputs the pillars were computed from.
type RawMetrics struct {
	Logins       activity.Family     `json:"logins"`
	ActiveUsers  int                 `json:"active_users_30d"`
	TeamSize     scoring.TeamBucket  `json:"team_size"`
	InventoryIn  activity.Family     `json:"inventory_in"`
	InventoryOut activity.Family     `json:"inventory_out"`
	StockSize    int                 `json:"stock_size"`
	StockBucket  scoring.StockBucket `json:"stock_bucket"`
	Leads        activity.Family     `json:"leads"`
	Adoption     AdoptionFlags       `json:"adoption"`
}

type AdoptionFlags struct {
	Messaging bool `json:"messaging"`
	Ads       bool `json:"ads"`
	Reports   bool `json:"reports"`
	Contracts bool `json:"contracts"`
}

// ClearResult reports a cache invalidation.
type ClearResult struct {
	Scope   string `json:"scope"`
	Removed int    `json:"removed"`
}

// AtRiskAlert is published for every active customer in the Critical
// category.
type AtRiskAlert struct {
	EventID    string           `json:"event_id"`
	CustomerID string           `json:"customer_id"`
	Name       string           `json:"name"`
	Stage      customer.Stage   `json:"stage"`
	Total      float64          `json:"total"`
	Category   scoring.Category `json:"category"`
	Pillars    scoring.Pillars  `json:"pillars"`
	Formula    string           `json:"formula"`
	DetectedAt time.Time        `json:"detected_at"`
}
