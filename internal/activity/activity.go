// Package activity reads per-tenant usage signals from the operational store.
package activity

import "context"

// Never is the days-since value of a family without any recorded event.
const Never = 9999

// Family summarizes one kind of event for a tenant.
type Family struct {
	CountLast30Days int `json:"count_30d"`
	DaysSinceLast   int `json:"days_since_last"`
}

// NoEvents is the family of a tenant that never produced the event.
func NoEvents() Family {
	return Family{DaysSinceLast: Never}
}

// Profile is the usage snapshot of one tenant. Document is the raw tax
// document; callers normalize it before joining.
type Profile struct {
	TenantID int64  `json:"tenant_id"`
	Document string `json:"document"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`

	Logins      Family `json:"logins"`
	ActiveUsers int    `json:"active_users_30d"`

	InventoryIn  Family `json:"inventory_in"`
	InventoryOut Family `json:"inventory_out"`
	StockSize    int    `json:"stock_size"`

	Leads Family `json:"leads"`

	MessagingActive bool `json:"messaging_active"`
	AdsActive       bool `json:"ads_active"`
	ReportsActive   bool `json:"reports_active"`
	ContractsActive bool `json:"contracts_active"`

	MessagingStatus string   `json:"messaging_status"`
	Integrations    []string `json:"integrations"`
}

// Empty returns the profile of a customer with no recorded activity.
func Empty(document string) Profile {
	return Profile{
		Document:        document,
		Logins:          NoEvents(),
		InventoryIn:     NoEvents(),
		InventoryOut:    NoEvents(),
		Leads:           NoEvents(),
		MessagingStatus: MessagingDisconnected,
		Integrations:    []string{},
	}
}

// MessagingDisconnected is reported for tenants without a messaging instance.
const MessagingDisconnected = "connecting"

// Repository returns the activity profile of every tenant.
type Repository interface {
	Query(ctx context.Context) ([]Profile, error)
}
