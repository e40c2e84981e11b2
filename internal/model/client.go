package model

import "time"

// Plan is a client's subscription tier.
type Plan string

const (
	PlanStarter      Plan = "starter"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// MonthlyQuota returns the default monthly lead allowance for the plan.
func (p Plan) MonthlyQuota() int {
	switch p {
	case PlanProfessional:
		return 5000
	case PlanEnterprise:
		return 20000
	default:
		return 1000
	}
}

// ClientStatus is the account status of a tenant.
type ClientStatus string

const (
	ClientStatusActive    ClientStatus = "active"
	ClientStatusSuspended ClientStatus = "suspended"
	ClientStatusCancelled ClientStatus = "cancelled"
)

// Client is a tenant. It owns leads and campaigns and carries the monthly
// usage counter the pipeline checks before each run.
type Client struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Email           string       `json:"email"`
	Company         string       `json:"company,omitempty"`
	Plan            Plan         `json:"plan"`
	Status          ClientStatus `json:"status"`
	APIQuotaMonthly int          `json:"api_quota_monthly"`
	APIUsageCurrent int          `json:"api_usage_current"`
	UsageResetAt    *time.Time   `json:"api_usage_reset_date,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Remaining is the unused part of the monthly quota.
func (c *Client) Remaining() int {
	if r := c.APIQuotaMonthly - c.APIUsageCurrent; r > 0 {
		return r
	}
	return 0
}

// CanGenerate reports whether the client may request n more leads.
func (c *Client) CanGenerate(n int) bool {
	return c.Status == ClientStatusActive && c.APIUsageCurrent+n <= c.APIQuotaMonthly
}
