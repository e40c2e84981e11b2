// Package store persists clients, leads, campaigns and campaign executions.
// PostgresStore is the production backend; SQLiteStore serves local runs and
// tests. Both execute the same positional ($n) SQL.
package store

import (
	"context"
	"time"

	"github.com/sells-group/leadgen/internal/model"
)

// LeadFilter selects a client's leads. Results are ordered by score
// descending, then newest first.
type LeadFilter struct {
	ClientID   string           `json:"client_id"`
	CampaignID string           `json:"campaign_id,omitempty"`
	Status     model.LeadStatus `json:"status,omitempty"`
	MinScore   int              `json:"min_score,omitempty"`
	Limit      int              `json:"limit,omitempty"`
	Offset     int              `json:"offset,omitempty"`
}

// CampaignFilter selects campaigns, newest first.
type CampaignFilter struct {
	ClientID string               `json:"client_id,omitempty"`
	Status   model.CampaignStatus `json:"status,omitempty"`
	Limit    int                  `json:"limit,omitempty"`
	Offset   int                  `json:"offset,omitempty"`
}

// ExecutionFilter selects executions, most recently started first.
type ExecutionFilter struct {
	CampaignID    string                `json:"campaign_id,omitempty"`
	ClientID      string                `json:"client_id,omitempty"`
	Status        model.ExecutionStatus `json:"status,omitempty"`
	Since         time.Time             `json:"since,omitempty"`
	StartedBefore time.Time             `json:"started_before,omitempty"`
	Limit         int                   `json:"limit,omitempty"`
	Offset        int                   `json:"offset,omitempty"`
}

// Tx is the write surface available inside WithTx. Everything done through
// it commits or rolls back together.
type Tx interface {
	// InsertLeads saves new leads.
	InsertLeads(ctx context.Context, leads []model.Lead) error
	// IncrementUsage adds n to the client's monthly usage only if the result
	// stays within quota and the client is active. Otherwise it returns
	// apperr.ErrQuotaExceeded and changes nothing.
	IncrementUsage(ctx context.Context, clientID string, n int, now time.Time) error
	// RefreshCampaignStats adds generated to the campaign's running total and
	// recounts the leads on file for it.
	RefreshCampaignStats(ctx context.Context, campaignID string, generated int, now time.Time) error
}

// Store defines the persistence interface for the lead pipeline and the
// campaign scheduler.
type Store interface {
	// Clients
	CreateClient(ctx context.Context, c *model.Client) error
	GetClient(ctx context.Context, id string) (*model.Client, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	ResetUsage(ctx context.Context, clientID string, at time.Time) error

	// Leads
	LeadEmails(ctx context.Context, clientID string) (map[string]struct{}, error)
	GetLead(ctx context.Context, clientID, leadID string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	CountLeads(ctx context.Context, filter LeadFilter) (int, error)
	UpdateLead(ctx context.Context, l *model.Lead) error

	// Campaigns
	CreateCampaign(ctx context.Context, c *model.Campaign) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, filter CampaignFilter) ([]model.Campaign, error)
	ListDueCampaigns(ctx context.Context, now time.Time) ([]model.Campaign, error)
	UpdateCampaign(ctx context.Context, c *model.Campaign) error
	DeleteCampaign(ctx context.Context, id string) error

	// Executions
	CreateExecution(ctx context.Context, e *model.CampaignExecution) error
	// UpdateExecution saves a terminal execution over its running row. It
	// returns ErrInvalidState when the row already holds a terminal state.
	UpdateExecution(ctx context.Context, e *model.CampaignExecution) error
	GetExecution(ctx context.Context, id string) (*model.CampaignExecution, error)
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]model.CampaignExecution, error)

	// WithTx runs fn in a transaction. A non-nil error from fn rolls back.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Tx    = (*pgTx)(nil)
	_ Tx    = txQueries{}
)
