package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/apperr"
)

// CampaignStatus is the lifecycle status of a campaign.
type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// Terminal reports whether no further runs can happen in this status.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusCancelled
}

// FrequencyKind selects how the interval between runs is derived.
type FrequencyKind string

const (
	FrequencyDaily   FrequencyKind = "daily"
	FrequencyWeekly  FrequencyKind = "weekly"
	FrequencyMonthly FrequencyKind = "monthly"
	FrequencyCustom  FrequencyKind = "custom"
)

// FrequencyUnit is the unit of a custom frequency.
type FrequencyUnit string

const (
	UnitHour  FrequencyUnit = "hour"
	UnitDay   FrequencyUnit = "day"
	UnitWeek  FrequencyUnit = "week"
	UnitMonth FrequencyUnit = "month"
)

// Frequency is a campaign's run cadence.
type Frequency struct {
	Kind  FrequencyKind `json:"frequency"`
	Value int           `json:"frequency_value"`
	Unit  FrequencyUnit `json:"frequency_unit"`
}

// MaxIntervalHours caps the gap between two runs of a custom cadence.
const MaxIntervalHours = 366 * 24

// Validate rejects unknown kinds, non-positive custom values and custom
// cadences longer than MaxIntervalHours.
func (f Frequency) Validate() error {
	switch f.Kind {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return nil
	case FrequencyCustom:
		if f.Value <= 0 {
			return eris.Wrapf(apperr.ErrValidation, "custom frequency value must be positive, got %d", f.Value)
		}
		if f.Value > MaxIntervalHours/f.Unit.hours() {
			return eris.Wrapf(apperr.ErrValidation, "custom frequency of %d %s exceeds one year", f.Value, f.Unit)
		}
		return nil
	default:
		return eris.Wrapf(apperr.ErrValidation, "unknown frequency %q", f.Kind)
	}
}

// hours is the length of one unit. Unknown units run daily.
func (u FrequencyUnit) hours() int {
	switch u {
	case UnitHour:
		return 1
	case UnitWeek:
		return 7 * 24
	default:
		return 24
	}
}

// DefaultTimezone is the home-market timezone for preferred run times.
const DefaultTimezone = "Australia/Sydney"

// Campaign is a recurring lead-generation configuration owned by a client.
type Campaign struct {
	ID                  string         `json:"id"`
	ClientID            string         `json:"client_id"`
	Name                string         `json:"name"`
	Description         string         `json:"description,omitempty"`
	Status              CampaignStatus `json:"status"`
	Criteria            LeadCriteria   `json:"criteria"`
	Frequency           Frequency      `json:"schedule"`
	PreferredTime       string         `json:"preferred_time,omitempty"` // HH:MM, local to Timezone
	Timezone            string         `json:"timezone"`
	MaxLeadsPerRun      int            `json:"max_leads_per_run"`
	MaxLeadsTotal       int            `json:"max_leads_total,omitempty"` // 0 means no ceiling
	TotalLeadsGenerated int            `json:"total_leads_generated"`
	LeadsOnFile         int            `json:"leads_on_file"`
	LastRunAt           *time.Time     `json:"last_run_at,omitempty"`
	NextRunAt           *time.Time     `json:"next_run_at,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// ReachedTotalLimit reports whether the campaign's total ceiling is met.
func (c *Campaign) ReachedTotalLimit() bool {
	return c.MaxLeadsTotal > 0 && c.TotalLeadsGenerated >= c.MaxLeadsTotal
}

// EffectiveRunLimit is min(per-run limit, remaining total allowance). It may
// be zero or negative when the ceiling is already met.
func (c *Campaign) EffectiveRunLimit() int {
	limit := c.MaxLeadsPerRun
	if c.MaxLeadsTotal > 0 {
		if remaining := c.MaxLeadsTotal - c.TotalLeadsGenerated; remaining < limit {
			limit = remaining
		}
	}
	return limit
}

// Validate checks the fields a caller controls.
func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return eris.Wrap(apperr.ErrValidation, "campaign name is required")
	}
	if c.MaxLeadsPerRun <= 0 {
		return eris.Wrapf(apperr.ErrValidation, "max_leads_per_run must be positive, got %d", c.MaxLeadsPerRun)
	}
	if c.MaxLeadsTotal < 0 {
		return eris.Wrapf(apperr.ErrValidation, "max_leads_total must not be negative, got %d", c.MaxLeadsTotal)
	}
	if c.PreferredTime != "" {
		if _, err := time.Parse("15:04", c.PreferredTime); err != nil {
			return eris.Wrapf(apperr.ErrValidation, "preferred_time must be HH:MM, got %q", c.PreferredTime)
		}
	}
	if err := c.Frequency.Validate(); err != nil {
		return err
	}
	return c.Criteria.Validate()
}
