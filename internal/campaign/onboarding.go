package campaign

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/model"
)

// Onboarding defaults.
const (
	DefaultPreset        = "1x_day"
	DefaultPreferredTime = "09:00"
	DefaultLeadsPerRun   = 50
	DefaultOnboardScore  = 70
)

// FrequencyPresets maps onboarding cadence choices to frequencies.
var FrequencyPresets = map[string]model.Frequency{
	"1x_day":   {Kind: model.FrequencyDaily, Value: 1, Unit: model.UnitDay},
	"2x_day":   {Kind: model.FrequencyCustom, Value: 12, Unit: model.UnitHour},
	"3x_week":  {Kind: model.FrequencyCustom, Value: 2, Unit: model.UnitDay},
	"1x_week":  {Kind: model.FrequencyWeekly, Value: 1, Unit: model.UnitWeek},
	"2x_month": {Kind: model.FrequencyCustom, Value: 15, Unit: model.UnitDay},
	"1x_month": {Kind: model.FrequencyMonthly, Value: 1, Unit: model.UnitMonth},
}

// Onboarding is the questionnaire a new client fills in.
type Onboarding struct {
	ProspectingFrequency string   `json:"prospecting_frequency"`
	TargetIndustries     []string `json:"target_industries"`
	BusinessType         string   `json:"business_type"`
	TargetKeywords       string   `json:"target_keywords,omitempty"`
	TargetLocations      []string `json:"target_locations,omitempty"`
	TargetTitles         []string `json:"target_titles,omitempty"`
	CompanySizes         []string `json:"company_sizes,omitempty"`
	PreferredTime        string   `json:"preferred_time,omitempty"`
	Timezone             string   `json:"timezone,omitempty"`
	LeadsPerRun          int      `json:"leads_per_run,omitempty"`
	TotalLeadsLimit      int      `json:"total_leads_limit,omitempty"`
	MinLeadScore         int      `json:"min_lead_score,omitempty"`
}

// Validate checks the required questionnaire fields.
func (o Onboarding) Validate() error {
	var missing []string
	if strings.TrimSpace(o.ProspectingFrequency) == "" {
		missing = append(missing, "prospecting_frequency")
	}
	if o.TargetIndustries == nil {
		missing = append(missing, "target_industries")
	}
	if strings.TrimSpace(o.BusinessType) == "" {
		missing = append(missing, "business_type")
	}
	if len(missing) > 0 {
		return eris.Wrapf(apperr.ErrValidation, "missing required field: %s", strings.Join(missing, ", "))
	}
	return nil
}

// FromOnboarding builds an active campaign from a questionnaire. Unknown
// presets run daily.
func FromOnboarding(clientID string, o Onboarding, now time.Time) (*model.Campaign, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	freq, ok := FrequencyPresets[o.ProspectingFrequency]
	if !ok {
		freq = FrequencyPresets[DefaultPreset]
	}
	perRun := o.LeadsPerRun
	if perRun <= 0 {
		perRun = DefaultLeadsPerRun
	}
	minScore := o.MinLeadScore
	if minScore <= 0 {
		minScore = DefaultOnboardScore
	}
	locations := o.TargetLocations
	if len(locations) == 0 {
		locations = append([]string(nil), model.DefaultLocations...)
	}
	preferred := o.PreferredTime
	if preferred == "" {
		preferred = DefaultPreferredTime
	}
	tz := o.Timezone
	if tz == "" {
		tz = model.DefaultTimezone
	}

	c := &model.Campaign{
		ClientID:    clientID,
		Name:        "Automated Lead Generation - " + strings.TrimSpace(o.BusinessType),
		Description: "Automated campaign based on onboarding preferences",
		Status:      model.CampaignStatusActive,
		Criteria: model.LeadCriteria{
			Keywords:       o.TargetKeywords,
			Industries:     o.TargetIndustries,
			Locations:      locations,
			Titles:         o.TargetTitles,
			CompanySizes:   o.CompanySizes,
			MinScore:       model.Int(minScore),
			MaxResults:     perRun,
			VerifyEmails:   model.Bool(true),
			EnrichProfiles: model.Bool(true),
		},
		Frequency:      freq,
		PreferredTime:  preferred,
		Timezone:       tz,
		MaxLeadsPerRun: perRun,
		MaxLeadsTotal:  o.TotalLeadsLimit,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	next := ComputeNextRun(c, now)
	c.NextRunAt = &next
	return c, nil
}
