package model

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/apperr"
)

// Criteria defaults applied when a request leaves a field unset.
const (
	DefaultMinScore   = 60
	DefaultMaxResults = 100
	MaxResultsCeiling = 1000
)

// DefaultLocations is used when criteria name no location.
var DefaultLocations = []string{"Australia"}

// LeadCriteria is the search request a client (or a campaign) submits to
// the pipeline. It has no identity and lives for one request.
type LeadCriteria struct {
	Keywords     string   `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Industries   []string `json:"industries,omitempty" yaml:"industries,omitempty"`
	Locations    []string `json:"locations,omitempty" yaml:"locations,omitempty"`
	Titles       []string `json:"titles,omitempty" yaml:"titles,omitempty"`
	CompanySizes []string `json:"company_sizes,omitempty" yaml:"company_sizes,omitempty"`
	MaxResults   int      `json:"max_results,omitempty" yaml:"max_results,omitempty"`

	// Nil means DefaultMinScore; an explicit 0 keeps every scored lead.
	MinScore *int `json:"min_score,omitempty" yaml:"min_score,omitempty"`

	// Nil means enabled.
	VerifyEmails   *bool `json:"verify_emails,omitempty" yaml:"verify_emails,omitempty"`
	EnrichProfiles *bool `json:"enrich_linkedin,omitempty" yaml:"enrich_linkedin,omitempty"`
}

// ShouldVerifyEmails reports whether email verification is requested.
func (c LeadCriteria) ShouldVerifyEmails() bool {
	return c.VerifyEmails == nil || *c.VerifyEmails
}

// ShouldEnrichProfiles reports whether profile URL validation is requested.
func (c LeadCriteria) ShouldEnrichProfiles() bool {
	return c.EnrichProfiles == nil || *c.EnrichProfiles
}

// Threshold is the minimum score a lead needs to be kept.
func (c LeadCriteria) Threshold() int {
	if c.MinScore == nil {
		return DefaultMinScore
	}
	return *c.MinScore
}

// WithDefaults returns a copy with unset fields filled in.
func (c LeadCriteria) WithDefaults() LeadCriteria {
	if c.MinScore == nil {
		c.MinScore = Int(DefaultMinScore)
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
	if len(nonEmpty(c.Locations)) == 0 {
		c.Locations = append([]string(nil), DefaultLocations...)
	}
	return c
}

// Validate rejects criteria the pipeline cannot act on.
func (c LeadCriteria) Validate() error {
	if s := c.Threshold(); s < 0 || s > 100 {
		return eris.Wrapf(apperr.ErrValidation, "min_score must be between 0 and 100, got %d", s)
	}
	if c.MaxResults < 0 || c.MaxResults > MaxResultsCeiling {
		return eris.Wrapf(apperr.ErrValidation, "max_results must be between 0 and %d, got %d", MaxResultsCeiling, c.MaxResults)
	}
	return nil
}

// Bool returns a pointer to b, for the optional criteria flags.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to n, for the optional criteria fields.
func Int(n int) *int { return &n }

func nonEmpty(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SearchParams is the provider-facing translation of LeadCriteria.
type SearchParams struct {
	Page          int
	PerPage       int
	Keywords      string
	Locations     []string
	Titles        []string
	Industries    []string
	EmployeeRange []string
}
