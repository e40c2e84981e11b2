package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/apperr"
)

// LeadStatus is the lifecycle status of a persisted lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusRejected  LeadStatus = "rejected"
)

// ParseLeadStatus validates s as a lead status.
func ParseLeadStatus(s string) (LeadStatus, error) {
	switch st := LeadStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusConverted, LeadStatusRejected:
		return st, nil
	default:
		return "", eris.Wrapf(apperr.ErrValidation, "invalid lead status %q", s)
	}
}

// VerificationOutcome is the email verifier's verdict.
type VerificationOutcome string

const (
	VerificationDeliverable   VerificationOutcome = "deliverable"
	VerificationRisky         VerificationOutcome = "risky"
	VerificationUndeliverable VerificationOutcome = "undeliverable"
	VerificationUnknown       VerificationOutcome = "unknown"
)

// VerificationResult is the outcome of verifying one email address.
type VerificationResult struct {
	Email      string              `json:"email"`
	Result     VerificationOutcome `json:"result"`
	Score      int                 `json:"score"`
	Status     string              `json:"status,omitempty"`
	Webmail    bool                `json:"webmail,omitempty"`
	Disposable bool                `json:"disposable,omitempty"`
	AcceptAll  bool                `json:"accept_all,omitempty"`
	VerifiedAt time.Time           `json:"verified_at"`
}

// Deliverable treats a risky address with a high verifier score as deliverable.
func (v *VerificationResult) Deliverable() bool {
	if v == nil {
		return false
	}
	return v.Result == VerificationDeliverable || (v.Result == VerificationRisky && v.Score >= 70)
}

// ProfileValidation is the outcome of checking a professional-network profile URL.
type ProfileValidation struct {
	URL         string   `json:"url"`
	IsValid     bool     `json:"is_valid"`
	ProfileType string   `json:"profile_type,omitempty"`
	ExtractedID string   `json:"extracted_id,omitempty"`
	Issues      []string `json:"issues,omitempty"`
}

// OrgInfo is organization data returned by enrichment.
type OrgInfo struct {
	Name         string   `json:"name"`
	Domain       string   `json:"domain"`
	Industry     string   `json:"industry,omitempty"`
	Size         int      `json:"size,omitempty"`
	Location     string   `json:"location,omitempty"`
	Description  string   `json:"description,omitempty"`
	FoundedYear  int      `json:"founded_year,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
}

// ScoreBreakdown maps each triggered scoring signal to its points.
type ScoreBreakdown map[string]int

// Sum adds up every contribution.
func (b ScoreBreakdown) Sum() int {
	total := 0
	for _, v := range b {
		total += v
	}
	return total
}

// CandidateLead is a normalized provider record in flight through one
// pipeline run. Enrichment and scoring annotate it in place.
type CandidateLead struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Company       string `json:"company,omitempty"`
	CompanyDomain string `json:"company_domain,omitempty"`
	CompanySize   int    `json:"company_size,omitempty"`
	Title         string `json:"title,omitempty"`
	Industry      string `json:"industry,omitempty"`
	Location      string `json:"location,omitempty"`
	ProfileURL    string `json:"linkedin_url,omitempty"`
	Source        string `json:"source"`

	// Provider-local advisory score.
	PreliminaryScore int `json:"preliminary_score,omitempty"`

	Verification *VerificationResult `json:"verification,omitempty"`
	Deliverable  bool                `json:"deliverable,omitempty"`
	Profile      *ProfileValidation  `json:"profile,omitempty"`

	Score     int            `json:"score"`
	Breakdown ScoreBreakdown `json:"score_breakdown,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// NormalizedEmail is the dedup key of the candidate.
func (c *CandidateLead) NormalizedEmail() string {
	return NormalizeEmail(c.Email)
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain returns the part after '@', or "".
func EmailDomain(email string) string {
	if i := strings.LastIndexByte(email, '@'); i >= 0 {
		return strings.ToLower(email[i+1:])
	}
	return ""
}

// StatusChange is one entry in a lead's status audit log.
type StatusChange struct {
	From LeadStatus `json:"from"`
	To   LeadStatus `json:"to"`
	Note string     `json:"note,omitempty"`
	At   time.Time  `json:"at"`
}

// LeadMetadata is the structured free-form part of a lead.
type LeadMetadata struct {
	ScoreBreakdown   ScoreBreakdown     `json:"score_breakdown,omitempty"`
	PreliminaryScore int                `json:"preliminary_score,omitempty"`
	CompanyDomain    string             `json:"company_domain,omitempty"`
	Profile          *ProfileValidation `json:"profile,omitempty"`
	StatusHistory    []StatusChange     `json:"status_history,omitempty"`
	CRMID            string             `json:"crm_id,omitempty"`
}

// Lead is a persisted, scored contact owned by one client.
type Lead struct {
	ID            string              `json:"id"`
	ClientID      string              `json:"client_id"`
	CampaignID    *string             `json:"campaign_id,omitempty"`
	Name          string              `json:"name"`
	Email         string              `json:"email"`
	Phone         string              `json:"phone,omitempty"`
	Company       string              `json:"company,omitempty"`
	CompanySize   int                 `json:"company_size,omitempty"`
	Title         string              `json:"title,omitempty"`
	Industry      string              `json:"industry,omitempty"`
	Location      string              `json:"location,omitempty"`
	ProfileURL    string              `json:"linkedin_url,omitempty"`
	Score         int                 `json:"score"`
	EmailVerified bool                `json:"email_verified"`
	Verification  *VerificationResult `json:"verification_data,omitempty"`
	Status        LeadStatus          `json:"status"`
	Source        string              `json:"source"`
	Notes         string              `json:"notes,omitempty"`
	Metadata      LeadMetadata        `json:"metadata"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	ContactedAt   *time.Time          `json:"contacted_at,omitempty"`
}

// NewLeadFromCandidate converts a scored candidate into a new lead.
func NewLeadFromCandidate(id, clientID string, campaignID *string, c CandidateLead, now time.Time) Lead {
	return Lead{
		ID:            id,
		ClientID:      clientID,
		CampaignID:    campaignID,
		Name:          c.Name,
		Email:         NormalizeEmail(c.Email),
		Phone:         c.Phone,
		Company:       c.Company,
		CompanySize:   c.CompanySize,
		Title:         c.Title,
		Industry:      c.Industry,
		Location:      c.Location,
		ProfileURL:    c.ProfileURL,
		Score:         ClampScore(c.Score),
		EmailVerified: c.Deliverable,
		Verification:  c.Verification,
		Status:        LeadStatusNew,
		Source:        c.Source,
		Metadata: LeadMetadata{
			ScoreBreakdown:   c.Breakdown,
			PreliminaryScore: c.PreliminaryScore,
			CompanyDomain:    c.CompanyDomain,
			Profile:          c.Profile,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionStatus moves the lead to status and appends an audit entry.
func (l *Lead) TransitionStatus(to LeadStatus, note string, now time.Time) {
	l.Metadata.StatusHistory = append(l.Metadata.StatusHistory, StatusChange{
		From: l.Status,
		To:   to,
		Note: note,
		At:   now,
	})
	if to == LeadStatusContacted && l.ContactedAt == nil {
		t := now
		l.ContactedAt = &t
	}
	if note != "" {
		l.Notes = note
	}
	l.Status = to
	l.UpdatedAt = now
}

// ClampScore bounds s to [0,100].
func ClampScore(s int) int {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	default:
		return s
	}
}
