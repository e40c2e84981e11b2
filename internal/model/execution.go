package model

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/apperr"
)

// ExecutionStatus is the lifecycle status of one campaign execution.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s ExecutionStatus) Terminal() bool {
	return s != ExecutionRunning
}

// ProviderCalls counts outbound calls per provider during one run.
type ProviderCalls struct {
	Apollo   int `json:"apollo_calls"`
	Hunter   int `json:"hunter_calls"`
	LinkedIn int `json:"linkedin_calls"`
}

// GenerationSummary holds the per-stage counts of a pipeline run.
type GenerationSummary struct {
	RawResults      int `json:"raw_results"`
	AfterFiltering  int `json:"after_filtering"`
	AfterEnrichment int `json:"after_enrichment"`
	Qualified       int `json:"qualified_leads"`
	Final           int `json:"final_leads"`
}

// ExecutionSummary is the result summary stored on an execution.
type ExecutionSummary struct {
	Message           string            `json:"message,omitempty"`
	Generation        GenerationSummary `json:"generation_summary"`
	AverageScore      float64           `json:"average_score"`
	APIUsageRemaining int               `json:"api_usage_remaining"`
	LeadIDs           []string          `json:"lead_ids,omitempty"`
}

// CampaignExecution is one append-only log entry of a campaign run.
type CampaignExecution struct {
	ID              string            `json:"id"`
	CampaignID      string            `json:"campaign_id"`
	CampaignName    string            `json:"campaign_name,omitempty"`
	Status          ExecutionStatus   `json:"status"`
	LeadsGenerated  int               `json:"leads_generated"`
	LeadsProcessed  int               `json:"leads_processed"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	DurationSeconds int               `json:"duration_seconds"`
	Summary         *ExecutionSummary `json:"result_summary,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	Calls           ProviderCalls     `json:"api_calls"`
}

// NewExecution starts a running execution for campaignID.
func NewExecution(id, campaignID string, now time.Time) CampaignExecution {
	return CampaignExecution{
		ID:         id,
		CampaignID: campaignID,
		Status:     ExecutionRunning,
		StartedAt:  now,
	}
}

// Complete moves a running execution to completed.
func (e *CampaignExecution) Complete(leads, processed int, summary *ExecutionSummary, calls ProviderCalls, now time.Time) error {
	if err := e.finish(ExecutionCompleted, now); err != nil {
		return err
	}
	e.LeadsGenerated = leads
	e.LeadsProcessed = processed
	e.Summary = summary
	e.Calls = calls
	return nil
}

// Fail moves a running execution to failed.
func (e *CampaignExecution) Fail(msg string, calls ProviderCalls, now time.Time) error {
	if err := e.finish(ExecutionFailed, now); err != nil {
		return err
	}
	if msg == "" {
		msg = "unknown error"
	}
	e.ErrorMessage = msg
	e.Calls = calls
	return nil
}

// Cancel moves a running execution to cancelled.
func (e *CampaignExecution) Cancel(reason string, now time.Time) error {
	if err := e.finish(ExecutionCancelled, now); err != nil {
		return err
	}
	e.ErrorMessage = reason
	return nil
}

func (e *CampaignExecution) finish(to ExecutionStatus, now time.Time) error {
	if e.Status.Terminal() {
		return eris.Wrapf(apperr.ErrInvalidState, "execution %s already %s", e.ID, e.Status)
	}
	e.Status = to
	t := now
	e.CompletedAt = &t
	e.DurationSeconds = int(now.Sub(e.StartedAt).Seconds())
	return nil
}
