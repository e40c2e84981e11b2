package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/apperr"
)

func TestLeadCriteria_WithDefaults(t *testing.T) {
	c := LeadCriteria{Keywords: "saas"}.WithDefaults()

	assert.Equal(t, DefaultMinScore, c.Threshold())
	assert.Equal(t, DefaultMaxResults, c.MaxResults)
	assert.Equal(t, []string{"Australia"}, c.Locations)
	assert.True(t, c.ShouldVerifyEmails())
	assert.True(t, c.ShouldEnrichProfiles())

	c = LeadCriteria{Locations: []string{"Perth"}, VerifyEmails: Bool(false)}.WithDefaults()
	assert.Equal(t, []string{"Perth"}, c.Locations)
	assert.False(t, c.ShouldVerifyEmails())

	c = LeadCriteria{MinScore: Int(0)}.WithDefaults()
	require.NotNil(t, c.MinScore)
	assert.Equal(t, 0, c.Threshold(), "an explicit zero threshold is kept")
}

func TestLeadCriteria_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       LeadCriteria
		wantErr bool
	}{
		{"ok", LeadCriteria{MinScore: Int(60), MaxResults: 50}, false},
		{"zero min score", LeadCriteria{MinScore: Int(0)}, false},
		{"negative min score", LeadCriteria{MinScore: Int(-1)}, true},
		{"min score above 100", LeadCriteria{MinScore: Int(101)}, true},
		{"too many results", LeadCriteria{MaxResults: MaxResultsCeiling + 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperr.ErrValidation))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestVerificationResult_Deliverable(t *testing.T) {
	assert.True(t, (&VerificationResult{Result: VerificationDeliverable}).Deliverable())
	assert.True(t, (&VerificationResult{Result: VerificationRisky, Score: 70}).Deliverable())
	assert.False(t, (&VerificationResult{Result: VerificationRisky, Score: 69}).Deliverable())
	assert.False(t, (&VerificationResult{Result: VerificationUndeliverable, Score: 99}).Deliverable())
	var nilResult *VerificationResult
	assert.False(t, nilResult.Deliverable())
}

func TestLead_TransitionStatus(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	l := Lead{Status: LeadStatusNew}

	l.TransitionStatus(LeadStatusContacted, "left voicemail", now)
	l.TransitionStatus(LeadStatusQualified, "", now.Add(time.Hour))
	l.TransitionStatus(LeadStatusContacted, "", now.Add(2*time.Hour))

	require.Len(t, l.Metadata.StatusHistory, 3)
	assert.Equal(t, LeadStatusNew, l.Metadata.StatusHistory[0].From)
	assert.Equal(t, LeadStatusContacted, l.Metadata.StatusHistory[0].To)
	assert.Equal(t, "left voicemail", l.Metadata.StatusHistory[0].Note)
	require.NotNil(t, l.ContactedAt)
	assert.Equal(t, now, *l.ContactedAt, "first contact time is kept")
	assert.Equal(t, LeadStatusContacted, l.Status)
}

func TestParseLeadStatus(t *testing.T) {
	st, err := ParseLeadStatus(" Qualified ")
	require.NoError(t, err)
	assert.Equal(t, LeadStatusQualified, st)

	_, err = ParseLeadStatus("archived")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, ClampScore(-5))
	assert.Equal(t, 42, ClampScore(42))
	assert.Equal(t, 100, ClampScore(130))
}

func TestCampaign_EffectiveRunLimit(t *testing.T) {
	c := Campaign{MaxLeadsPerRun: 50, MaxLeadsTotal: 100, TotalLeadsGenerated: 90}
	assert.Equal(t, 10, c.EffectiveRunLimit())
	assert.False(t, c.ReachedTotalLimit())

	c.TotalLeadsGenerated = 100
	assert.Equal(t, 0, c.EffectiveRunLimit())
	assert.True(t, c.ReachedTotalLimit())

	unlimited := Campaign{MaxLeadsPerRun: 50, TotalLeadsGenerated: 10_000}
	assert.Equal(t, 50, unlimited.EffectiveRunLimit())
	assert.False(t, unlimited.ReachedTotalLimit())
}

func TestCampaign_Validate(t *testing.T) {
	base := Campaign{
		Name:           "Sydney SaaS",
		MaxLeadsPerRun: 25,
		Frequency:      Frequency{Kind: FrequencyDaily, Value: 1, Unit: UnitDay},
		PreferredTime:  "09:00",
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.PreferredTime = "9am"
	assert.True(t, errors.Is(bad.Validate(), apperr.ErrValidation))

	bad = base
	bad.Frequency = Frequency{Kind: FrequencyCustom}
	assert.True(t, errors.Is(bad.Validate(), apperr.ErrValidation))

	bad = base
	bad.Name = "  "
	assert.True(t, errors.Is(bad.Validate(), apperr.ErrValidation))
}

func TestFrequency_ValidateUpperBound(t *testing.T) {
	tests := []struct {
		name    string
		f       Frequency
		wantErr bool
	}{
		{"52 weeks", Frequency{Kind: FrequencyCustom, Value: 52, Unit: UnitWeek}, false},
		{"366 days", Frequency{Kind: FrequencyCustom, Value: 366, Unit: UnitDay}, false},
		{"8784 hours", Frequency{Kind: FrequencyCustom, Value: MaxIntervalHours, Unit: UnitHour}, false},
		{"53 weeks", Frequency{Kind: FrequencyCustom, Value: 53, Unit: UnitWeek}, true},
		{"20000 weeks", Frequency{Kind: FrequencyCustom, Value: 20000, Unit: UnitWeek}, true},
		{"367 days", Frequency{Kind: FrequencyCustom, Value: 367, Unit: UnitDay}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.f.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, apperr.ErrValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCampaignExecution_SingleTerminalState(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	e := NewExecution("e1", "c1", start)

	require.NoError(t, e.Complete(7, 20, &ExecutionSummary{}, ProviderCalls{Apollo: 1}, start.Add(90*time.Second)))
	assert.Equal(t, ExecutionCompleted, e.Status)
	assert.Equal(t, 90, e.DurationSeconds)
	assert.Equal(t, 7, e.LeadsGenerated)

	err := e.Fail("late failure", ProviderCalls{}, start.Add(2*time.Minute))
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	assert.Equal(t, ExecutionCompleted, e.Status)
}

func TestClient_CanGenerate(t *testing.T) {
	c := Client{Status: ClientStatusActive, APIQuotaMonthly: 100, APIUsageCurrent: 50}
	assert.True(t, c.CanGenerate(50))
	assert.False(t, c.CanGenerate(51))
	assert.Equal(t, 50, c.Remaining())

	c.Status = ClientStatusSuspended
	assert.False(t, c.CanGenerate(1))
	assert.Equal(t, 20000, PlanEnterprise.MonthlyQuota())
	assert.Equal(t, 1000, Plan("unknown").MonthlyQuota())
}
