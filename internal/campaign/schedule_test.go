package campaign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/model"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestComputeNextRun_AfterLastRun(t *testing.T) {
	last := mustTime(t, "2026-03-02T09:00:00Z")
	now := last.Add(3 * time.Minute)

	tests := []struct {
		name string
		freq model.Frequency
		want time.Duration
	}{
		{"daily", model.Frequency{Kind: model.FrequencyDaily}, 24 * time.Hour},
		{"weekly", model.Frequency{Kind: model.FrequencyWeekly}, 7 * 24 * time.Hour},
		{"monthly is thirty days", model.Frequency{Kind: model.FrequencyMonthly}, 30 * 24 * time.Hour},
		{"custom hours", model.Frequency{Kind: model.FrequencyCustom, Value: 12, Unit: model.UnitHour}, 12 * time.Hour},
		{"custom days", model.Frequency{Kind: model.FrequencyCustom, Value: 2, Unit: model.UnitDay}, 48 * time.Hour},
		{"custom weeks", model.Frequency{Kind: model.FrequencyCustom, Value: 3, Unit: model.UnitWeek}, 21 * 24 * time.Hour},
		{"custom unknown unit falls back to a day", model.Frequency{Kind: model.FrequencyCustom, Value: 2, Unit: model.UnitMonth}, 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &model.Campaign{Frequency: tt.freq, PreferredTime: "09:00", LastRunAt: &last}
			got := ComputeNextRun(c, now)
			assert.Equal(t, last.Add(tt.want), got)
			assert.True(t, got.After(last))
		})
	}
}

func TestComputeNextRun_HugeCustomIntervalSaturates(t *testing.T) {
	last := mustTime(t, "2026-05-11T09:00:00Z")
	c := &model.Campaign{
		Frequency: model.Frequency{Kind: model.FrequencyCustom, Value: 20000, Unit: model.UnitWeek},
		LastRunAt: &last,
	}

	got := ComputeNextRun(c, last.Add(time.Minute))
	assert.True(t, got.After(last), "next run %s must follow last run %s", got, last)
	assert.Equal(t, last.Add(366*24*time.Hour), got)
	assert.Equal(t, maxInterval, Interval(model.Frequency{Kind: model.FrequencyCustom, Value: 1 << 62, Unit: model.UnitHour}))
}

func TestComputeNextRun_DailyFromMorningRun(t *testing.T) {
	// A daily campaign last run at 09:00 on D is next due at 09:00 on D+1.
	last := mustTime(t, "2026-05-11T09:00:00Z")
	c := &model.Campaign{Frequency: model.Frequency{Kind: model.FrequencyDaily}, LastRunAt: &last}
	assert.Equal(t, mustTime(t, "2026-05-12T09:00:00Z"), ComputeNextRun(c, last.Add(time.Minute)))
}

func TestComputeNextRun_PreferredTime(t *testing.T) {
	c := &model.Campaign{
		Frequency:     model.Frequency{Kind: model.FrequencyDaily},
		PreferredTime: "09:00",
		Timezone:      "UTC",
	}

	before := mustTime(t, "2026-05-11T07:30:00Z")
	assert.Equal(t, mustTime(t, "2026-05-11T09:00:00Z"), ComputeNextRun(c, before), "slot later today")

	after := mustTime(t, "2026-05-11T10:15:00Z")
	assert.Equal(t, mustTime(t, "2026-05-12T09:00:00Z"), ComputeNextRun(c, after), "slot passed, tomorrow")

	exact := mustTime(t, "2026-05-11T09:00:00Z")
	assert.Equal(t, mustTime(t, "2026-05-12T09:00:00Z"), ComputeNextRun(c, exact), "slot at now is not in the future")
}

func TestComputeNextRun_PreferredTimeUsesTimezone(t *testing.T) {
	c := &model.Campaign{
		Frequency:     model.Frequency{Kind: model.FrequencyDaily},
		PreferredTime: "09:00",
		Timezone:      "Australia/Sydney",
	}
	// 2026-05-11 20:00 UTC is 06:00 on the 12th in Sydney (AEST, +10).
	now := mustTime(t, "2026-05-11T20:00:00Z")
	assert.Equal(t, mustTime(t, "2026-05-11T23:00:00Z"), ComputeNextRun(c, now))

	c.Timezone = "Not/AZone"
	assert.Equal(t, mustTime(t, "2026-05-12T09:00:00Z"), ComputeNextRun(c, now), "unknown zone falls back to UTC")
}

func TestComputeNextRun_NoPreferredTime(t *testing.T) {
	now := mustTime(t, "2026-05-11T10:15:00Z")
	c := &model.Campaign{Frequency: model.Frequency{Kind: model.FrequencyWeekly}}
	assert.Equal(t, now.Add(5*time.Minute), ComputeNextRun(c, now))

	c.PreferredTime = "garbage"
	assert.Equal(t, now.Add(5*time.Minute), ComputeNextRun(c, now))
}

func TestComputeNextRun_Deterministic(t *testing.T) {
	now := mustTime(t, "2026-05-11T10:15:00Z")
	last := now.Add(-time.Hour)
	for _, c := range []*model.Campaign{
		{Frequency: model.Frequency{Kind: model.FrequencyDaily}, PreferredTime: "09:00"},
		{Frequency: model.Frequency{Kind: model.FrequencyCustom, Value: 4, Unit: model.UnitHour}, LastRunAt: &last},
	} {
		first := ComputeNextRun(c, now)
		assert.Equal(t, first, ComputeNextRun(c, now))
		assert.True(t, first.After(now.Add(-time.Hour)))
	}
}

func TestIsDue(t *testing.T) {
	now := mustTime(t, "2026-05-11T10:00:00Z")
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, IsDue(&model.Campaign{Status: model.CampaignStatusActive}, now), "unset next run")
	assert.True(t, IsDue(&model.Campaign{Status: model.CampaignStatusActive, NextRunAt: &past}, now))
	assert.True(t, IsDue(&model.Campaign{Status: model.CampaignStatusActive, NextRunAt: &now}, now))
	assert.False(t, IsDue(&model.Campaign{Status: model.CampaignStatusActive, NextRunAt: &future}, now))
	assert.False(t, IsDue(&model.Campaign{Status: model.CampaignStatusPaused, NextRunAt: &past}, now))
	assert.False(t, IsDue(&model.Campaign{Status: model.CampaignStatusCompleted}, now))
}
