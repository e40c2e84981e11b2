package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedClient(t *testing.T, st Store, quota, usage int) *model.Client {
	t.Helper()
	c := &model.Client{
		Name:            "Acme Recruiting",
		Email:           uuid.NewString() + "@acme.com.au",
		Plan:            model.PlanStarter,
		APIQuotaMonthly: quota,
		APIUsageCurrent: usage,
	}
	require.NoError(t, st.CreateClient(context.Background(), c))
	return c
}

func seedCampaign(t *testing.T, st Store, clientID string) *model.Campaign {
	t.Helper()
	next := time.Now().UTC().Add(-time.Minute)
	c := &model.Campaign{
		ClientID:       clientID,
		Name:           "Sydney CTOs",
		Status:         model.CampaignStatusActive,
		Criteria:       model.LeadCriteria{Keywords: "saas", Titles: []string{"CTO"}, MinScore: model.Int(70)},
		Frequency:      model.Frequency{Kind: model.FrequencyDaily, Value: 1, Unit: model.UnitDay},
		PreferredTime:  "09:00",
		Timezone:       model.DefaultTimezone,
		MaxLeadsPerRun: 20,
		NextRunAt:      &next,
	}
	require.NoError(t, st.CreateCampaign(context.Background(), c))
	return c
}

func testLead(clientID string, campaignID *string, email string, score int) model.Lead {
	now := time.Now().UTC()
	return model.NewLeadFromCandidate(uuid.NewString(), clientID, campaignID, model.CandidateLead{
		Name:   "Lead " + email,
		Email:  email,
		Score:  score,
		Source: "apollo",
		Verification: &model.VerificationResult{
			Email: email, Result: model.VerificationDeliverable, Score: 92, VerifiedAt: now,
		},
		Deliverable: true,
		Breakdown:   model.ScoreBreakdown{"email_present": 15},
	}, now)
}

func TestSQLite_Client_CreateGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedClient(t, st, 0, 0)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, 1000, c.APIQuotaMonthly, "quota defaults from plan")

	got, err := st.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, model.ClientStatusActive, got.Status)
	assert.Nil(t, got.UsageResetAt)
	assert.WithinDuration(t, c.CreatedAt, got.CreatedAt, time.Millisecond)

	_, err = st.GetClient(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	all, err := st.ListClients(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLite_IncrementUsage_RespectsQuota(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedClient(t, st, 100, 95)

	err := st.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.IncrementUsage(ctx, c.ID, 5, time.Now())
	})
	require.NoError(t, err)

	err = st.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.IncrementUsage(ctx, c.ID, 1, time.Now())
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrQuotaExceeded))

	got, err := st.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.APIUsageCurrent)

	require.NoError(t, st.ResetUsage(ctx, c.ID, time.Now()))
	got, err = st.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.APIUsageCurrent)
	assert.NotNil(t, got.UsageResetAt)
}

func TestSQLite_IncrementUsage_SuspendedClient(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := &model.Client{Name: "x", Email: "x@x.com", Status: model.ClientStatusSuspended, APIQuotaMonthly: 10}
	require.NoError(t, st.CreateClient(ctx, c))

	err := st.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.IncrementUsage(ctx, c.ID, 1, time.Now())
	})
	assert.True(t, errors.Is(err, apperr.ErrQuotaExceeded))
}

func TestSQLite_WithTx_RollbackLeavesNoLeads(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedClient(t, st, 100, 99)

	leads := []model.Lead{
		testLead(c.ID, nil, "a@acme.com.au", 80),
		testLead(c.ID, nil, "b@acme.com.au", 75),
	}
	err := st.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertLeads(ctx, leads); err != nil {
			return err
		}
		return tx.IncrementUsage(ctx, c.ID, len(leads), time.Now())
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrQuotaExceeded))

	n, err := st.CountLeads(ctx, LeadFilter{ClientID: c.ID})
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := st.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 99, got.APIUsageCurrent)
}

func TestSQLite_Leads_InsertListFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedClient(t, st, 1000, 0)
	camp := seedCampaign(t, st, c.ID)

	leads := []model.Lead{
		testLead(c.ID, &camp.ID, "low@acme.com.au", 61),
		testLead(c.ID, &camp.ID, "HIGH@acme.com.au", 95),
		testLead(c.ID, nil, "mid@acme.com.au", 77),
	}
	require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertLeads(ctx, leads); err != nil {
			return err
		}
		if err := tx.IncrementUsage(ctx, c.ID, len(leads), time.Now()); err != nil {
			return err
		}
		return tx.RefreshCampaignStats(ctx, camp.ID, 2, time.Now())
	}))

	all, err := st.ListLeads(ctx, LeadFilter{ClientID: c.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int{95, 77, 61}, []int{all[0].Score, all[1].Score, all[2].Score})
	assert.Equal(t, "high@acme.com.au", all[0].Email)
	require.NotNil(t, all[0].Verification)
	assert.Equal(t, model.VerificationDeliverable, all[0].Verification.Result)
	assert.Equal(t, 15, all[0].Metadata.ScoreBreakdown["email_present"])
	assert.True(t, all[0].EmailVerified)

	high, err := st.ListLeads(ctx, LeadFilter{ClientID: c.ID, MinScore: 70, CampaignID: camp.ID})
	require.NoError(t, err)
	require.Len(t, high, 1)

	page, err := st.ListLeads(ctx, LeadFilter{ClientID: c.ID, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 77, page[0].Score)

	emails, err := st.LeadEmails(ctx, c.ID)
	require.NoError(t, err)
	assert.Contains(t, emails, "high@acme.com.au")
	assert.Len(t, emails, 3)

	other := seedClient(t, st, 1000, 0)
	emails, err = st.LeadEmails(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, emails)

	got, err := st.GetCampaign(ctx, camp.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalLeadsGenerated)
	assert.Equal(t, 2, got.LeadsOnFile)
}

func TestSQLite_UpdateLead(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedClient(t, st, 1000, 0)

	l := testLead(c.ID, nil, "x@acme.com.au", 70)
	require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertLeads(ctx, []model.Lead{l})
	}))

	got, err := st.GetLead(ctx, c.ID, l.ID)
	require.NoError(t, err)
	got.TransitionStatus(model.LeadStatusContacted, "called", time.Now().UTC())
	require.NoError(t, st.UpdateLead(ctx, got))

	again, err := st.GetLead(ctx, c.ID, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusContacted, again.Status)
	assert.NotNil(t, again.ContactedAt)
	require.Len(t, again.Metadata.StatusHistory, 1)
	assert.Equal(t, model.LeadStatusNew, again.Metadata.StatusHistory[0].From)

	_, err = st.GetLead(ctx, "other-client", l.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "leads are scoped to their client")
}

func TestSQLite_Campaign_CRUDAndDue(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedClient(t, st, 1000, 0)
	due := seedCampaign(t, st, c.ID)

	later := seedCampaign(t, st, c.ID)
	future := time.Now().UTC().Add(time.Hour)
	later.NextRunAt = &future
	later.Name = "Later"
	require.NoError(t, st.UpdateCampaign(ctx, later))

	paused := seedCampaign(t, st, c.ID)
	paused.Status = model.CampaignStatusPaused
	require.NoError(t, st.UpdateCampaign(ctx, paused))

	got, err := st.GetCampaign(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, "saas", got.Criteria.Keywords)
	assert.Equal(t, model.FrequencyDaily, got.Frequency.Kind)
	assert.Equal(t, "09:00", got.PreferredTime)

	list, err := st.ListDueCampaigns(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, due.ID, list[0].ID)

	active, err := st.ListCampaigns(ctx, CampaignFilter{ClientID: c.ID, Status: model.CampaignStatusActive})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	missing := &model.Campaign{ID: "nope", ClientID: c.ID}
	assert.True(t, errors.Is(st.UpdateCampaign(ctx, missing), apperr.ErrNotFound))
}

func TestSQLite_DeleteCampaign_Cascades(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedClient(t, st, 1000, 0)
	camp := seedCampaign(t, st, c.ID)

	exec := model.NewExecution("", camp.ID, time.Now().UTC())
	require.NoError(t, st.CreateExecution(ctx, &exec))
	require.NoError(t, st.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertLeads(ctx, []model.Lead{testLead(c.ID, &camp.ID, "a@b.com.au", 80)})
	}))

	require.NoError(t, st.DeleteCampaign(ctx, camp.ID))

	_, err := st.GetExecution(ctx, exec.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	n, err := st.CountLeads(ctx, LeadFilter{ClientID: c.ID})
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.True(t, errors.Is(st.DeleteCampaign(ctx, camp.ID), apperr.ErrNotFound))
}

func TestSQLite_Executions(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedClient(t, st, 1000, 0)
	camp := seedCampaign(t, st, c.ID)

	base := time.Now().UTC().Add(-3 * time.Hour)
	first := model.NewExecution("", camp.ID, base)
	require.NoError(t, st.CreateExecution(ctx, &first))
	require.NoError(t, first.Complete(8, 20, &model.ExecutionSummary{AverageScore: 81.5},
		model.ProviderCalls{Apollo: 1, Hunter: 12}, base.Add(90*time.Second)))
	require.NoError(t, st.UpdateExecution(ctx, &first))

	second := model.NewExecution("", camp.ID, base.Add(time.Hour))
	require.NoError(t, st.CreateExecution(ctx, &second))

	got, err := st.GetExecution(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionCompleted, got.Status)
	assert.Equal(t, camp.Name, got.CampaignName)
	assert.Equal(t, 90, got.DurationSeconds)
	assert.Equal(t, 12, got.Calls.Hunter)
	require.NotNil(t, got.Summary)
	assert.InDelta(t, 81.5, got.Summary.AverageScore, 0.001)

	list, err := st.ListExecutions(ctx, ExecutionFilter{ClientID: c.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "most recent first")
	assert.Nil(t, list[0].Summary)

	running, err := st.ListExecutions(ctx, ExecutionFilter{
		Status:        model.ExecutionRunning,
		StartedBefore: base.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, second.ID, running[0].ID)

	recent, err := st.ListExecutions(ctx, ExecutionFilter{CampaignID: camp.ID, Since: base.Add(30 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestSQLite_UpdateExecutionFirstTerminalStateWins(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedClient(t, st, 1000, 0)
	camp := seedCampaign(t, st, c.ID)

	now := time.Now().UTC()
	exec := model.NewExecution("", camp.ID, now)
	require.NoError(t, st.CreateExecution(ctx, &exec))
	late := exec

	require.NoError(t, exec.Cancel("campaign cancelled", now.Add(time.Minute)))
	require.NoError(t, st.UpdateExecution(ctx, &exec))

	require.NoError(t, late.Complete(5, 10, nil, model.ProviderCalls{Apollo: 1}, now.Add(2*time.Minute)))
	err := st.UpdateExecution(ctx, &late)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	got, err := st.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionCancelled, got.Status)
	assert.Equal(t, "campaign cancelled", got.ErrorMessage)
	assert.Zero(t, got.LeadsGenerated)

	missing := model.NewExecution(uuid.NewString(), camp.ID, now)
	require.NoError(t, missing.Fail("boom", model.ProviderCalls{}, now))
	assert.True(t, errors.Is(st.UpdateExecution(ctx, &missing), apperr.ErrNotFound))
}
