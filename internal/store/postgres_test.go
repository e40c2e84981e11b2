package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresStore(mock, nil), mock
}

func TestPostgresStore_GetClient_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, email, .* FROM clients WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetClient(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Contains(t, err.Error(), "postgres: client nonexistent")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithTx_CopiesLeadsAndCommits(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	leads := []model.Lead{
		testLead("c1", nil, "a@acme.com.au", 80),
		testLead("c1", nil, "b@acme.com.au", 72),
	}

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"leads"}, leadColumnList).WillReturnResult(2)
	mock.ExpectExec(`UPDATE clients SET api_usage_current = api_usage_current \+ \$1`).
		WithArgs(2, pgxmock.AnyArg(), "c1", "active").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertLeads(ctx, leads); err != nil {
			return err
		}
		return tx.IncrementUsage(ctx, "c1", len(leads), time.Now())
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IncrementUsage_ZeroRowsRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"leads"}, leadColumnList).WillReturnResult(1)
	mock.ExpectExec(`api_usage_current \+ \$1 <= api_quota_monthly`).
		WithArgs(1, pgxmock.AnyArg(), "c1", "active").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertLeads(ctx, []model.Lead{testLead("c1", nil, "a@acme.com.au", 80)}); err != nil {
			return err
		}
		return tx.IncrementUsage(ctx, "c1", 1, time.Now())
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrQuotaExceeded))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithTx_CopyErrorRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"leads"}, leadColumnList).WillReturnError(fmt.Errorf("unique violation"))
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertLeads(ctx, []model.Lead{testLead("c1", nil, "a@acme.com.au", 80)})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO leads")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithTx_BeginError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectBegin().WillReturnError(fmt.Errorf("too many connections"))

	called := false
	err := s.WithTx(context.Background(), func(context.Context, Tx) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.Contains(t, err.Error(), "begin tx")
}

func TestPostgresStore_RefreshCampaignStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE campaigns SET total_leads_generated = total_leads_generated \+ \$1`).
		WithArgs(7, "camp-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.RefreshCampaignStats(ctx, "camp-1", 7, time.Now())
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LeadEmails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT email FROM leads WHERE client_id = \$1`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"email"}).
			AddRow("Jane@Acme.com.au").
			AddRow("sam@acme.com.au"))

	got, err := s.LeadEmails(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"jane@acme.com.au": {}, "sam@acme.com.au": {}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountLeads_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM leads WHERE client_id = \$1 AND status = \$2 AND score >= \$3`).
		WithArgs("c1", "new", 70).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	n, err := s.CountLeads(context.Background(), LeadFilter{ClientID: "c1", Status: model.LeadStatusNew, MinScore: 70})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteCampaign(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM campaigns WHERE id = \$1`).
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteCampaign(context.Background(), "gone")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PingMigrateClose(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS clients`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
