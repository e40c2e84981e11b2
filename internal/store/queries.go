package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/db"
	"github.com/sells-group/leadgen/internal/model"
)

const defaultListLimit = 100

// conn is the statement surface both drivers are adapted to.
type conn interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
	query(ctx context.Context, query string, args ...any) (rowIter, error)
	queryRow(ctx context.Context, query string, args ...any) scannable
}

type scannable interface {
	Scan(dest ...any) error
}

type rowIter interface {
	scannable
	Next() bool
	Err() error
	Close()
}

type pgxConn struct{ q db.Querier }

func (c pgxConn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c pgxConn) query(ctx context.Context, query string, args ...any) (rowIter, error) {
	rows, err := c.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c pgxConn) queryRow(ctx context.Context, query string, args ...any) scannable {
	return c.q.QueryRow(ctx, query, args...)
}

// sqlQuerier is satisfied by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlConn struct{ q sqlQuerier }

func (c sqlConn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c sqlConn) query(ctx context.Context, query string, args ...any) (rowIter, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

func (c sqlConn) queryRow(ctx context.Context, query string, args ...any) scannable {
	return c.q.QueryRowContext(ctx, query, args...)
}

type sqlRows struct{ *sql.Rows }

func (r sqlRows) Close() { _ = r.Rows.Close() }

// queries implements the read and single-row write half of Store on top of
// a conn. name prefixes every error ("postgres", "sqlite").
type queries struct {
	c    conn
	name string
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

func (q queries) notFound(entity, id string) error {
	return eris.Wrapf(apperr.ErrNotFound, "%s: %s %s", q.name, entity, id)
}

func (q queries) checkRowsAffected(n int64, entity, id string) error {
	if n == 0 {
		return q.notFound(entity, id)
	}
	return nil
}

// where accumulates AND-ed predicates with positional arguments. Each
// clause carries one %d verb for its placeholder index.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// page appends LIMIT/OFFSET. A non-positive limit falls back to def; a
// non-positive def means unbounded.
func (w *where) page(limit, offset, def int) string {
	if limit <= 0 {
		limit = def
	}
	var out string
	if limit > 0 {
		w.args = append(w.args, limit)
		out += fmt.Sprintf(" LIMIT $%d", len(w.args))
	}
	if offset > 0 {
		w.args = append(w.args, offset)
		out += fmt.Sprintf(" OFFSET $%d", len(w.args))
	}
	return out
}

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// nullJSON marshals v, or returns nil for a nil pointer so the column
// stores NULL.
func nullJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalNullable[T any](data []byte) (*T, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = *created
	}
}

// --- Clients ---

const clientColumns = `id, name, email, company, plan, status, api_quota_monthly, api_usage_current, api_usage_reset_at, created_at, updated_at`

func scanClient(row scannable) (*model.Client, error) {
	var c model.Client
	var plan, status string
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Company, &plan, &status,
		&c.APIQuotaMonthly, &c.APIUsageCurrent, &c.UsageResetAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Plan = model.Plan(plan)
	c.Status = model.ClientStatus(status)
	c.UsageResetAt = utcPtr(c.UsageResetAt)
	c.CreatedAt, c.UpdatedAt = c.CreatedAt.UTC(), c.UpdatedAt.UTC()
	return &c, nil
}

func (q queries) CreateClient(ctx context.Context, c *model.Client) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Plan == "" {
		c.Plan = model.PlanStarter
	}
	if c.Status == "" {
		c.Status = model.ClientStatusActive
	}
	if c.APIQuotaMonthly == 0 {
		c.APIQuotaMonthly = c.Plan.MonthlyQuota()
	}
	stamp(&c.CreatedAt, &c.UpdatedAt)

	_, err := q.c.exec(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.Name, strings.ToLower(strings.TrimSpace(c.Email)), c.Company, string(c.Plan), string(c.Status),
		c.APIQuotaMonthly, c.APIUsageCurrent, utcPtr(c.UsageResetAt), c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "%s: insert client", q.name)
}

func (q queries) GetClient(ctx context.Context, id string) (*model.Client, error) {
	c, err := scanClient(q.c.queryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if isNoRows(err) {
		return nil, q.notFound("client", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: get client %s", q.name, id)
	}
	return c, nil
}

func (q queries) ListClients(ctx context.Context) ([]model.Client, error) {
	rows, err := q.c.query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list clients", q.name)
	}
	defer rows.Close()

	var out []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: scan client", q.name)
		}
		out = append(out, *c)
	}
	return out, eris.Wrapf(rows.Err(), "%s: list clients iterate", q.name)
}

func (q queries) ResetUsage(ctx context.Context, clientID string, at time.Time) error {
	n, err := q.c.exec(ctx,
		`UPDATE clients SET api_usage_current = 0, api_usage_reset_at = $1, updated_at = $1 WHERE id = $2`,
		at.UTC(), clientID,
	)
	if err != nil {
		return eris.Wrapf(err, "%s: reset usage %s", q.name, clientID)
	}
	return q.checkRowsAffected(n, "client", clientID)
}

// --- Leads ---

const leadColumns = `id, client_id, campaign_id, name, email, phone, company, company_size, title, industry, location, linkedin_url, score, email_verified, verification_data, status, source, notes, metadata, created_at, updated_at, contacted_at`

// leadColumnList is leadColumns split for COPY.
var leadColumnList = strings.Split(strings.ReplaceAll(leadColumns, " ", ""), ",")

func leadRow(l *model.Lead) ([]any, error) {
	verification, err := nullJSON(l.Verification)
	if err != nil {
		return nil, eris.Wrap(err, "marshal verification")
	}
	metadata, err := marshalJSON(l.Metadata)
	if err != nil {
		return nil, eris.Wrap(err, "marshal metadata")
	}
	return []any{
		l.ID, l.ClientID, l.CampaignID, l.Name, model.NormalizeEmail(l.Email), l.Phone, l.Company,
		l.CompanySize, l.Title, l.Industry, l.Location, l.ProfileURL, l.Score, l.EmailVerified,
		verification, string(l.Status), l.Source, l.Notes, metadata, l.CreatedAt.UTC(), l.UpdatedAt.UTC(),
		utcPtr(l.ContactedAt),
	}, nil
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var status string
	var verification, metadata []byte
	if err := row.Scan(&l.ID, &l.ClientID, &l.CampaignID, &l.Name, &l.Email, &l.Phone, &l.Company,
		&l.CompanySize, &l.Title, &l.Industry, &l.Location, &l.ProfileURL, &l.Score, &l.EmailVerified,
		&verification, &status, &l.Source, &l.Notes, &metadata, &l.CreatedAt, &l.UpdatedAt,
		&l.ContactedAt); err != nil {
		return nil, err
	}
	l.Status = model.LeadStatus(status)

	v, err := unmarshalNullable[model.VerificationResult](verification)
	if err != nil {
		return nil, eris.Wrap(err, "unmarshal verification")
	}
	l.Verification = v
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &l.Metadata); err != nil {
			return nil, eris.Wrap(err, "unmarshal metadata")
		}
	}
	l.CreatedAt, l.UpdatedAt = l.CreatedAt.UTC(), l.UpdatedAt.UTC()
	l.ContactedAt = utcPtr(l.ContactedAt)
	return &l, nil
}

func (q queries) LeadEmails(ctx context.Context, clientID string) (map[string]struct{}, error) {
	rows, err := q.c.query(ctx, `SELECT email FROM leads WHERE client_id = $1`, clientID)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: lead emails %s", q.name, clientID)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, eris.Wrapf(err, "%s: scan lead email", q.name)
		}
		if e := model.NormalizeEmail(email); e != "" {
			out[e] = struct{}{}
		}
	}
	return out, eris.Wrapf(rows.Err(), "%s: lead emails iterate", q.name)
}

func (q queries) GetLead(ctx context.Context, clientID, leadID string) (*model.Lead, error) {
	l, err := scanLead(q.c.queryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1 AND client_id = $2`, leadID, clientID))
	if isNoRows(err) {
		return nil, q.notFound("lead", leadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: get lead %s", q.name, leadID)
	}
	return l, nil
}

func leadWhere(f LeadFilter) *where {
	w := &where{}
	w.add("client_id = $%d", f.ClientID)
	if f.CampaignID != "" {
		w.add("campaign_id = $%d", f.CampaignID)
	}
	if f.Status != "" {
		w.add("status = $%d", string(f.Status))
	}
	if f.MinScore > 0 {
		w.add("score >= $%d", f.MinScore)
	}
	return w
}

func (q queries) ListLeads(ctx context.Context, f LeadFilter) ([]model.Lead, error) {
	w := leadWhere(f)
	query := `SELECT ` + leadColumns + ` FROM leads` + w.String() + ` ORDER BY score DESC, created_at DESC`
	query += w.page(f.Limit, f.Offset, defaultListLimit)

	rows, err := q.c.query(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list leads", q.name)
	}
	defer rows.Close()

	var out []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: scan lead", q.name)
		}
		out = append(out, *l)
	}
	return out, eris.Wrapf(rows.Err(), "%s: list leads iterate", q.name)
}

func (q queries) CountLeads(ctx context.Context, f LeadFilter) (int, error) {
	w := leadWhere(f)
	var n int
	if err := q.c.queryRow(ctx, `SELECT COUNT(*) FROM leads`+w.String(), w.args...).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "%s: count leads", q.name)
	}
	return n, nil
}

func (q queries) UpdateLead(ctx context.Context, l *model.Lead) error {
	metadata, err := marshalJSON(l.Metadata)
	if err != nil {
		return eris.Wrapf(err, "%s: marshal metadata", q.name)
	}
	n, err := q.c.exec(ctx,
		`UPDATE leads SET status = $1, notes = $2, metadata = $3, updated_at = $4, contacted_at = $5 WHERE id = $6 AND client_id = $7`,
		string(l.Status), l.Notes, metadata, l.UpdatedAt.UTC(), utcPtr(l.ContactedAt), l.ID, l.ClientID,
	)
	if err != nil {
		return eris.Wrapf(err, "%s: update lead %s", q.name, l.ID)
	}
	return q.checkRowsAffected(n, "lead", l.ID)
}

// --- Campaigns ---

const campaignColumns = `id, client_id, name, description, status, criteria, frequency, frequency_value, frequency_unit, preferred_time, timezone, max_leads_per_run, max_leads_total, total_leads_generated, leads_on_file, last_run_at, next_run_at, created_at, updated_at`

func scanCampaign(row scannable) (*model.Campaign, error) {
	var c model.Campaign
	var status, kind, unit string
	var criteria []byte
	if err := row.Scan(&c.ID, &c.ClientID, &c.Name, &c.Description, &status, &criteria,
		&kind, &c.Frequency.Value, &unit, &c.PreferredTime, &c.Timezone,
		&c.MaxLeadsPerRun, &c.MaxLeadsTotal, &c.TotalLeadsGenerated, &c.LeadsOnFile,
		&c.LastRunAt, &c.NextRunAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = model.CampaignStatus(status)
	c.Frequency.Kind = model.FrequencyKind(kind)
	c.Frequency.Unit = model.FrequencyUnit(unit)
	if len(criteria) > 0 {
		if err := json.Unmarshal(criteria, &c.Criteria); err != nil {
			return nil, eris.Wrap(err, "unmarshal criteria")
		}
	}
	c.LastRunAt, c.NextRunAt = utcPtr(c.LastRunAt), utcPtr(c.NextRunAt)
	c.CreatedAt, c.UpdatedAt = c.CreatedAt.UTC(), c.UpdatedAt.UTC()
	return &c, nil
}

func campaignArgs(c *model.Campaign) ([]any, error) {
	criteria, err := marshalJSON(c.Criteria)
	if err != nil {
		return nil, eris.Wrap(err, "marshal criteria")
	}
	return []any{
		c.ID, c.ClientID, c.Name, c.Description, string(c.Status), criteria,
		string(c.Frequency.Kind), c.Frequency.Value, string(c.Frequency.Unit), c.PreferredTime, c.Timezone,
		c.MaxLeadsPerRun, c.MaxLeadsTotal, c.TotalLeadsGenerated, c.LeadsOnFile,
		utcPtr(c.LastRunAt), utcPtr(c.NextRunAt), c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	}, nil
}

func (q queries) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	stamp(&c.CreatedAt, &c.UpdatedAt)
	args, err := campaignArgs(c)
	if err != nil {
		return eris.Wrapf(err, "%s: create campaign", q.name)
	}
	_, err = q.c.exec(ctx,
		`INSERT INTO campaigns (`+campaignColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		args...,
	)
	return eris.Wrapf(err, "%s: insert campaign", q.name)
}

func (q queries) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	c, err := scanCampaign(q.c.queryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if isNoRows(err) {
		return nil, q.notFound("campaign", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: get campaign %s", q.name, id)
	}
	return c, nil
}

func (q queries) listCampaigns(ctx context.Context, query string, args ...any) ([]model.Campaign, error) {
	rows, err := q.c.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list campaigns", q.name)
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: scan campaign", q.name)
		}
		out = append(out, *c)
	}
	return out, eris.Wrapf(rows.Err(), "%s: list campaigns iterate", q.name)
}

func (q queries) ListCampaigns(ctx context.Context, f CampaignFilter) ([]model.Campaign, error) {
	w := &where{}
	if f.ClientID != "" {
		w.add("client_id = $%d", f.ClientID)
	}
	if f.Status != "" {
		w.add("status = $%d", string(f.Status))
	}
	query := `SELECT ` + campaignColumns + ` FROM campaigns` + w.String() + ` ORDER BY created_at DESC`
	query += w.page(f.Limit, f.Offset, defaultListLimit)
	return q.listCampaigns(ctx, query, w.args...)
}

// ListDueCampaigns returns active campaigns whose next run is unset or at or
// before now, earliest first.
func (q queries) ListDueCampaigns(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	return q.listCampaigns(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE status = $1 AND (next_run_at IS NULL OR next_run_at <= $2) ORDER BY next_run_at`,
		string(model.CampaignStatusActive), now.UTC(),
	)
}

func (q queries) UpdateCampaign(ctx context.Context, c *model.Campaign) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	criteria, err := marshalJSON(c.Criteria)
	if err != nil {
		return eris.Wrapf(err, "%s: marshal criteria", q.name)
	}
	n, err := q.c.exec(ctx,
		`UPDATE campaigns SET name = $1, description = $2, status = $3, criteria = $4, frequency = $5,
			frequency_value = $6, frequency_unit = $7, preferred_time = $8, timezone = $9,
			max_leads_per_run = $10, max_leads_total = $11, total_leads_generated = $12, leads_on_file = $13,
			last_run_at = $14, next_run_at = $15, updated_at = $16
		WHERE id = $17 AND client_id = $18`,
		c.Name, c.Description, string(c.Status), criteria, string(c.Frequency.Kind),
		c.Frequency.Value, string(c.Frequency.Unit), c.PreferredTime, c.Timezone,
		c.MaxLeadsPerRun, c.MaxLeadsTotal, c.TotalLeadsGenerated, c.LeadsOnFile,
		utcPtr(c.LastRunAt), utcPtr(c.NextRunAt), c.UpdatedAt.UTC(), c.ID, c.ClientID,
	)
	if err != nil {
		return eris.Wrapf(err, "%s: update campaign %s", q.name, c.ID)
	}
	return q.checkRowsAffected(n, "campaign", c.ID)
}

func (q queries) DeleteCampaign(ctx context.Context, id string) error {
	n, err := q.c.exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "%s: delete campaign %s", q.name, id)
	}
	return q.checkRowsAffected(n, "campaign", id)
}

// --- Executions ---

const executionColumns = `e.id, e.campaign_id, c.name, e.status, e.leads_generated, e.leads_processed, e.started_at, e.completed_at, e.duration_seconds, e.result_summary, e.error_message, e.apollo_calls, e.hunter_calls, e.linkedin_calls`

const executionFrom = ` FROM campaign_executions e JOIN campaigns c ON c.id = e.campaign_id`

func scanExecution(row scannable) (*model.CampaignExecution, error) {
	var e model.CampaignExecution
	var status string
	var summary []byte
	if err := row.Scan(&e.ID, &e.CampaignID, &e.CampaignName, &status, &e.LeadsGenerated, &e.LeadsProcessed,
		&e.StartedAt, &e.CompletedAt, &e.DurationSeconds, &summary, &e.ErrorMessage,
		&e.Calls.Apollo, &e.Calls.Hunter, &e.Calls.LinkedIn); err != nil {
		return nil, err
	}
	e.Status = model.ExecutionStatus(status)
	s, err := unmarshalNullable[model.ExecutionSummary](summary)
	if err != nil {
		return nil, eris.Wrap(err, "unmarshal result summary")
	}
	e.Summary = s
	e.StartedAt = e.StartedAt.UTC()
	e.CompletedAt = utcPtr(e.CompletedAt)
	return &e, nil
}

func (q queries) CreateExecution(ctx context.Context, e *model.CampaignExecution) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = model.ExecutionRunning
	}
	summary, err := nullJSON(e.Summary)
	if err != nil {
		return eris.Wrapf(err, "%s: marshal result summary", q.name)
	}
	_, err = q.c.exec(ctx,
		`INSERT INTO campaign_executions (id, campaign_id, status, leads_generated, leads_processed, started_at,
			completed_at, duration_seconds, result_summary, error_message, apollo_calls, hunter_calls, linkedin_calls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.CampaignID, string(e.Status), e.LeadsGenerated, e.LeadsProcessed, e.StartedAt.UTC(),
		utcPtr(e.CompletedAt), e.DurationSeconds, summary, e.ErrorMessage,
		e.Calls.Apollo, e.Calls.Hunter, e.Calls.LinkedIn,
	)
	return eris.Wrapf(err, "%s: insert execution", q.name)
}

// UpdateExecution only overwrites a running row, so the first terminal
// state written wins.
func (q queries) UpdateExecution(ctx context.Context, e *model.CampaignExecution) error {
	summary, err := nullJSON(e.Summary)
	if err != nil {
		return eris.Wrapf(err, "%s: marshal result summary", q.name)
	}
	n, err := q.c.exec(ctx,
		`UPDATE campaign_executions SET status = $1, leads_generated = $2, leads_processed = $3, completed_at = $4,
			duration_seconds = $5, result_summary = $6, error_message = $7, apollo_calls = $8, hunter_calls = $9,
			linkedin_calls = $10
		WHERE id = $11 AND status = $12`,
		string(e.Status), e.LeadsGenerated, e.LeadsProcessed, utcPtr(e.CompletedAt), e.DurationSeconds,
		summary, e.ErrorMessage, e.Calls.Apollo, e.Calls.Hunter, e.Calls.LinkedIn, e.ID,
		string(model.ExecutionRunning),
	)
	if err != nil {
		return eris.Wrapf(err, "%s: update execution %s", q.name, e.ID)
	}
	if n > 0 {
		return nil
	}
	stored, err := q.GetExecution(ctx, e.ID)
	if err != nil {
		return err
	}
	return eris.Wrapf(apperr.ErrInvalidState, "%s: execution %s is already %s", q.name, e.ID, stored.Status)
}

func (q queries) GetExecution(ctx context.Context, id string) (*model.CampaignExecution, error) {
	e, err := scanExecution(q.c.queryRow(ctx, `SELECT `+executionColumns+executionFrom+` WHERE e.id = $1`, id))
	if isNoRows(err) {
		return nil, q.notFound("execution", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: get execution %s", q.name, id)
	}
	return e, nil
}

// ListExecutions returns matching executions. A zero Limit is unbounded.
func (q queries) ListExecutions(ctx context.Context, f ExecutionFilter) ([]model.CampaignExecution, error) {
	w := &where{}
	if f.CampaignID != "" {
		w.add("e.campaign_id = $%d", f.CampaignID)
	}
	if f.ClientID != "" {
		w.add("c.client_id = $%d", f.ClientID)
	}
	if f.Status != "" {
		w.add("e.status = $%d", string(f.Status))
	}
	if !f.Since.IsZero() {
		w.add("e.started_at >= $%d", f.Since.UTC())
	}
	if !f.StartedBefore.IsZero() {
		w.add("e.started_at < $%d", f.StartedBefore.UTC())
	}
	query := `SELECT ` + executionColumns + executionFrom + w.String() + ` ORDER BY e.started_at DESC`
	query += w.page(f.Limit, f.Offset, 0)

	rows, err := q.c.query(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list executions", q.name)
	}
	defer rows.Close()

	var out []model.CampaignExecution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: scan execution", q.name)
		}
		out = append(out, *e)
	}
	return out, eris.Wrapf(rows.Err(), "%s: list executions iterate", q.name)
}

// --- Transactional writes ---

// txQueries implements Tx over a transaction-bound conn.
type txQueries struct {
	queries
}

func (q txQueries) InsertLeads(ctx context.Context, leads []model.Lead) error {
	placeholders := make([]string, len(leadColumnList))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	stmt := `INSERT INTO leads (` + leadColumns + `) VALUES (` + strings.Join(placeholders, ", ") + `)`

	for i := range leads {
		args, err := leadRow(&leads[i])
		if err != nil {
			return eris.Wrapf(err, "%s: insert lead", q.name)
		}
		if _, err := q.c.exec(ctx, stmt, args...); err != nil {
			return eris.Wrapf(err, "%s: insert lead %s", q.name, leads[i].Email)
		}
	}
	return nil
}

func (q txQueries) IncrementUsage(ctx context.Context, clientID string, n int, now time.Time) error {
	if n <= 0 {
		return nil
	}
	affected, err := q.c.exec(ctx,
		`UPDATE clients SET api_usage_current = api_usage_current + $1, updated_at = $2
		WHERE id = $3 AND status = $4 AND api_usage_current + $1 <= api_quota_monthly`,
		n, now.UTC(), clientID, string(model.ClientStatusActive),
	)
	if err != nil {
		return eris.Wrapf(err, "%s: increment usage %s", q.name, clientID)
	}
	if affected == 0 {
		return eris.Wrapf(apperr.ErrQuotaExceeded, "%s: client %s cannot take %d more leads", q.name, clientID, n)
	}
	return nil
}

func (q txQueries) RefreshCampaignStats(ctx context.Context, campaignID string, generated int, now time.Time) error {
	n, err := q.c.exec(ctx,
		`UPDATE campaigns SET total_leads_generated = total_leads_generated + $1,
			leads_on_file = (SELECT COUNT(*) FROM leads WHERE campaign_id = $2), updated_at = $3
		WHERE id = $2`,
		generated, campaignID, now.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "%s: refresh campaign stats %s", q.name, campaignID)
	}
	return q.checkRowsAffected(n, "campaign", campaignID)
}
