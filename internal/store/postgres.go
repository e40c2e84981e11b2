package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/db"
	"github.com/sells-group/leadgen/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	queries
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool, pool.Close), nil
}

func newPostgresStore(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{
		queries: queries{c: pgxConn{q: pool}, name: "postgres"},
		pool:    pool,
		closeFn: closeFn,
	}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS clients (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name               TEXT NOT NULL,
	email              TEXT NOT NULL UNIQUE,
	company            TEXT NOT NULL DEFAULT '',
	plan               TEXT NOT NULL DEFAULT 'starter',
	status             TEXT NOT NULL DEFAULT 'active',
	api_quota_monthly  INTEGER NOT NULL DEFAULT 1000,
	api_usage_current  INTEGER NOT NULL DEFAULT 0 CHECK (api_usage_current >= 0),
	api_usage_reset_at TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS campaigns (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	client_id             TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	name                  TEXT NOT NULL,
	description           TEXT NOT NULL DEFAULT '',
	status                TEXT NOT NULL DEFAULT 'active',
	criteria              JSONB NOT NULL DEFAULT '{}',
	frequency             TEXT NOT NULL DEFAULT 'daily',
	frequency_value       INTEGER NOT NULL DEFAULT 1,
	frequency_unit        TEXT NOT NULL DEFAULT 'day',
	preferred_time        TEXT NOT NULL DEFAULT '',
	timezone              TEXT NOT NULL DEFAULT 'Australia/Sydney',
	max_leads_per_run     INTEGER NOT NULL DEFAULT 50 CHECK (max_leads_per_run > 0),
	max_leads_total       INTEGER NOT NULL DEFAULT 0,
	total_leads_generated INTEGER NOT NULL DEFAULT 0,
	leads_on_file         INTEGER NOT NULL DEFAULT 0,
	last_run_at           TIMESTAMPTZ,
	next_run_at           TIMESTAMPTZ,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_campaigns_client ON campaigns(client_id);
CREATE INDEX IF NOT EXISTS idx_campaigns_due ON campaigns(status, next_run_at);

CREATE TABLE IF NOT EXISTS leads (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	client_id         TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	campaign_id       TEXT REFERENCES campaigns(id) ON DELETE CASCADE,
	name              TEXT NOT NULL DEFAULT '',
	email             TEXT NOT NULL,
	phone             TEXT NOT NULL DEFAULT '',
	company           TEXT NOT NULL DEFAULT '',
	company_size      INTEGER NOT NULL DEFAULT 0,
	title             TEXT NOT NULL DEFAULT '',
	industry          TEXT NOT NULL DEFAULT '',
	location          TEXT NOT NULL DEFAULT '',
	linkedin_url      TEXT NOT NULL DEFAULT '',
	score             INTEGER NOT NULL DEFAULT 0 CHECK (score BETWEEN 0 AND 100),
	email_verified    BOOLEAN NOT NULL DEFAULT false,
	verification_data JSONB,
	status            TEXT NOT NULL DEFAULT 'new',
	source            TEXT NOT NULL DEFAULT '',
	notes             TEXT NOT NULL DEFAULT '',
	metadata          JSONB NOT NULL DEFAULT '{}',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	contacted_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_leads_client_email ON leads(client_id, email);
CREATE INDEX IF NOT EXISTS idx_leads_client_score ON leads(client_id, score DESC, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_campaign ON leads(campaign_id);

CREATE TABLE IF NOT EXISTS campaign_executions (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	campaign_id      TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
	status           TEXT NOT NULL DEFAULT 'running',
	leads_generated  INTEGER NOT NULL DEFAULT 0,
	leads_processed  INTEGER NOT NULL DEFAULT 0,
	started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at     TIMESTAMPTZ,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	result_summary   JSONB,
	error_message    TEXT NOT NULL DEFAULT '',
	apollo_calls     INTEGER NOT NULL DEFAULT 0,
	hunter_calls     INTEGER NOT NULL DEFAULT 0,
	linkedin_calls   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_executions_campaign ON campaign_executions(campaign_id, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_executions_status ON campaign_executions(status, started_at);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// WithTx runs fn inside a pgx transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, &pgTx{
		txQueries: txQueries{queries{c: pgxConn{q: tx}, name: "postgres"}},
		tx:        tx,
	}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

// pgTx bulk-loads leads with COPY instead of row-by-row inserts.
type pgTx struct {
	txQueries
	tx pgx.Tx
}

func (t *pgTx) InsertLeads(ctx context.Context, leads []model.Lead) error {
	rows := make([][]any, 0, len(leads))
	for i := range leads {
		row, err := leadRow(&leads[i])
		if err != nil {
			return eris.Wrap(err, "postgres: insert leads")
		}
		rows = append(rows, row)
	}
	_, err := db.CopyFrom(ctx, t.tx, "leads", leadColumnList, rows)
	return eris.Wrap(err, "postgres: insert leads")
}
