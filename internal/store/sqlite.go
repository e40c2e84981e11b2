package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	queries
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. Foreign keys are enforced on every connection and times are written
// in a sortable format.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection: writes and transactions serialize.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{
		queries: queries{c: sqlConn{q: db}, name: "sqlite"},
		db:      db,
	}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS clients (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	email              TEXT NOT NULL UNIQUE,
	company            TEXT NOT NULL DEFAULT '',
	plan               TEXT NOT NULL DEFAULT 'starter',
	status             TEXT NOT NULL DEFAULT 'active',
	api_quota_monthly  INTEGER NOT NULL DEFAULT 1000,
	api_usage_current  INTEGER NOT NULL DEFAULT 0 CHECK (api_usage_current >= 0),
	api_usage_reset_at DATETIME,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS campaigns (
	id                    TEXT PRIMARY KEY,
	client_id             TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	name                  TEXT NOT NULL,
	description           TEXT NOT NULL DEFAULT '',
	status                TEXT NOT NULL DEFAULT 'active',
	criteria              TEXT NOT NULL DEFAULT '{}',
	frequency             TEXT NOT NULL DEFAULT 'daily',
	frequency_value       INTEGER NOT NULL DEFAULT 1,
	frequency_unit        TEXT NOT NULL DEFAULT 'day',
	preferred_time        TEXT NOT NULL DEFAULT '',
	timezone              TEXT NOT NULL DEFAULT 'Australia/Sydney',
	max_leads_per_run     INTEGER NOT NULL DEFAULT 50 CHECK (max_leads_per_run > 0),
	max_leads_total       INTEGER NOT NULL DEFAULT 0,
	total_leads_generated INTEGER NOT NULL DEFAULT 0,
	leads_on_file         INTEGER NOT NULL DEFAULT 0,
	last_run_at           DATETIME,
	next_run_at           DATETIME,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_campaigns_client ON campaigns(client_id);
CREATE INDEX IF NOT EXISTS idx_campaigns_due ON campaigns(status, next_run_at);

CREATE TABLE IF NOT EXISTS leads (
	id                TEXT PRIMARY KEY,
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
	email_verified    BOOLEAN NOT NULL DEFAULT 0,
	verification_data TEXT,
	status            TEXT NOT NULL DEFAULT 'new',
	source            TEXT NOT NULL DEFAULT '',
	notes             TEXT NOT NULL DEFAULT '',
	metadata          TEXT NOT NULL DEFAULT '{}',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	contacted_at      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_leads_client_email ON leads(client_id, email);
CREATE INDEX IF NOT EXISTS idx_leads_client_score ON leads(client_id, score DESC, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_campaign ON leads(campaign_id);

CREATE TABLE IF NOT EXISTS campaign_executions (
	id               TEXT PRIMARY KEY,
	campaign_id      TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
	status           TEXT NOT NULL DEFAULT 'running',
	leads_generated  INTEGER NOT NULL DEFAULT 0,
	leads_processed  INTEGER NOT NULL DEFAULT 0,
	started_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at     DATETIME,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	result_summary   TEXT,
	error_message    TEXT NOT NULL DEFAULT '',
	apollo_calls     INTEGER NOT NULL DEFAULT 0,
	hunter_calls     INTEGER NOT NULL DEFAULT 0,
	linkedin_calls   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_executions_campaign ON campaign_executions(campaign_id, started_at DESC);
CREATE INDEX IF NOT EXISTS idx_executions_status ON campaign_executions(status, started_at);
`

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a database/sql transaction.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(ctx, txQueries{queries{c: sqlConn{q: tx}, name: "sqlite"}}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}
