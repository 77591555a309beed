package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jackc/pgx/v5/pgconn"
)

// execer is satisfied by *pgxpool.Pool.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS keitaro_profiles (
		id               BIGSERIAL PRIMARY KEY,
		secret           TEXT NOT NULL UNIQUE,
		enabled          BOOLEAN NOT NULL DEFAULT TRUE,
		default_chat_id  BIGINT NOT NULL,
		default_topic_id BIGINT,
		rate_limit_rps   INTEGER NOT NULL DEFAULT 27 CHECK (rate_limit_rps >= 1),
		dedup_ttl_sec    INTEGER NOT NULL DEFAULT 3600 CHECK (dedup_ttl_sec >= 0),
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS keitaro_routes (
		id              BIGSERIAL PRIMARY KEY,
		profile_id      BIGINT NOT NULL REFERENCES keitaro_profiles (id) ON DELETE CASCADE,
		match_by        TEXT NOT NULL CHECK (match_by IN ('campaign_id', 'source', 'any')),
		match_value     TEXT NOT NULL DEFAULT '',
		is_regex        BOOLEAN NOT NULL DEFAULT FALSE,
		target_chat_id  BIGINT NOT NULL,
		target_topic_id BIGINT,
		status_filter   TEXT[],
		geo_filter      TEXT[],
		priority        INTEGER NOT NULL DEFAULT 100
	)`,
	`CREATE INDEX IF NOT EXISTS idx_keitaro_routes_profile_priority
		ON keitaro_routes (profile_id, priority, id)`,
	`CREATE TABLE IF NOT EXISTS keitaro_events (
		id               BIGSERIAL PRIMARY KEY,
		profile_id       BIGINT NOT NULL,
		transaction_id   TEXT NOT NULL,
		status           TEXT,
		campaign_id      TEXT,
		source           TEXT,
		country          TEXT,
		revenue          TEXT,
		processed        BOOLEAN NOT NULL DEFAULT FALSE,
		sent_to_chat_id  BIGINT,
		sent_to_topic_id BIGINT,
		error            TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_keitaro_events_dedup
		ON keitaro_events (profile_id, transaction_id, created_at)`,
	// Profiles may live in PROFILES_FILE, so audit rows cannot reference the table.
	`ALTER TABLE keitaro_events DROP CONSTRAINT IF EXISTS keitaro_events_profile_id_fkey`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS keitaro_profiles (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		secret           TEXT NOT NULL UNIQUE,
		enabled          INTEGER NOT NULL DEFAULT 1,
		default_chat_id  INTEGER NOT NULL,
		default_topic_id INTEGER,
		rate_limit_rps   INTEGER NOT NULL DEFAULT 27 CHECK (rate_limit_rps >= 1),
		dedup_ttl_sec    INTEGER NOT NULL DEFAULT 3600 CHECK (dedup_ttl_sec >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS keitaro_routes (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		profile_id      INTEGER NOT NULL REFERENCES keitaro_profiles (id) ON DELETE CASCADE,
		match_by        TEXT NOT NULL,
		match_value     TEXT NOT NULL DEFAULT '',
		is_regex        INTEGER NOT NULL DEFAULT 0,
		target_chat_id  INTEGER NOT NULL,
		target_topic_id INTEGER,
		status_filter   TEXT,
		geo_filter      TEXT,
		priority        INTEGER NOT NULL DEFAULT 100
	)`,
	`CREATE INDEX IF NOT EXISTS idx_keitaro_routes_profile_priority
		ON keitaro_routes (profile_id, priority, id)`,
	`CREATE TABLE IF NOT EXISTS keitaro_events (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		profile_id       INTEGER NOT NULL,
		transaction_id   TEXT NOT NULL,
		status           TEXT,
		campaign_id      TEXT,
		source           TEXT,
		country          TEXT,
		revenue          TEXT,
		processed        INTEGER NOT NULL DEFAULT 0,
		sent_to_chat_id  INTEGER,
		sent_to_topic_id INTEGER,
		error            TEXT,
		created_at       INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_keitaro_events_dedup
		ON keitaro_events (profile_id, transaction_id, created_at)`,
}

// MigratePostgres ensures the relational schema exists.
func MigratePostgres(ctx context.Context, db execer) error {
	for _, stmt := range postgresSchema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply postgres migrations: %w", err)
		}
	}
	return nil
}

// MigrateSQLite ensures the embedded schema exists.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply sqlite migrations: %w", err)
		}
	}
	return nil
}

// MigrateClickHouse ensures the analytics table exists.
func MigrateClickHouse(ctx context.Context, conn clickhouse.Conn) error {
	err := conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS postback_conversions
(
	event_id        Int64,
	profile_id      Int64,
	transaction_id  String,
	status          LowCardinality(String),
	campaign_id     String,
	source          String,
	country         LowCardinality(String),
	revenue         Decimal(18, 4),
	processed       Bool,
	error           String,
	created_at      DateTime64(3, 'UTC'),
	ingested_at     DateTime DEFAULT now()
)
ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (profile_id, created_at, transaction_id, event_id)
`)
	if err != nil {
		return fmt.Errorf("apply clickhouse migrations: %w", err)
	}
	return nil
}
