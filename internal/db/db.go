package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/cwp-provisioner/internal/config"
)

type Database struct {
	Pool   *pgxpool.Pool
	Schema string
}

func New(cfg *config.Config) (*Database, error) {
	ctx := context.Background()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	log.Printf("[db] Connected to PostgreSQL: %s/%s (schema: %s)",
		cfg.Database.Host, cfg.Database.DBName, cfg.Database.Schema)

	return &Database{
		Pool:   pool,
		Schema: cfg.Database.Schema,
	}, nil
}

// Migrate creates the cwp schema when it does not exist yet
func (d *Database) Migrate(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	log.Printf("[db] Schema %s is up to date", d.Schema)
	return nil
}

func (d *Database) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
}

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS cwp`,
	`CREATE TABLE IF NOT EXISTS cwp.module_rows (
		id            BIGSERIAL PRIMARY KEY,
		server_name   TEXT NOT NULL,
		host_name     TEXT NOT NULL,
		api_key       TEXT NOT NULL,
		use_ssl       BOOLEAN NOT NULL DEFAULT FALSE,
		account_limit INTEGER,
		account_count INTEGER NOT NULL DEFAULT 0 CHECK (account_count >= 0),
		name_servers  TEXT[] NOT NULL DEFAULT '{}',
		notes         TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS cwp.services (
		id            TEXT PRIMARY KEY,
		module_row_id BIGINT NOT NULL,
		client_id     TEXT NOT NULL,
		status        TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS services_client_id_idx ON cwp.services (client_id)`,
	`CREATE TABLE IF NOT EXISTS cwp.service_fields (
		id         BIGSERIAL PRIMARY KEY,
		service_id TEXT NOT NULL REFERENCES cwp.services (id) ON DELETE CASCADE,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		encrypted  BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS service_fields_service_id_idx ON cwp.service_fields (service_id)`,
	`CREATE TABLE IF NOT EXISTS cwp.module_logs (
		id            TEXT PRIMARY KEY,
		module_row_id BIGINT NOT NULL,
		channel       TEXT NOT NULL,
		payload       TEXT NOT NULL,
		direction     TEXT NOT NULL,
		success       BOOLEAN NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS module_logs_row_created_idx ON cwp.module_logs (module_row_id, created_at DESC)`,
}
