// Package db wires the Postgres audit-trail pool the Doer writes
// OperationRecords to, kept from the teacher's internal/db.Init /
// EnsureSchema, with the schema generalized from the teacher's
// tasks/task_runs pair to a single operation_requests audit table —
// there is no "tasks" table here because the work unit this system
// schedules is a provider resource, not a row this repo owns.
package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Init(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return pool, nil
}

// EnsureSchema creates the audit table if absent. There is no migration
// framework here; spec.md's scope (§1) excludes durable storage beyond
// the queue and log, so this table is an enrichment: a failed audit
// insert is only logged by the Doer. Every subcommand still connects to
// Postgres and runs EnsureSchema at startup, and exits if either fails.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS operation_requests (
            id BIGSERIAL PRIMARY KEY,
            cycle_start TIMESTAMPTZ NOT NULL,
            service TEXT NOT NULL,
            rsrc_type TEXT NOT NULL,
            rsrc_id TEXT NOT NULL,
            op TEXT NOT NULL,
            outcome TEXT NOT NULL,
            detail TEXT,
            worker_id TEXT NOT NULL,
            observed_at TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_operation_requests_rsrc_id ON operation_requests(rsrc_id);`,
		`CREATE INDEX IF NOT EXISTS idx_operation_requests_cycle_start ON operation_requests(cycle_start);`,
		`CREATE INDEX IF NOT EXISTS idx_operation_requests_outcome ON operation_requests(outcome);`,
	}
	for _, q := range ddl {
		if _, err := pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
