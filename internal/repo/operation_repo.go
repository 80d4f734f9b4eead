// Package repo persists the Doer's audit trail to Postgres: one row per
// dequeued operation request, successful or not (spec.md §7, "User-
// visible failures" — the log entry plus, here, a queryable history).
// Adapted from the teacher's internal/repo (task_repo.go/taskrun_repo.go),
// generalized from the arbitrary job-runner vocabulary (Task/TaskRun) to
// this system's (resource, operation, cycle) vocabulary.
package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sqlxpert/lights-off-aws/internal/domain"
)

// OperationRepo is the Postgres-backed audit store the Doer writes to
// and the HTTP API's inspection endpoints read from.
type OperationRepo struct {
	db *pgxpool.Pool
}

func NewOperationRepo(db *pgxpool.Pool) *OperationRepo {
	return &OperationRepo{db: db}
}

// Insert writes one OperationRecord row. Implements doer.Recorder.
func (r *OperationRepo) Insert(ctx context.Context, rec domain.OperationRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO operation_requests
			(cycle_start, service, rsrc_type, rsrc_id, op, outcome, detail, worker_id, observed_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.CycleStart, rec.Service, rec.RsrcType, rec.RsrcID, rec.Op, rec.Outcome, rec.Detail, rec.WorkerID, rec.ObservedAt, rec.FinishedAt)
	return err
}

// ListRecent returns the most recent audit rows, newest first, for the
// HTTP API's inspection surface.
func (r *OperationRepo) ListRecent(ctx context.Context, limit int) ([]domain.OperationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, cycle_start, service, rsrc_type, rsrc_id, op, outcome, detail, worker_id, observed_at, finished_at
		FROM operation_requests
		ORDER BY finished_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OperationRecord
	for rows.Next() {
		var rec domain.OperationRecord
		if err := rows.Scan(&rec.ID, &rec.CycleStart, &rec.Service, &rec.RsrcType, &rec.RsrcID, &rec.Op, &rec.Outcome, &rec.Detail, &rec.WorkerID, &rec.ObservedAt, &rec.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListByResource returns the audit history for one physical resource id,
// newest first — the per-resource inspection view an operator reaches
// for after a dead-letter alert.
func (r *OperationRepo) ListByResource(ctx context.Context, rsrcID string, limit int) ([]domain.OperationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, cycle_start, service, rsrc_type, rsrc_id, op, outcome, detail, worker_id, observed_at, finished_at
		FROM operation_requests
		WHERE rsrc_id = $1
		ORDER BY finished_at DESC
		LIMIT $2
	`, rsrcID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OperationRecord
	for rows.Next() {
		var rec domain.OperationRecord
		if err := rows.Scan(&rec.ID, &rec.CycleStart, &rec.Service, &rec.RsrcType, &rec.RsrcID, &rec.Op, &rec.Outcome, &rec.Detail, &rec.WorkerID, &rec.ObservedAt, &rec.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
