package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/pranit-garg/Dispatch/internal/domain"
	"github.com/pranit-garg/Dispatch/internal/domain/model"
	"github.com/pranit-garg/Dispatch/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	const q = `
INSERT INTO jobs (id, type, policy, privacy_class, requester_id, status, payload, result,
                  worker_pubkey, fail_reason, assigned_at, started_at, created_at, completed_at, archived)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  result = EXCLUDED.result,
  worker_pubkey = EXCLUDED.worker_pubkey,
  fail_reason = EXCLUDED.fail_reason,
  assigned_at = EXCLUDED.assigned_at,
  started_at = EXCLUDED.started_at,
  completed_at = EXCLUDED.completed_at,
  archived = EXCLUDED.archived;`

	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return err
	}
	var result []byte
	if len(job.Result) > 0 {
		result = job.Result
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, job.Type, job.Policy, job.PrivacyClass, job.RequesterID, job.Status,
		payload, result, nullStr(job.WorkerPubkey), nullStr(job.FailReason),
		nullTime(job.AssignedAt), nullTime(job.StartedAt), job.CreatedAt,
		nullTime(job.CompletedAt), job.Archived)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	const q = `
SELECT id, type, policy, privacy_class, requester_id, status, payload, result,
       worker_pubkey, fail_reason, assigned_at, started_at, created_at, completed_at, archived
FROM jobs WHERE id = $1;`

	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) ListTerminalOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Job, error) {
	const q = `
SELECT id, type, policy, privacy_class, requester_id, status, payload, result,
       worker_pubkey, fail_reason, assigned_at, started_at, created_at, completed_at, archived
FROM jobs
WHERE status IN ('completed', 'failed') AND archived = FALSE AND completed_at < $1
ORDER BY completed_at
LIMIT $2;`

	rows, err := pickRows(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *jobRepo) MarkArchived(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE jobs SET archived = TRUE WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, tx, q, id)
	return err
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		j          model.Job
		payload    []byte
		result     []byte
		worker     sql.NullString
		failReason sql.NullString
		assignedAt sql.NullTime
		startedAt  sql.NullTime
		doneAt     sql.NullTime
	)
	err := row.Scan(&j.ID, &j.Type, &j.Policy, &j.PrivacyClass, &j.RequesterID, &j.Status,
		&payload, &result, &worker, &failReason, &assignedAt, &startedAt,
		&j.CreatedAt, &doneAt, &j.Archived)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &j.Payload); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	j.Result = result
	j.WorkerPubkey = worker.String
	j.FailReason = failReason.String
	j.AssignedAt = assignedAt.Time
	j.StartedAt = startedAt.Time
	j.CompletedAt = doneAt.Time
	return &j, nil
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
