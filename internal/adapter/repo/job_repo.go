package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"propstage/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository backed by PostgreSQL.
// The per-kind ring bound is enforced inside Create: once a kind holds
// capacity rows, the row with the earliest created_at is deleted and
// returned, whatever its status.
type JobRepositoryPG struct {
	pool     *pgxpool.Pool
	capacity int
}

// NewJobRepository creates a job repository with the given per-kind capacity.
func NewJobRepository(pool *pgxpool.Pool, capacity int) *JobRepositoryPG {
	if capacity <= 0 {
		capacity = 10
	}
	return &JobRepositoryPG{pool: pool, capacity: capacity}
}

const jobColumns = `id, user_id, project_id, kind, status, input_json, input_ref, result_payload, error_message, created_at, completed_at`

// Create validates and inserts a job, evicting the oldest row of the kind
// when the ring is full.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	if err := job.Input.Validate(job.Kind); err != nil {
		return nil, err
	}
	inputJSON, err := json.Marshal(job.Input)
	if err != nil {
		return nil, fmt.Errorf("encode job input: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM jobs WHERE kind = $1;`, job.Kind).Scan(&count); err != nil {
		return nil, err
	}

	var evicted *domain.Job
	if count >= r.capacity {
		row := tx.QueryRow(ctx, `
DELETE FROM jobs
WHERE id = (
    SELECT id FROM jobs
    WHERE kind = $1
    ORDER BY created_at ASC
    LIMIT 1
)
RETURNING `+jobColumns+`;
`, job.Kind)
		old, scanErr := scanJob(row)
		if scanErr != nil && !errors.Is(scanErr, domain.ErrNotFound) {
			return nil, scanErr
		}
		evicted = old
	}

	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO jobs (id, user_id, project_id, kind, status, input_json, input_ref, result_payload, error_message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`,
		job.ID,
		job.UserID,
		job.ProjectID,
		job.Kind,
		job.Status,
		inputJSON,
		job.InputRef,
		job.ResultPayload,
		job.ErrorMessage,
		job.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return evicted, nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, jobID)
	return scanJob(row)
}

// UpdateStatus applies a state-machine transition. The WHERE clause guards
// against updates out of a terminal state so a racing duplicate signal or
// sweeper tick cannot overwrite the first terminal transition.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string, result *string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE jobs
SET status = $2,
    error_message = CASE WHEN $2 = 'failed' THEN COALESCE($3, error_message) ELSE '' END,
    result_payload = CASE WHEN $2 = 'completed' THEN COALESCE($4, result_payload) ELSE '' END,
    completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN COALESCE(completed_at, NOW()) ELSE completed_at END
WHERE id = $1
  AND status NOT IN ('completed', 'failed');
`, jobID, status, errMsg, result)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a terminal one.
		if _, getErr := r.GetByID(ctx, jobID); getErr != nil {
			return getErr
		}
		return domain.ErrJobTerminal
	}
	return nil
}

// ListByKind returns the user's jobs of one kind, newest first.
func (r *JobRepositoryPG) ListByKind(ctx context.Context, kind domain.JobKind, userID string) ([]domain.Job, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+jobColumns+` FROM jobs
WHERE kind = $1 AND user_id = $2
ORDER BY created_at DESC;
`, kind, userID)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// ListByProject returns all jobs attached to the project, newest first.
func (r *JobRepositoryPG) ListByProject(ctx context.Context, projectID string) ([]domain.Job, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+jobColumns+` FROM jobs
WHERE project_id = $1
ORDER BY created_at DESC;
`, projectID)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// ListAll returns every retained job, newest first.
func (r *JobRepositoryPG) ListAll(ctx context.Context) ([]domain.Job, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC;`)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// ListStale returns non-terminal jobs created before olderThan.
func (r *JobRepositoryPG) ListStale(ctx context.Context, olderThan time.Time) ([]domain.Job, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+jobColumns+` FROM jobs
WHERE status NOT IN ('completed', 'failed')
  AND created_at < $1
ORDER BY created_at ASC;
`, olderThan)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// Delete removes the job permanently.
func (r *JobRepositoryPG) Delete(ctx context.Context, jobID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1;`, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteByProject removes every job attached to the project.
func (r *JobRepositoryPG) DeleteByProject(ctx context.Context, projectID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM jobs WHERE project_id = $1;`, projectID)
	return err
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var inputJSON []byte
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.ProjectID,
		&job.Kind,
		&job.Status,
		&inputJSON,
		&job.InputRef,
		&job.ResultPayload,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(inputJSON) > 0 {
		if err := json.Unmarshal(inputJSON, &job.Input); err != nil {
			return nil, fmt.Errorf("decode job input: %w", err)
		}
	}
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}
