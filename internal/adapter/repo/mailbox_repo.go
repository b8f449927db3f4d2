package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"propstage/internal/domain"
)

// MailboxRepositoryPG implements domain.MailboxRepository backed by
// PostgreSQL. Drain deletes-and-returns in one statement so two pollers
// cannot replay the same entry.
type MailboxRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewMailboxRepository creates a new mailbox repository.
func NewMailboxRepository(pool *pgxpool.Pool) *MailboxRepositoryPG {
	return &MailboxRepositoryPG{pool: pool}
}

// Append parks a raw completion signal for the next poll.
func (r *MailboxRepositoryPG) Append(ctx context.Context, entry domain.MailboxEntry) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO mailbox (id, job_id, kind, result, error, received_at)
VALUES ($1, $2, $3, $4, $5, $6);
`, entry.ID, entry.JobID, entry.Kind, entry.Result, entry.Error, entry.ReceivedAt)
	return err
}

// Drain returns all parked entries in arrival order and clears them.
func (r *MailboxRepositoryPG) Drain(ctx context.Context) ([]domain.MailboxEntry, error) {
	rows, err := r.pool.Query(ctx, `
WITH drained AS (
	DELETE FROM mailbox
	RETURNING id, job_id, kind, result, error, received_at
)
SELECT id, job_id, kind, result, error, received_at
FROM drained
ORDER BY received_at;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.MailboxEntry
	for rows.Next() {
		var e domain.MailboxEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.Kind, &e.Result, &e.Error, &e.ReceivedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
