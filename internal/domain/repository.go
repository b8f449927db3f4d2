package domain

import (
	"context"
	"time"
)

// UserRepository defines access methods for users. The credit mutations are
// atomic: no reader may observe a half-applied balance, and Debit fails
// closed with ErrInsufficientCredits without mutating anything.
type UserRepository interface {
	Upsert(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	DebitCredits(ctx context.Context, userID string, n int) (remaining int, err error)
	AddCredits(ctx context.Context, userID string, n int) (remaining int, err error)
	SetPlan(ctx context.Context, userID string, plan UserPlan, credits int) error
}

// ProjectRepository defines persistence for property projects.
type ProjectRepository interface {
	Create(ctx context.Context, project *Project) error
	GetByID(ctx context.Context, id string) (*Project, error)
	ListByUser(ctx context.Context, userID string) ([]Project, error)
	Delete(ctx context.Context, id string) error
}

// JobRepository defines persistence for jobs. Each kind keeps a bounded
// collection: Create evicts the oldest entry by CreatedAt once the kind is
// at capacity, regardless of that entry's status, and returns the evicted
// job so callers can log the loss. UpdateStatus enforces the forward state
// machine and returns ErrJobTerminal for transitions out of a terminal
// state; CompletedAt is stamped exactly once, on the terminal transition.
type JobRepository interface {
	Create(ctx context.Context, job *Job) (evicted *Job, err error)
	GetByID(ctx context.Context, id string) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, errMsg *string, result *string) error
	ListByKind(ctx context.Context, kind JobKind, userID string) ([]Job, error)
	ListByProject(ctx context.Context, projectID string) ([]Job, error)
	ListAll(ctx context.Context) ([]Job, error)
	ListStale(ctx context.Context, olderThan time.Time) ([]Job, error)
	Delete(ctx context.Context, id string) error
	DeleteByProject(ctx context.Context, projectID string) error
}

// MailboxRepository is the shared, polled completion-delivery channel:
// an append-only list drained (returned and cleared) in one step.
type MailboxRepository interface {
	Append(ctx context.Context, entry MailboxEntry) error
	Drain(ctx context.Context) ([]MailboxEntry, error)
}

// StatsRepository updates daily activity counters.
type StatsRepository interface {
	Increment(ctx context.Context, day time.Time, counters map[string]int) error
	Summary(ctx context.Context, day time.Time) (*DailyStats, error)
}
