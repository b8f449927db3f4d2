package memrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"propstage/internal/domain"
)

// DefaultJobCapacity bounds the per-kind job collection.
const DefaultJobCapacity = 10

// JobStore implements domain.JobRepository in process memory. Each kind
// keeps a bounded ring: inserting past capacity evicts the entry with the
// earliest CreatedAt, whatever its status.
type JobStore struct {
	mu       sync.RWMutex
	capacity int
	jobs     map[string]*domain.Job
	order    map[domain.JobKind][]string // ids in insertion order
	now      func() time.Time
}

// NewJobStore creates a JobStore with the given per-kind capacity.
// Non-positive capacities fall back to DefaultJobCapacity.
func NewJobStore(capacity int) *JobStore {
	if capacity <= 0 {
		capacity = DefaultJobCapacity
	}
	return &JobStore{
		capacity: capacity,
		jobs:     make(map[string]*domain.Job),
		order:    make(map[domain.JobKind][]string),
		now:      time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *JobStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Create validates and inserts the job, evicting the oldest entry of the
// same kind when the ring is full. The evicted job, if any, is returned.
func (s *JobStore) Create(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	if err := job.Input.Validate(job.Kind); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted *domain.Job
	ids := s.order[job.Kind]
	if len(ids) >= s.capacity {
		oldest := ids[0]
		ids = ids[1:]
		if old, ok := s.jobs[oldest]; ok {
			cp := *old
			evicted = &cp
			delete(s.jobs, oldest)
		}
	}

	stored := *job
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	s.jobs[stored.ID] = &stored
	s.order[job.Kind] = append(ids, stored.ID)

	*job = stored
	return evicted, nil
}

// GetByID returns a copy of the job or domain.ErrNotFound.
func (s *JobStore) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

// UpdateStatus applies a state-machine transition. Terminal jobs reject any
// further update with domain.ErrJobTerminal. On the terminal transition the
// result/error fields are made mutually exclusive and CompletedAt is
// stamped once.
func (s *JobStore) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string, result *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Terminal() {
		return domain.ErrJobTerminal
	}
	if !job.Status.CanTransitionTo(status) {
		return fmt.Errorf("job %s: illegal transition %s -> %s", jobID, job.Status, status)
	}

	job.Status = status
	switch status {
	case domain.JobStatusCompleted:
		if result != nil {
			job.ResultPayload = *result
		}
		job.ErrorMessage = ""
	case domain.JobStatusFailed:
		if errMsg != nil {
			job.ErrorMessage = *errMsg
		}
		job.ResultPayload = ""
	}
	if status.Terminal() && job.CompletedAt == nil {
		at := s.now()
		job.CompletedAt = &at
	}
	return nil
}

// ListByKind returns the user's jobs of one kind, newest first.
func (s *JobStore) ListByKind(ctx context.Context, kind domain.JobKind, userID string) ([]domain.Job, error) {
	return s.list(func(j *domain.Job) bool {
		return j.Kind == kind && j.UserID == userID
	}), nil
}

// ListByProject returns all jobs attached to the project, newest first.
func (s *JobStore) ListByProject(ctx context.Context, projectID string) ([]domain.Job, error) {
	return s.list(func(j *domain.Job) bool {
		return j.ProjectID != nil && *j.ProjectID == projectID
	}), nil
}

// ListAll returns every retained job, newest first.
func (s *JobStore) ListAll(ctx context.Context) ([]domain.Job, error) {
	return s.list(func(*domain.Job) bool { return true }), nil
}

// ListStale returns non-terminal jobs created before olderThan.
func (s *JobStore) ListStale(ctx context.Context, olderThan time.Time) ([]domain.Job, error) {
	return s.list(func(j *domain.Job) bool {
		return !j.Terminal() && j.CreatedAt.Before(olderThan)
	}), nil
}

// Delete removes the job permanently.
func (s *JobStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.jobs, id)
	s.dropFromOrder(job.Kind, id)
	return nil
}

// DeleteByProject removes every job attached to the project.
func (s *JobStore) DeleteByProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if job.ProjectID != nil && *job.ProjectID == projectID {
			delete(s.jobs, id)
			s.dropFromOrder(job.Kind, id)
		}
	}
	return nil
}

func (s *JobStore) dropFromOrder(kind domain.JobKind, id string) {
	ids := s.order[kind]
	for i, candidate := range ids {
		if candidate == id {
			s.order[kind] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

func (s *JobStore) list(keep func(*domain.Job) bool) []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if keep(job) {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}
