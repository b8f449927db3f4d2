package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"propstage/internal/domain"
)

// Debiter reserves a credit before a job is created.
type Debiter interface {
	Use(ctx context.Context, userID string, n int) (int, error)
	Add(ctx context.Context, userID string, n int) (int, error)
}

// Dispatcher hands a job to the external AI provider.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *domain.Job) error
}

// Stager uploads a large binary input out-of-band and returns the small
// reference the job retains instead of the raw bytes. Remove deletes the
// staged object once no job references it anymore.
type Stager interface {
	StageInput(ctx context.Context, jobID string, data []byte) (string, error)
	Remove(ctx context.Context, key string) error
}

// Service owns the submission side of the job lifecycle: debit, stage,
// create pending, dispatch, mark processing. Failures on the dispatch step
// route through the reconciler so the failed transition, the refund and the
// listener firing happen in the one place that already guards them.
type Service struct {
	jobs       domain.JobRepository
	projects   domain.ProjectRepository
	ledger     Debiter
	dispatcher Dispatcher
	stage      Stager
	reconciler *Reconciler
	registry   *Registry
	stats      domain.StatsRepository
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService wires the submission service. stats may be nil.
func NewService(
	jobsRepo domain.JobRepository,
	projects domain.ProjectRepository,
	ledger Debiter,
	dispatcher Dispatcher,
	stage Stager,
	reconciler *Reconciler,
	registry *Registry,
	stats domain.StatsRepository,
	logger zerolog.Logger,
) *Service {
	return &Service{
		jobs:       jobsRepo,
		projects:   projects,
		ledger:     ledger,
		dispatcher: dispatcher,
		stage:      stage,
		reconciler: reconciler,
		registry:   registry,
		stats:      stats,
		logger:     logger,
		now:        time.Now,
	}
}

// SubmitTransformationRequest carries a virtual staging submission.
type SubmitTransformationRequest struct {
	UserID      string
	ProjectID   *string
	Image       []byte
	Style       string
	Prompt      string
	Annotations json.RawMessage
}

// SubmitDescriptionRequest carries a property description submission.
type SubmitDescriptionRequest struct {
	UserID       string
	ProjectID    *string
	PropertyData map[string]string
	Tone         string
	Language     string
}

// SubmitTransformation debits one credit, stages the source image, creates
// the pending job and dispatches it. The job record never holds the raw
// image, only the staging key.
func (s *Service) SubmitTransformation(ctx context.Context, req SubmitTransformationRequest) (*domain.Job, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("%w: image is required", domain.ErrInvalidInput)
	}
	job := &domain.Job{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		Kind:      domain.JobKindTransformation,
		Status:    domain.JobStatusPending,
		Input: domain.JobInput{
			Transformation: &domain.TransformationInput{
				Style:       req.Style,
				Prompt:      req.Prompt,
				Annotations: req.Annotations,
			},
		},
	}
	if err := job.Input.Validate(job.Kind); err != nil {
		return nil, err
	}
	return s.submit(ctx, job, req.Image)
}

// SubmitDescription debits one credit, creates the pending job and
// dispatches it.
func (s *Service) SubmitDescription(ctx context.Context, req SubmitDescriptionRequest) (*domain.Job, error) {
	job := &domain.Job{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		Kind:      domain.JobKindDescription,
		Status:    domain.JobStatusPending,
		Input: domain.JobInput{
			Description: &domain.DescriptionInput{
				PropertyData: req.PropertyData,
				Tone:         req.Tone,
				Language:     req.Language,
			},
		},
	}
	if err := job.Input.Validate(job.Kind); err != nil {
		return nil, err
	}
	return s.submit(ctx, job, nil)
}

func (s *Service) submit(ctx context.Context, job *domain.Job, image []byte) (*domain.Job, error) {
	if _, err := s.ledger.Use(ctx, job.UserID, 1); err != nil {
		return nil, err
	}

	refund := func(stage string, cause error) {
		if _, err := s.ledger.Add(ctx, job.UserID, 1); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Str("stage", stage).Msg("submit: refund failed")
		}
		s.logger.Warn().Err(cause).Str("job_id", job.ID).Str("stage", stage).Msg("submit: aborted, credit refunded")
	}

	if len(image) > 0 {
		key, err := s.stage.StageInput(ctx, job.ID, image)
		if err != nil {
			refund("stage", err)
			return nil, fmt.Errorf("stage input: %w", err)
		}
		job.InputRef = key
	}

	evicted, err := s.jobs.Create(ctx, job)
	if err != nil {
		refund("create", err)
		return nil, err
	}
	if evicted != nil {
		// Eviction is by pure insertion order; an in-flight job loses its
		// pending callback and any refund it would have earned.
		s.logger.Warn().
			Str("evicted_id", evicted.ID).
			Str("evicted_status", string(evicted.Status)).
			Str("kind", string(evicted.Kind)).
			Msg("submit: ring full, oldest job evicted")
		if s.registry != nil {
			s.registry.Drop(evicted.Kind, evicted.ID)
		}
		s.removeStagedInput(ctx, evicted.InputRef)
	}

	if s.stats != nil {
		counter := domain.StatTransformationsSubmitted
		if job.Kind == domain.JobKindDescription {
			counter = domain.StatDescriptionsSubmitted
		}
		if err := s.stats.Increment(ctx, s.now(), map[string]int{counter: 1}); err != nil {
			s.logger.Warn().Err(err).Msg("submit: stats increment failed")
		}
	}

	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		// Synchronous rejection: the job fails immediately and the credit
		// comes back through the reconciler's failure path.
		sig := domain.CompletionSignal{
			JobID:      job.ID,
			Kind:       job.Kind,
			Error:      fmt.Sprintf("dispatch rejected: %v", err),
			ReceivedAt: s.now(),
		}
		if applyErr := s.reconciler.Apply(ctx, sig); applyErr != nil {
			s.logger.Error().Err(applyErr).Str("job_id", job.ID).Msg("submit: failed to record dispatch rejection")
		}
		failed, getErr := s.jobs.GetByID(ctx, job.ID)
		if getErr != nil {
			return nil, err
		}
		return failed, nil
	}

	if err := s.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusProcessing, nil, nil); err != nil {
		// The job may already be terminal if the callback raced the update.
		if !errors.Is(err, domain.ErrJobTerminal) {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("submit: mark processing failed")
		}
	}

	return s.jobs.GetByID(ctx, job.ID)
}

// Regenerate clones a finished (or stuck) job into a fresh submission with
// a new id and a fresh debit. It never re-dispatches the original job id.
func (s *Service) Regenerate(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	original, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if original.UserID != userID {
		return nil, domain.ErrNotFound
	}

	clone := &domain.Job{
		ID:        uuid.NewString(),
		UserID:    original.UserID,
		ProjectID: original.ProjectID,
		Kind:      original.Kind,
		Status:    domain.JobStatusPending,
		Input:     original.Input,
		InputRef:  original.InputRef,
	}
	return s.submit(ctx, clone, nil)
}

// GetJob returns the job when it belongs to the user.
func (s *Service) GetJob(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

// ListJobs returns the user's jobs of one kind, newest first.
func (s *Service) ListJobs(ctx context.Context, userID string, kind domain.JobKind) ([]domain.Job, error) {
	return s.jobs.ListByKind(ctx, kind, userID)
}

// ListProjectJobs returns the jobs attached to one of the user's projects.
func (s *Service) ListProjectJobs(ctx context.Context, userID, projectID string) ([]domain.Job, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return s.jobs.ListByProject(ctx, projectID)
}

// DeleteJob removes the user's job permanently. Listeners for a still
// in-flight job are dropped without firing.
func (s *Service) DeleteJob(ctx context.Context, userID, jobID string) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.UserID != userID {
		return domain.ErrNotFound
	}
	if err := s.jobs.Delete(ctx, jobID); err != nil {
		return err
	}
	if s.registry != nil {
		s.registry.Drop(job.Kind, job.ID)
	}
	s.removeStagedInput(ctx, job.InputRef)
	return nil
}

// DeleteProject removes the user's project and cascades to its jobs.
func (s *Service) DeleteProject(ctx context.Context, userID, projectID string) error {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	if project.UserID != userID {
		return domain.ErrNotFound
	}
	cascaded, err := s.jobs.ListByProject(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.jobs.DeleteByProject(ctx, projectID); err != nil {
		return err
	}
	for _, job := range cascaded {
		s.removeStagedInput(ctx, job.InputRef)
	}
	return s.projects.Delete(ctx, projectID)
}

// removeStagedInput deletes the staged object behind ref unless another
// surviving job still references it: a regenerated clone shares the
// original's staging key.
func (s *Service) removeStagedInput(ctx context.Context, ref string) {
	if ref == "" || s.stage == nil {
		return
	}
	all, err := s.jobs.ListAll(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("input_ref", ref).Msg("staged input: reference scan failed, keeping object")
		return
	}
	for _, j := range all {
		if j.InputRef == ref {
			return
		}
	}
	if err := s.stage.Remove(ctx, ref); err != nil {
		s.logger.Warn().Err(err).Str("input_ref", ref).Msg("staged input: remove failed")
	}
}
