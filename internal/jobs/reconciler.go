package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"propstage/internal/domain"
)

// messageNoResult is recorded when a completion signal violates the
// protocol by carrying neither a result nor an error.
const messageNoResult = "no result received"

// Refunder restores a debited credit after a failure.
type Refunder interface {
	Add(ctx context.Context, userID string, n int) (int, error)
}

// Broadcaster pushes a terminal job state to any connected UI clients.
type Broadcaster interface {
	BroadcastJob(job domain.Job)
}

// Reconciler applies out-of-band completion signals to the job store. All
// three delivery channels (redirect callback, websocket message, polled
// mailbox) funnel into Apply, which is idempotent: the job's terminal state
// is the deduplication guard, so duplicate and out-of-order signals are
// discarded without side effects.
type Reconciler struct {
	jobs        domain.JobRepository
	refunder    Refunder
	registry    *Registry
	broadcaster Broadcaster
	stats       domain.StatsRepository
	logger      zerolog.Logger
	now         func() time.Time
}

// NewReconciler wires the reconciler. broadcaster and stats may be nil.
func NewReconciler(jobs domain.JobRepository, refunder Refunder, registry *Registry, broadcaster Broadcaster, stats domain.StatsRepository, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		jobs:        jobs,
		refunder:    refunder,
		registry:    registry,
		broadcaster: broadcaster,
		stats:       stats,
		logger:      logger,
		now:         time.Now,
	}
}

// Apply resolves the signal against the job store. Signals for unknown
// (possibly evicted) jobs and for jobs already terminal are discarded.
// An error signal fails the job and refunds the submission credit; a result
// signal completes it; a signal with neither fails it with a generic
// message and refunds, matching the explicit-error path.
func (r *Reconciler) Apply(ctx context.Context, sig domain.CompletionSignal) error {
	job, err := r.jobs.GetByID(ctx, sig.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Evicted or never existed. The result is silently lost.
			r.logger.Warn().Str("job_id", sig.JobID).Str("kind", string(sig.Kind)).Msg("reconcile: signal for unknown job discarded")
			return nil
		}
		return err
	}
	if sig.Kind != "" && sig.Kind != job.Kind {
		r.logger.Warn().Str("job_id", sig.JobID).Str("signal_kind", string(sig.Kind)).Str("job_kind", string(job.Kind)).Msg("reconcile: kind mismatch, signal discarded")
		return nil
	}
	if job.Terminal() {
		r.logger.Debug().Str("job_id", job.ID).Str("status", string(job.Status)).Msg("reconcile: duplicate signal discarded")
		return nil
	}

	status := domain.JobStatusCompleted
	var errMsg, result *string
	switch {
	case sig.Error != "":
		status = domain.JobStatusFailed
		errMsg = &sig.Error
	case sig.Result != "":
		result = &sig.Result
	default:
		status = domain.JobStatusFailed
		msg := messageNoResult
		errMsg = &msg
	}

	if err := r.jobs.UpdateStatus(ctx, job.ID, status, errMsg, result); err != nil {
		if errors.Is(err, domain.ErrJobTerminal) {
			// Lost the race against another channel or the sweeper.
			r.logger.Debug().Str("job_id", job.ID).Msg("reconcile: job went terminal concurrently")
			return nil
		}
		return err
	}

	counters := map[string]int{}
	if status == domain.JobStatusFailed {
		counters[domain.StatJobsFailed] = 1
		if r.refunder != nil {
			if _, refundErr := r.refunder.Add(ctx, job.UserID, 1); refundErr != nil {
				r.logger.Error().Err(refundErr).Str("job_id", job.ID).Str("user_id", job.UserID).Msg("reconcile: refund failed")
			} else {
				counters[domain.StatCreditsRefunded] = 1
			}
		}
	} else {
		counters[domain.StatJobsCompleted] = 1
	}
	if r.stats != nil {
		if statsErr := r.stats.Increment(ctx, r.now(), counters); statsErr != nil {
			r.logger.Warn().Err(statsErr).Msg("reconcile: stats increment failed")
		}
	}

	final, err := r.jobs.GetByID(ctx, job.ID)
	if err != nil {
		// Fall back to the pre-update snapshot with the fields we set.
		final = job
		final.Status = status
		if errMsg != nil {
			final.ErrorMessage = *errMsg
		}
		if result != nil {
			final.ResultPayload = *result
		}
	}

	if r.registry != nil {
		r.registry.Notify(*final)
	}
	if r.broadcaster != nil {
		r.broadcaster.BroadcastJob(*final)
	}

	r.logger.Info().
		Str("job_id", final.ID).
		Str("kind", string(final.Kind)).
		Str("status", string(final.Status)).
		Msg("reconcile: completion applied")
	return nil
}
