package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"propstage/internal/domain"
)

const (
	// DefaultSweepInterval is how often in-flight jobs are scanned.
	DefaultSweepInterval = 10 * time.Second
	// DefaultJobTimeout is the age past which a non-terminal job is
	// force-failed.
	DefaultJobTimeout = 5 * time.Minute
)

// Sweeper force-fails jobs that outlived the timeout with no completion
// signal. It never cancels the outbound provider call; a late signal for a
// swept job is discarded by the reconciler's terminal-state guard. Timed-out
// jobs are failed through the reconciler, so they refund like any other
// failure.
type Sweeper struct {
	jobs       domain.JobRepository
	reconciler *Reconciler
	interval   time.Duration
	timeout    time.Duration
	logger     zerolog.Logger
	running    atomic.Bool
	now        func() time.Time
}

// NewSweeper builds a sweeper. Non-positive durations fall back to the
// defaults.
func NewSweeper(jobs domain.JobRepository, reconciler *Reconciler, interval, timeout time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &Sweeper{
		jobs:       jobs,
		reconciler: reconciler,
		interval:   interval,
		timeout:    timeout,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Start runs the sweep loop until ctx is done. Only one sweeper loop may be
// active process-wide; a second Start returns domain.ErrSweeperRunning.
func (s *Sweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return domain.ErrSweeperRunning
	}
	go func() {
		defer s.running.Store(false)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.logger.Info().Dur("interval", s.interval).Dur("timeout", s.timeout).Msg("sweeper: started")
		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("sweeper: stopped")
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Error().Err(err).Msg("sweeper: sweep failed")
				}
			}
		}
	}()
	return nil
}

// Sweep performs one scan, failing every non-terminal job older than the
// timeout. It returns the number of jobs swept.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.timeout)
	stale, err := s.jobs.ListStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, job := range stale {
		sig := domain.CompletionSignal{
			JobID:      job.ID,
			Kind:       job.Kind,
			Error:      fmt.Sprintf("processing timed out after %s", s.timeout),
			ReceivedAt: s.now(),
		}
		if err := s.reconciler.Apply(ctx, sig); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("sweeper: force-fail failed")
			continue
		}
		swept++
		s.logger.Warn().Str("job_id", job.ID).Str("kind", string(job.Kind)).Time("created_at", job.CreatedAt).Msg("sweeper: job timed out")
	}
	return swept, nil
}
