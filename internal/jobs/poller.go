package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"propstage/internal/domain"
)

// DefaultPollInterval is how often the shared mailbox is drained.
const DefaultPollInterval = 5 * time.Second

// Poller drains the shared completion mailbox on a fixed interval and
// replays each parked entry through the reconciler. Entries are cleared by
// the drain itself; replay failures are logged, not retried — the sweeper
// eventually fails any job whose signal is lost.
type Poller struct {
	mailbox    domain.MailboxRepository
	reconciler *Reconciler
	interval   time.Duration
	logger     zerolog.Logger
	running    atomic.Bool
}

// NewPoller builds a mailbox poller.
func NewPoller(mailbox domain.MailboxRepository, reconciler *Reconciler, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		mailbox:    mailbox,
		reconciler: reconciler,
		interval:   interval,
		logger:     logger,
	}
}

// Start runs the poll loop until ctx is done. Only one poller loop may be
// active process-wide.
func (p *Poller) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return domain.ErrSweeperRunning
	}
	go func() {
		defer p.running.Store(false)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		p.logger.Info().Dur("interval", p.interval).Msg("mailbox poller: started")
		for {
			select {
			case <-ctx.Done():
				p.logger.Info().Msg("mailbox poller: stopped")
				return
			case <-ticker.C:
				if _, err := p.Poll(ctx); err != nil {
					p.logger.Error().Err(err).Msg("mailbox poller: drain failed")
				}
			}
		}
	}()
	return nil
}

// Poll drains the mailbox once and applies every entry. It returns the
// number of entries replayed.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	entries, err := p.mailbox.Drain(ctx)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if err := p.reconciler.Apply(ctx, entry.Signal()); err != nil {
			p.logger.Error().Err(err).Str("job_id", entry.JobID).Msg("mailbox poller: apply failed")
		}
	}
	return len(entries), nil
}
