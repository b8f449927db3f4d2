package memrepo

import (
	"context"
	"sync"

	"propstage/internal/domain"
)

// Mailbox implements domain.MailboxRepository: an append-only list drained
// and cleared in a single step by the completion poller.
type Mailbox struct {
	mu      sync.Mutex
	entries []domain.MailboxEntry
}

// NewMailbox creates an empty Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Append parks a raw completion signal for the next poll.
func (m *Mailbox) Append(ctx context.Context, entry domain.MailboxEntry) error {
	m.mu.Lock()
	m.entries = append(m.entries, entry)
	m.mu.Unlock()
	return nil
}

// Drain returns all parked entries in arrival order and clears the mailbox.
func (m *Mailbox) Drain(ctx context.Context) ([]domain.MailboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.entries
	m.entries = nil
	return out, nil
}
