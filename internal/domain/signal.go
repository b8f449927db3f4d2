package domain

import "time"

// CompletionSignal is the out-of-band message reporting a job's final
// result or error. The provider delivers it at-least-once over any of the
// ingress channels (redirect callback, websocket message, polled mailbox);
// consumers must tolerate duplicates and arbitrary ordering.
type CompletionSignal struct {
	JobID      string
	Kind       JobKind
	Result     string
	Error      string
	ReceivedAt time.Time
}

// MailboxEntry is a completion signal parked in the shared mailbox until
// the poller drains it.
type MailboxEntry struct {
	ID         string
	JobID      string
	Kind       JobKind
	Result     string
	Error      string
	ReceivedAt time.Time
}

// Signal converts the parked entry back into a completion signal.
func (e MailboxEntry) Signal() CompletionSignal {
	return CompletionSignal{
		JobID:      e.JobID,
		Kind:       e.Kind,
		Result:     e.Result,
		Error:      e.Error,
		ReceivedAt: e.ReceivedAt,
	}
}
