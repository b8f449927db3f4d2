package memrepo

import (
	"context"
	"testing"
	"time"

	"propstage/internal/domain"
)

func TestMailboxDrainPreservesArrivalOrder(t *testing.T) {
	ctx := context.Background()
	mb := NewMailbox()

	base := time.Now().UTC()
	for i, id := range []string{"first", "second", "third"} {
		err := mb.Append(ctx, domain.MailboxEntry{
			ID:         id,
			JobID:      "job-" + id,
			Kind:       domain.JobKindDescription,
			ReceivedAt: base.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("Append(%s): %v", id, err)
		}
	}

	entries, err := mb.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("drained %d entries, want 3", len(entries))
	}
	for i, want := range []string{"first", "second", "third"} {
		if entries[i].ID != want {
			t.Errorf("entries[%d].ID = %s, want %s", i, entries[i].ID, want)
		}
	}

	again, err := mb.Drain(ctx)
	if err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second Drain returned %d entries, want 0", len(again))
	}
}
