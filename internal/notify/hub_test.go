package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"propstage/internal/domain"
)

func TestBroadcastJobEncodesTerminalState(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	completed := time.Now().UTC()
	job := domain.Job{
		ID:            "job-1",
		Kind:          domain.JobKindTransformation,
		Status:        domain.JobStatusCompleted,
		ResultPayload: "https://cdn.example.com/out.png",
		CompletedAt:   &completed,
	}

	hub.BroadcastJob(job)

	select {
	case payload := <-hub.broadcast:
		var event JobEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if event.Type != "job_update" {
			t.Fatalf("type = %q, want job_update", event.Type)
		}
		if event.JobID != "job-1" || event.Status != "completed" {
			t.Fatalf("unexpected event: %+v", event)
		}
		if event.Result != job.ResultPayload {
			t.Fatalf("result = %q", event.Result)
		}
	default:
		t.Fatal("no event queued")
	}
}

func TestBroadcastJobFullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	job := domain.Job{ID: "job-1", Kind: domain.JobKindDescription, Status: domain.JobStatusFailed, ErrorMessage: "boom"}

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(hub.broadcast)+5; i++ {
			hub.BroadcastJob(job)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BroadcastJob blocked on a full buffer")
	}
}
