package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"propstage/internal/adapter/memrepo"
	"propstage/internal/domain"
	"propstage/internal/ledger"
)

type testHarness struct {
	jobs       *memrepo.JobStore
	users      *memrepo.UserStore
	ledger     *ledger.Ledger
	registry   *Registry
	reconciler *Reconciler
}

func newHarness(t *testing.T, credits int) *testHarness {
	t.Helper()
	users := memrepo.NewUserStore()
	if _, err := users.Upsert(context.Background(), &domain.User{
		ID:      "user-1",
		Plan:    domain.UserPlanFree,
		Credits: credits,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	jobsStore := memrepo.NewJobStore(10)
	led := ledger.New(users, zerolog.Nop())
	registry := NewRegistry()
	rec := NewReconciler(jobsStore, led, registry, nil, memrepo.NewStatsStore(), zerolog.Nop())
	return &testHarness{jobs: jobsStore, users: users, ledger: led, registry: registry, reconciler: rec}
}

func (h *testHarness) createPendingJob(t *testing.T, id string, kind domain.JobKind) {
	t.Helper()
	job := &domain.Job{
		ID:     id,
		UserID: "user-1",
		Kind:   kind,
		Status: domain.JobStatusPending,
	}
	switch kind {
	case domain.JobKindTransformation:
		job.Input = domain.JobInput{Transformation: &domain.TransformationInput{Style: "modern"}}
	case domain.JobKindDescription:
		job.Input = domain.JobInput{Description: &domain.DescriptionInput{
			PropertyData: map[string]string{"propertyType": "Piso"},
			Tone:         "professional",
			Language:     "es",
		}}
	}
	if _, err := h.jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
}

func (h *testHarness) createProcessingJob(t *testing.T, id string, kind domain.JobKind) {
	t.Helper()
	h.createPendingJob(t, id, kind)
	if err := h.jobs.UpdateStatus(context.Background(), id, domain.JobStatusProcessing, nil, nil); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
}

func (h *testHarness) balance(t *testing.T) int {
	t.Helper()
	user, err := h.users.GetByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	return user.Credits
}

func TestReconcilerCompletesJobOnResult(t *testing.T) {
	h := newHarness(t, 4)
	h.createProcessingJob(t, "job-1", domain.JobKindTransformation)

	var fired []domain.Job
	h.registry.OnComplete(domain.JobKindTransformation, "job-1", func(j domain.Job) {
		fired = append(fired, j)
	})

	sig := domain.CompletionSignal{
		JobID:  "job-1",
		Kind:   domain.JobKindTransformation,
		Result: "https://cdn.example.com/staged/job-1.png",
	}
	if err := h.reconciler.Apply(context.Background(), sig); err != nil {
		t.Fatalf("apply: %v", err)
	}

	job, _ := h.jobs.GetByID(context.Background(), "job-1")
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status: %s", job.Status)
	}
	if job.ResultPayload != sig.Result || job.ErrorMessage != "" {
		t.Fatalf("payload fields wrong: %+v", job)
	}
	if job.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}
	if len(fired) != 1 || fired[0].ID != "job-1" {
		t.Fatalf("listener fired %d times", len(fired))
	}
	if got := h.balance(t); got != 4 {
		t.Fatalf("no refund expected on success, balance %d", got)
	}
}

func TestReconcilerCompletesJobStillPending(t *testing.T) {
	// A fast provider can deliver the completion before the submitter's
	// processing update lands. The signal must win, not bounce.
	h := newHarness(t, 4)
	h.createPendingJob(t, "job-1", domain.JobKindTransformation)

	var fired int
	h.registry.OnComplete(domain.JobKindTransformation, "job-1", func(domain.Job) { fired++ })

	sig := domain.CompletionSignal{
		JobID:  "job-1",
		Kind:   domain.JobKindTransformation,
		Result: "https://cdn.example.com/staged/job-1.png",
	}
	if err := h.reconciler.Apply(context.Background(), sig); err != nil {
		t.Fatalf("apply on pending job: %v", err)
	}

	job, _ := h.jobs.GetByID(context.Background(), "job-1")
	if job.Status != domain.JobStatusCompleted || job.ResultPayload != sig.Result {
		t.Fatalf("job after early signal: %+v", job)
	}
	if fired != 1 {
		t.Fatalf("listener fired %d times", fired)
	}
	if got := h.balance(t); got != 4 {
		t.Fatalf("no refund expected on success, balance %d", got)
	}

	// The late processing update loses quietly at the store boundary.
	err := h.jobs.UpdateStatus(context.Background(), "job-1", domain.JobStatusProcessing, nil, nil)
	if !errors.Is(err, domain.ErrJobTerminal) {
		t.Fatalf("late processing update: %v", err)
	}
	job, _ = h.jobs.GetByID(context.Background(), "job-1")
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status changed by late update: %s", job.Status)
	}
}

func TestReconcilerFailsJobAndRefundsOnError(t *testing.T) {
	h := newHarness(t, 4)
	h.createProcessingJob(t, "job-1", domain.JobKindDescription)

	sig := domain.CompletionSignal{JobID: "job-1", Kind: domain.JobKindDescription, Error: "model unavailable"}
	if err := h.reconciler.Apply(context.Background(), sig); err != nil {
		t.Fatalf("apply: %v", err)
	}

	job, _ := h.jobs.GetByID(context.Background(), "job-1")
	if job.Status != domain.JobStatusFailed || job.ErrorMessage != "model unavailable" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.ResultPayload != "" {
		t.Fatalf("failed job carries result: %q", job.ResultPayload)
	}
	if got := h.balance(t); got != 5 {
		t.Fatalf("expected refund to 5, got %d", got)
	}
}

func TestReconcilerProtocolViolationFailsWithGenericMessage(t *testing.T) {
	h := newHarness(t, 4)
	h.createProcessingJob(t, "job-1", domain.JobKindTransformation)

	sig := domain.CompletionSignal{JobID: "job-1", Kind: domain.JobKindTransformation}
	if err := h.reconciler.Apply(context.Background(), sig); err != nil {
		t.Fatalf("apply: %v", err)
	}

	job, _ := h.jobs.GetByID(context.Background(), "job-1")
	if job.Status != domain.JobStatusFailed || job.ErrorMessage != messageNoResult {
		t.Fatalf("unexpected job: %+v", job)
	}
	if got := h.balance(t); got != 5 {
		t.Fatalf("protocol violation must refund like a provider error, balance %d", got)
	}
}

func TestReconcilerDuplicateSignalIsNoOp(t *testing.T) {
	h := newHarness(t, 4)
	h.createProcessingJob(t, "job-1", domain.JobKindTransformation)

	fired := 0
	h.registry.OnComplete(domain.JobKindTransformation, "job-1", func(domain.Job) { fired++ })

	ctx := context.Background()
	first := domain.CompletionSignal{JobID: "job-1", Kind: domain.JobKindTransformation, Result: "https://cdn.example.com/a.png"}
	if err := h.reconciler.Apply(ctx, first); err != nil {
		t.Fatalf("apply first: %v", err)
	}

	// Same signal again via another channel, plus a contradictory failure.
	if err := h.reconciler.Apply(ctx, first); err != nil {
		t.Fatalf("apply duplicate: %v", err)
	}
	late := domain.CompletionSignal{JobID: "job-1", Kind: domain.JobKindTransformation, Error: "late failure"}
	if err := h.reconciler.Apply(ctx, late); err != nil {
		t.Fatalf("apply late failure: %v", err)
	}

	job, _ := h.jobs.GetByID(ctx, "job-1")
	if job.Status != domain.JobStatusCompleted || job.ResultPayload != first.Result {
		t.Fatalf("terminal state overwritten: %+v", job)
	}
	if fired != 1 {
		t.Fatalf("listener fired %d times, want 1", fired)
	}
	if got := h.balance(t); got != 4 {
		t.Fatalf("duplicate must not refund, balance %d", got)
	}
}

func TestReconcilerUnknownJobIsDiscarded(t *testing.T) {
	h := newHarness(t, 4)
	sig := domain.CompletionSignal{JobID: "evicted", Kind: domain.JobKindTransformation, Result: "url"}
	if err := h.reconciler.Apply(context.Background(), sig); err != nil {
		t.Fatalf("apply for unknown job must not error: %v", err)
	}
	if got := h.balance(t); got != 4 {
		t.Fatalf("unknown job must not touch credits, balance %d", got)
	}
}

func TestReconcilerKindMismatchIsDiscarded(t *testing.T) {
	h := newHarness(t, 4)
	h.createProcessingJob(t, "job-1", domain.JobKindTransformation)

	sig := domain.CompletionSignal{JobID: "job-1", Kind: domain.JobKindDescription, Result: "texto"}
	if err := h.reconciler.Apply(context.Background(), sig); err != nil {
		t.Fatalf("apply: %v", err)
	}
	job, _ := h.jobs.GetByID(context.Background(), "job-1")
	if job.Status != domain.JobStatusProcessing {
		t.Fatalf("mismatched signal mutated job: %+v", job)
	}
}

func TestReconcilerStatsCounters(t *testing.T) {
	stats := memrepo.NewStatsStore()
	h := newHarness(t, 4)
	h.reconciler.stats = stats
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h.reconciler.now = func() time.Time { return now }

	h.createProcessingJob(t, "ok", domain.JobKindTransformation)
	h.createProcessingJob(t, "bad", domain.JobKindDescription)
	ctx := context.Background()

	_ = h.reconciler.Apply(ctx, domain.CompletionSignal{JobID: "ok", Result: "url"})
	_ = h.reconciler.Apply(ctx, domain.CompletionSignal{JobID: "bad", Error: "boom"})

	summary, err := stats.Summary(ctx, now)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.JobsCompleted != 1 || summary.JobsFailed != 1 || summary.CreditsRefunded != 1 {
		t.Fatalf("unexpected counters: %+v", summary)
	}
}
