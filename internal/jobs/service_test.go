package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"propstage/internal/adapter/memrepo"
	"propstage/internal/domain"
)

type fakeDispatcher struct {
	err       error
	dispached []string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, job *domain.Job) error {
	f.dispached = append(f.dispached, job.ID)
	return f.err
}

type fakeStager struct {
	keys map[string]string
}

func (f *fakeStager) StageInput(_ context.Context, jobID string, data []byte) (string, error) {
	key := "inputs/" + jobID + "/deadbeef"
	if f.keys == nil {
		f.keys = map[string]string{}
	}
	f.keys[key] = string(data)
	return key, nil
}

func (f *fakeStager) Remove(_ context.Context, key string) error {
	delete(f.keys, key)
	return nil
}

func (f *fakeStager) has(key string) bool {
	_, ok := f.keys[key]
	return ok
}

func newServiceHarness(t *testing.T, credits int, dispatchErr error) (*Service, *testHarness, *fakeDispatcher) {
	t.Helper()
	h := newHarness(t, credits)
	dispatcher := &fakeDispatcher{err: dispatchErr}
	projects := memrepo.NewProjectStore()
	svc := NewService(h.jobs, projects, h.ledger, dispatcher, &fakeStager{}, h.reconciler, h.registry, memrepo.NewStatsStore(), zerolog.Nop())
	return svc, h, dispatcher
}

func TestSubmitTransformationHappyPath(t *testing.T) {
	svc, h, dispatcher := newServiceHarness(t, 5, nil)

	job, err := svc.SubmitTransformation(context.Background(), SubmitTransformationRequest{
		UserID: "user-1",
		Image:  []byte("png-bytes"),
		Style:  "scandinavian",
		Prompt: "bright and airy",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != domain.JobStatusProcessing {
		t.Fatalf("status after accepted dispatch: %s", job.Status)
	}
	if job.InputRef == "" {
		t.Fatal("staged input reference missing")
	}
	if len(dispatcher.dispached) != 1 {
		t.Fatalf("dispatched %d times", len(dispatcher.dispached))
	}
	if got := h.balance(t); got != 4 {
		t.Fatalf("balance after submit: %d", got)
	}
}

func TestSubmitInsufficientCreditsCreatesNothing(t *testing.T) {
	svc, h, dispatcher := newServiceHarness(t, 0, nil)

	_, err := svc.SubmitDescription(context.Background(), SubmitDescriptionRequest{
		UserID:       "user-1",
		PropertyData: map[string]string{"propertyType": "Piso"},
		Tone:         "professional",
		Language:     "es",
	})
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if len(dispatcher.dispached) != 0 {
		t.Fatal("dispatch attempted despite failed debit")
	}
	jobs, _ := h.jobs.ListAll(context.Background())
	if len(jobs) != 0 {
		t.Fatalf("job created despite failed debit: %+v", jobs)
	}
	if got := h.balance(t); got != 0 {
		t.Fatalf("balance mutated: %d", got)
	}
}

func TestSubmitDispatchRejectedFailsJobAndRefunds(t *testing.T) {
	svc, h, _ := newServiceHarness(t, 5, domain.ErrDispatchRejected)

	job, err := svc.SubmitTransformation(context.Background(), SubmitTransformationRequest{
		UserID: "user-1",
		Image:  []byte("png-bytes"),
		Style:  "industrial",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status after rejected dispatch: %s", job.Status)
	}
	if !strings.Contains(job.ErrorMessage, "dispatch rejected") {
		t.Fatalf("error message: %q", job.ErrorMessage)
	}
	if got := h.balance(t); got != 5 {
		t.Fatalf("refund must cancel debit, balance %d", got)
	}
}

func TestSubmitStoresNoRawImageBytes(t *testing.T) {
	svc, h, _ := newServiceHarness(t, 5, nil)

	image := []byte(strings.Repeat("x", 1024))
	job, err := svc.SubmitTransformation(context.Background(), SubmitTransformationRequest{
		UserID: "user-1",
		Image:  image,
		Style:  "minimal",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	stored, _ := h.jobs.GetByID(context.Background(), job.ID)
	if stored.Input.Transformation == nil {
		t.Fatal("input missing")
	}
	if strings.Contains(string(stored.Input.Transformation.Annotations), "xxxx") {
		t.Fatal("raw image leaked into annotations")
	}
	if stored.InputRef == "" {
		t.Fatal("expected staging reference")
	}
}

func TestRegenerateCreatesNewJobWithFreshDebit(t *testing.T) {
	svc, h, dispatcher := newServiceHarness(t, 5, nil)
	ctx := context.Background()

	original, err := svc.SubmitDescription(ctx, SubmitDescriptionRequest{
		UserID:       "user-1",
		PropertyData: map[string]string{"propertyType": "Casa", "area": "120"},
		Tone:         "warm",
		Language:     "en",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	clone, err := svc.Regenerate(ctx, "user-1", original.ID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if clone.ID == original.ID {
		t.Fatal("regenerate must mint a new job id")
	}
	if clone.Input.Description == nil || clone.Input.Description.PropertyData["area"] != "120" {
		t.Fatalf("input not cloned: %+v", clone.Input)
	}
	if len(dispatcher.dispached) != 2 {
		t.Fatalf("dispatched %d times, want 2", len(dispatcher.dispached))
	}
	if got := h.balance(t); got != 3 {
		t.Fatalf("expected two debits, balance %d", got)
	}
}

func TestRegenerateOtherUsersJobIsNotFound(t *testing.T) {
	svc, h, _ := newServiceHarness(t, 5, nil)
	ctx := context.Background()
	h.createProcessingJob(t, "theirs", domain.JobKindTransformation)

	if _, err := svc.Regenerate(ctx, "someone-else", "theirs"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteJobRemovesStagedInput(t *testing.T) {
	h := newHarness(t, 5)
	stager := &fakeStager{}
	svc := NewService(h.jobs, memrepo.NewProjectStore(), h.ledger, &fakeDispatcher{}, stager, h.reconciler, h.registry, nil, zerolog.Nop())
	ctx := context.Background()

	job, err := svc.SubmitTransformation(ctx, SubmitTransformationRequest{
		UserID: "user-1",
		Image:  []byte("png-bytes"),
		Style:  "scandinavian",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !stager.has(job.InputRef) {
		t.Fatalf("input %s not staged", job.InputRef)
	}

	if err := svc.DeleteJob(ctx, "user-1", job.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if stager.has(job.InputRef) {
		t.Fatalf("staged input %s survived job deletion", job.InputRef)
	}
}

func TestDeleteJobKeepsInputSharedWithClone(t *testing.T) {
	h := newHarness(t, 5)
	stager := &fakeStager{}
	svc := NewService(h.jobs, memrepo.NewProjectStore(), h.ledger, &fakeDispatcher{}, stager, h.reconciler, h.registry, nil, zerolog.Nop())
	ctx := context.Background()

	original, err := svc.SubmitTransformation(ctx, SubmitTransformationRequest{
		UserID: "user-1",
		Image:  []byte("png-bytes"),
		Style:  "minimal",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	clone, err := svc.Regenerate(ctx, "user-1", original.ID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if clone.InputRef != original.InputRef {
		t.Fatalf("clone ref %s, original ref %s", clone.InputRef, original.InputRef)
	}

	if err := svc.DeleteJob(ctx, "user-1", original.ID); err != nil {
		t.Fatalf("delete original: %v", err)
	}
	if !stager.has(clone.InputRef) {
		t.Fatal("staged input removed while the regenerated clone still references it")
	}

	if err := svc.DeleteJob(ctx, "user-1", clone.ID); err != nil {
		t.Fatalf("delete clone: %v", err)
	}
	if stager.has(clone.InputRef) {
		t.Fatal("staged input survived deletion of the last referencing job")
	}
}

func TestEvictionRemovesStagedInput(t *testing.T) {
	h := newHarness(t, 20)
	stager := &fakeStager{}
	svc := NewService(h.jobs, memrepo.NewProjectStore(), h.ledger, &fakeDispatcher{}, stager, h.reconciler, h.registry, nil, zerolog.Nop())
	ctx := context.Background()

	first, err := svc.SubmitTransformation(ctx, SubmitTransformationRequest{
		UserID: "user-1",
		Image:  []byte("oldest"),
		Style:  "industrial",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// The ring holds ten jobs per kind; the eleventh submission evicts the
	// first and its staged input goes with it.
	for i := 0; i < 10; i++ {
		if _, err := svc.SubmitTransformation(ctx, SubmitTransformationRequest{
			UserID: "user-1",
			Image:  []byte(strings.Repeat("x", i+1)),
			Style:  "industrial",
		}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	if _, err := h.jobs.GetByID(ctx, first.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("oldest job not evicted: %v", err)
	}
	if stager.has(first.InputRef) {
		t.Fatalf("staged input %s survived eviction", first.InputRef)
	}
}

func TestDeleteProjectCascadesJobs(t *testing.T) {
	h := newHarness(t, 5)
	projects := memrepo.NewProjectStore()
	dispatcher := &fakeDispatcher{}
	svc := NewService(h.jobs, projects, h.ledger, dispatcher, &fakeStager{}, h.reconciler, h.registry, nil, zerolog.Nop())
	ctx := context.Background()

	project := &domain.Project{ID: "project-1", UserID: "user-1", Name: "Calle Mayor 12"}
	if err := projects.Create(ctx, project); err != nil {
		t.Fatalf("create project: %v", err)
	}
	projectID := project.ID
	job, err := svc.SubmitDescription(ctx, SubmitDescriptionRequest{
		UserID:       "user-1",
		ProjectID:    &projectID,
		PropertyData: map[string]string{"propertyType": "Piso"},
		Tone:         "professional",
		Language:     "es",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := svc.DeleteProject(ctx, "user-1", projectID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if _, err := h.jobs.GetByID(ctx, job.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("job survived project cascade: %v", err)
	}
	if _, err := projects.GetByID(ctx, projectID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("project survived delete: %v", err)
	}
}
