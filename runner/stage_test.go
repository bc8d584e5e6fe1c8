package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/asksbj/jpstamp-pipeline/task"
)

type fakeStage struct {
	preRunErr error
	status    Status
	started   bool
}

func (f *fakeStage) PreRun(ctx context.Context, t *task.Task, effectiveDate time.Time) error {
	return f.preRunErr
}

func (f *fakeStage) Start(ctx context.Context, t *task.Task, effectiveDate time.Time) Status {
	f.started = true
	return f.status
}

type fakeTaskStore struct {
	completedDate string
	completeErr   error
}

func (f *fakeTaskStore) PickOldest(ctx context.Context, domain string) (*task.Task, error) {
	return nil, task.ErrNotFound
}
func (f *fakeTaskStore) Lease(ctx context.Context, t *task.Task, observedAt time.Time) (bool, error) {
	return true, nil
}
func (f *fakeTaskStore) Complete(ctx context.Context, t *task.Task, date string) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completedDate = date
	t.Date = &date
	return nil
}
func (f *fakeTaskStore) EnsureExists(ctx context.Context, domain, taskType, owner string, now time.Time) error {
	return nil
}
func (f *fakeTaskStore) GetByTypeAndOwner(ctx context.Context, domain, taskType, owner string) (*task.Task, error) {
	return nil, task.ErrNotFound
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// TestBase_EffectiveDate_StrictLessThan pins the cadence gate's
// open-question resolution from spec.md §9: `next < today` strict, not
// `<=`. With IntervalDays=1 and last run yesterday, next == today, so the
// gate must stay closed (NoWorkToDo), not open.
func TestBase_EffectiveDate_StrictLessThan(t *testing.T) {
	today := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	yesterday := "2026-07-31"
	tk := &task.Task{Domain: "jpost", Owner: "Hokkaido", Date: &yesterday}

	stage := &fakeStage{status: Success}
	store := &fakeTaskStore{}
	base := &Base{Name: "INGEST_BASIC", IntervalDays: 1, Store: store, Stage: stage, Now: fixedNow(today)}

	status := base.Run(context.Background(), tk)
	if status != NoWorkToDo {
		t.Fatalf("expected NoWorkToDo when next == today (strict <), got %s", status)
	}
	if stage.started {
		t.Fatalf("Start should not have been called")
	}
}

func TestBase_EffectiveDate_OpensOncePastInterval(t *testing.T) {
	today := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	twoDaysAgo := "2026-07-31"
	tk := &task.Task{Domain: "jpost", Owner: "Hokkaido", Date: &twoDaysAgo}

	stage := &fakeStage{status: Success}
	store := &fakeTaskStore{}
	base := &Base{Name: "INGEST_BASIC", IntervalDays: 1, Store: store, Stage: stage, Now: fixedNow(today)}

	status := base.Run(context.Background(), tk)
	if status != Success {
		t.Fatalf("expected Success once next < today, got %s", status)
	}
	if store.completedDate != "2026-08-02" {
		t.Fatalf("expected completion date 2026-08-02, got %q", store.completedDate)
	}
}

func TestBase_EffectiveDate_NilDateAlwaysDue(t *testing.T) {
	today := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tk := &task.Task{Domain: "jpost", Owner: "Hokkaido"}

	stage := &fakeStage{status: Success}
	store := &fakeTaskStore{}
	base := &Base{Name: "INGEST_BASIC", IntervalDays: 7, Store: store, Stage: stage, Now: fixedNow(today)}

	if status := base.Run(context.Background(), tk); status != Success {
		t.Fatalf("expected Success for never-run task, got %s", status)
	}
}

func TestBase_Run_PreRunErrorYieldsFailureWithoutMutation(t *testing.T) {
	today := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tk := &task.Task{Domain: "jpost", Owner: "Hokkaido"}

	stage := &fakeStage{preRunErr: errors.New("boom"), status: Success}
	store := &fakeTaskStore{}
	base := &Base{Name: "INGEST_BASIC", Store: store, Stage: stage, Now: fixedNow(today)}

	status := base.Run(context.Background(), tk)
	if status != Failure {
		t.Fatalf("expected Failure, got %s", status)
	}
	if stage.started {
		t.Fatalf("Start must not run when PreRun fails")
	}
	if store.completedDate != "" {
		t.Fatalf("task.date must not be mutated on PreRun failure")
	}
}

func TestBase_Run_NotReadyForWorkPassesThrough(t *testing.T) {
	today := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	tk := &task.Task{Domain: "jpost", Owner: "Hokkaido"}

	stage := &fakeStage{status: NotReadyForWork}
	store := &fakeTaskStore{}
	base := &Base{Name: "INGEST_DETAIL", Store: store, Stage: stage, Now: fixedNow(today)}

	status := base.Run(context.Background(), tk)
	if status != NotReadyForWork {
		t.Fatalf("expected NotReadyForWork, got %s", status)
	}
	if store.completedDate != "" {
		t.Fatalf("task.date must not be mutated when not ready")
	}
}
