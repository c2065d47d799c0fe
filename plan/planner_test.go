package plan

import (
	"errors"
	"path/filepath"
	"testing"
)

func status(s Status) *Status { return &s }

func TestCreatePlanFirstPlanIsSingleTask(t *testing.T) {
	p := NewPlanner()
	created := p.CreatePlan("add a health endpoint")

	if len(created) != 1 {
		t.Fatalf("expected 1 task, got %d", len(created))
	}
	task := created[0]
	if task.Status != StatusPending {
		t.Errorf("expected pending, got %s", task.Status)
	}
	if task.Phase != PhaseImplementation {
		t.Errorf("expected implementation phase, got %s", task.Phase)
	}
	if task.ID == "" || task.CreatedAt.IsZero() {
		t.Error("expected id and createdAt set")
	}
}

func TestCreatePlanPrependsTriadAheadOfBacklog(t *testing.T) {
	p := NewPlanner()
	p.CreatePlan("old request")
	created := p.CreatePlan("urgent new request")

	if len(created) != 3 {
		t.Fatalf("expected triad, got %d tasks", len(created))
	}
	phases := []Phase{created[0].Phase, created[1].Phase, created[2].Phase}
	want := []Phase{PhaseDiscovery, PhasePlanning, PhaseImplementation}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("triad[%d] phase = %s, want %s", i, phases[i], want[i])
		}
	}

	// New work runs before the stale backlog.
	next := p.GetNextTask()
	if next == nil || next.Phase != PhaseDiscovery {
		t.Errorf("expected discovery task first, got %+v", next)
	}
	all := p.Tasks()
	if all[len(all)-1].Description != "old request" {
		t.Error("expected old task pushed to the back")
	}
}

func TestGetNextTaskIsFIFOIgnoringPriority(t *testing.T) {
	p := NewPlanner()
	first := p.AddTask("low priority but first", PriorityLow, PhaseImplementation)
	p.AddTask("high priority but second", PriorityHigh, PhaseImplementation)

	next := p.GetNextTask()
	if next == nil || next.ID != first.ID {
		t.Errorf("expected FIFO order, got %+v", next)
	}
}

func TestGetNextTaskSkipsNonPending(t *testing.T) {
	p := NewPlanner()
	first := p.AddTask("one", PriorityMedium, PhaseImplementation)
	second := p.AddTask("two", PriorityMedium, PhaseImplementation)

	if _, err := p.UpdateTask(first.ID, Update{Status: status(StatusCompleted)}); err != nil {
		t.Fatal(err)
	}
	next := p.GetNextTask()
	if next == nil || next.ID != second.ID {
		t.Errorf("expected second task, got %+v", next)
	}

	if _, err := p.UpdateTask(second.ID, Update{Status: status(StatusSkipped)}); err != nil {
		t.Fatal(err)
	}
	if p.GetNextTask() != nil {
		t.Error("expected nil with no pending tasks")
	}
}

func TestStartedAtStampedExactlyOnce(t *testing.T) {
	p := NewPlanner()
	task := p.AddTask("flaky work", PriorityMedium, PhaseImplementation)

	updated, err := p.UpdateTask(task.ID, Update{Status: status(StatusInProgress)})
	if err != nil {
		t.Fatal(err)
	}
	if updated.StartedAt == nil {
		t.Fatal("expected startedAt stamped on first in_progress")
	}
	firstStart := *updated.StartedAt
	if updated.Attempts != 0 {
		t.Errorf("first entry is not a retry, attempts = %d", updated.Attempts)
	}

	// Fail, then re-enter in_progress: attempts increments, startedAt
	// does not move.
	if _, err := p.UpdateTask(task.ID, Update{Status: status(StatusFailed)}); err != nil {
		t.Fatal(err)
	}
	updated, err = p.UpdateTask(task.ID, Update{Status: status(StatusInProgress)})
	if err != nil {
		t.Fatal(err)
	}
	if !updated.StartedAt.Equal(firstStart) {
		t.Error("startedAt must not reset on re-entry")
	}
	if updated.Attempts != 1 {
		t.Errorf("expected attempts=1 after retry, got %d", updated.Attempts)
	}
}

func TestCompletedAtStamped(t *testing.T) {
	p := NewPlanner()
	task := p.AddTask("work", PriorityMedium, PhaseImplementation)

	p.UpdateTask(task.ID, Update{Status: status(StatusInProgress)})
	updated, err := p.UpdateTask(task.ID, Update{
		Status: status(StatusCompleted),
		Result: &TaskResult{Success: true, ModifiedFiles: []string{"main.go"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.CompletedAt == nil {
		t.Error("expected completedAt stamped")
	}
	if updated.Result == nil || !updated.Result.Success {
		t.Error("expected result recorded")
	}
}

func TestUpdateUnknownTask(t *testing.T) {
	p := NewPlanner()
	if _, err := p.UpdateTask("task_missing", Update{Status: status(StatusFailed)}); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestAppendErrorKeepsTask(t *testing.T) {
	p := NewPlanner()
	task := p.AddTask("work", PriorityMedium, PhaseImplementation)

	updated, err := p.UpdateTask(task.ID, Update{
		Status:      status(StatusFailed),
		AppendError: &TaskError{Message: "compile error", Recoverable: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(updated.Errors) != 1 || updated.Errors[0].Message != "compile error" {
		t.Errorf("expected error recorded, got %+v", updated.Errors)
	}
	// Failed tasks stay in the queue for auditability.
	if len(p.Tasks()) != 1 {
		t.Error("failed task must not be deleted")
	}
}

type failingStore struct{}

func (failingStore) Load() ([]Task, error) { return nil, errors.New("unreachable") }
func (failingStore) Save([]Task) error     { return errors.New("disk full") }
func (failingStore) Exists() bool          { return false }

func TestPersistenceFailureIsSwallowed(t *testing.T) {
	var warnings []string
	p := NewPlanner(
		WithStore(failingStore{}),
		WithWarn(func(msg string) { warnings = append(warnings, msg) }),
	)

	task := p.AddTask("work", PriorityMedium, PhaseImplementation)
	if len(warnings) == 0 {
		t.Error("expected persistence warning")
	}

	// The in-memory queue stays authoritative.
	if next := p.GetNextTask(); next == nil || next.ID != task.ID {
		t.Error("queue must survive persistence failure")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	store := NewFileStore(path)

	if store.Exists() {
		t.Fatal("store should not exist yet")
	}

	p := NewPlanner(WithStore(store))
	t1 := p.AddTask("first", PriorityHigh, PhaseDiscovery)
	t2 := p.AddTask("second", PriorityLow, PhaseImplementation)
	p.UpdateTask(t1.ID, Update{Status: status(StatusInProgress)})
	p.UpdateTask(t2.ID, Update{
		Status:      status(StatusFailed),
		AppendError: &TaskError{Message: "broken", Recoverable: false},
	})

	if !store.Exists() {
		t.Fatal("expected plan file written")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(loaded))
	}

	byID := map[string]Task{}
	for _, task := range loaded {
		byID[task.ID] = task
	}
	if got := byID[t1.ID]; got.Status != StatusInProgress || got.Priority != PriorityHigh || got.StartedAt == nil {
		t.Errorf("task 1 did not round-trip: %+v", got)
	}
	if got := byID[t2.ID]; got.Status != StatusFailed || len(got.Errors) != 1 {
		t.Errorf("task 2 did not round-trip: %+v", got)
	}
}

func TestReloadResetsInterruptedTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	store := NewFileStore(path)

	p := NewPlanner(WithStore(store))
	task := p.AddTask("interrupted work", PriorityMedium, PhaseImplementation)
	p.UpdateTask(task.ID, Update{Status: status(StatusInProgress)})

	// A fresh planner resuming from disk sees the task pending again.
	resumed := NewPlanner(WithStore(store))
	if err := resumed.Reload(); err != nil {
		t.Fatal(err)
	}
	next := resumed.GetNextTask()
	if next == nil || next.ID != task.ID {
		t.Fatalf("expected interrupted task pending after reload, got %+v", next)
	}
	if next.StartedAt == nil {
		t.Error("reload must preserve startedAt")
	}
}

func TestReloadWithoutStore(t *testing.T) {
	p := NewPlanner()
	if err := p.Reload(); err == nil {
		t.Error("expected error reloading without a store")
	}
}
