package plan

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Planner owns the ordered task queue. Scheduling is FIFO; priority is
// advisory metadata only.
type Planner struct {
	tasks []Task
	store Store
	warn  func(msg string)
	mu    sync.Mutex
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithStore attaches a persistence store. Saves are best-effort.
func WithStore(store Store) PlannerOption {
	return func(p *Planner) {
		p.store = store
	}
}

// WithWarn sets the hook for persistence failures. May be nil.
func WithWarn(warn func(msg string)) PlannerOption {
	return func(p *Planner) {
		p.warn = warn
	}
}

// NewPlanner creates an empty Planner.
func NewPlanner(opts ...PlannerOption) *Planner {
	p := &Planner{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reload replaces the queue with the persisted plan. Used by resume.
func (p *Planner) Reload() error {
	if p.store == nil || !p.store.Exists() {
		return fmt.Errorf("no persisted plan to reload")
	}
	tasks, err := p.store.Load()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// A task left in_progress by an interrupted run goes back to pending.
	for i := range tasks {
		if tasks[i].Status == StatusInProgress {
			tasks[i].Status = StatusPending
		}
	}
	p.tasks = tasks
	return nil
}

// CreatePlan creates tasks for a user prompt. The first plan is a single
// implementation task; when tasks already exist, a discovery, planning,
// implementation triad is prepended ahead of the pending backlog so new
// requests take priority.
func (p *Planner) CreatePlan(prompt string) []Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UTC()
	var created []Task

	if len(p.tasks) == 0 {
		created = []Task{{
			ID:          newTaskID(),
			Description: prompt,
			Status:      StatusPending,
			Priority:    PriorityHigh,
			Phase:       PhaseImplementation,
			CreatedAt:   now,
		}}
		p.tasks = append(p.tasks, created...)
	} else {
		created = []Task{
			{
				ID:          newTaskID(),
				Description: "Investigate the codebase for: " + prompt,
				Status:      StatusPending,
				Priority:    PriorityHigh,
				Phase:       PhaseDiscovery,
				CreatedAt:   now,
			},
			{
				ID:          newTaskID(),
				Description: "Plan the approach for: " + prompt,
				Status:      StatusPending,
				Priority:    PriorityHigh,
				Phase:       PhasePlanning,
				CreatedAt:   now,
			},
			{
				ID:          newTaskID(),
				Description: prompt,
				Status:      StatusPending,
				Priority:    PriorityHigh,
				Phase:       PhaseImplementation,
				CreatedAt:   now,
			},
		}
		p.tasks = append(append([]Task{}, created...), p.tasks...)
	}

	p.persistLocked()
	out := make([]Task, len(created))
	copy(out, created)
	return out
}

// AddTask appends a new pending task with a fresh id and returns it.
func (p *Planner) AddTask(description string, priority Priority, phase Phase) Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	task := Task{
		ID:          newTaskID(),
		Description: description,
		Status:      StatusPending,
		Priority:    priority,
		Phase:       phase,
		CreatedAt:   time.Now().UTC(),
	}
	p.tasks = append(p.tasks, task)
	p.persistLocked()
	return task
}

// GetNextTask returns a copy of the first pending task in queue order,
// or nil when none remain.
func (p *Planner) GetNextTask() *Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.tasks {
		if p.tasks[i].Status == StatusPending {
			task := p.tasks[i]
			return &task
		}
	}
	return nil
}

// Update carries the fields UpdateTask merges into a task. Nil fields
// are left untouched.
type Update struct {
	Status      *Status
	Phase       *Phase
	Description *string
	Result      *TaskResult
	AppendError *TaskError
}

// UpdateTask merges fields into the identified task. Transitions into
// in_progress stamp startedAt exactly once and count an attempt when the
// task re-enters after a failure; transitions into completed stamp
// completedAt. The updated queue is persisted best-effort.
func (p *Planner) UpdateTask(id string, update Update) (*Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := -1
	for i := range p.tasks {
		if p.tasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("update task: unknown id %s", id)
	}

	task := &p.tasks[idx]
	now := time.Now().UTC()

	if update.Status != nil && *update.Status != task.Status {
		switch *update.Status {
		case StatusInProgress:
			if task.StartedAt == nil {
				stamp := now
				task.StartedAt = &stamp
			}
			if task.Status == StatusFailed {
				task.Attempts++
			}
		case StatusCompleted:
			stamp := now
			task.CompletedAt = &stamp
		}
		task.Status = *update.Status
	}
	if update.Phase != nil {
		task.Phase = *update.Phase
	}
	if update.Description != nil {
		task.Description = *update.Description
	}
	if update.Result != nil {
		task.Result = update.Result
	}
	if update.AppendError != nil {
		task.Errors = append(task.Errors, *update.AppendError)
	}

	p.persistLocked()
	out := *task
	return &out, nil
}

// Tasks returns a copy of the whole queue.
func (p *Planner) Tasks() []Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Task, len(p.tasks))
	copy(out, p.tasks)
	return out
}

// PendingCount returns how many tasks are still pending.
func (p *Planner) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for i := range p.tasks {
		if p.tasks[i].Status == StatusPending {
			count++
		}
	}
	return count
}

// persistLocked saves the queue when a store is attached. Failures are
// warned and swallowed; the in-memory queue stays authoritative.
func (p *Planner) persistLocked() {
	if p.store == nil {
		return
	}
	if err := p.store.Save(p.tasks); err != nil && p.warn != nil {
		p.warn(fmt.Sprintf("plan persistence failed: %v", err))
	}
}

func newTaskID() string {
	return "task_" + uuid.New().String()[:8]
}
