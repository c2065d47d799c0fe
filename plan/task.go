package plan

import "time"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Priority is advisory metadata; scheduling is FIFO.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Phase is a coarse workflow label attached to tasks and mirrored by the
// engine's terminal condition.
type Phase string

const (
	PhaseDiscovery      Phase = "discovery"
	PhasePlanning       Phase = "planning"
	PhaseImplementation Phase = "implementation"
	PhaseValidation     Phase = "validation"
	PhaseComplete       Phase = "complete"
)

// TaskResult records what a completed or failed attempt produced.
type TaskResult struct {
	Success       bool     `yaml:"success" json:"success"`
	ModifiedFiles []string `yaml:"modified_files,omitempty" json:"modified_files,omitempty"`
	Commits       []string `yaml:"commits,omitempty" json:"commits,omitempty"`
}

// TaskError is one failure recorded against a task.
type TaskError struct {
	Message     string    `yaml:"message" json:"message"`
	Timestamp   time.Time `yaml:"timestamp" json:"timestamp"`
	Recoverable bool      `yaml:"recoverable" json:"recoverable"`
}

// Task is a unit of work tracked by the Planner.
type Task struct {
	ID           string      `yaml:"id" json:"id"`
	Description  string      `yaml:"description" json:"description"`
	Status       Status      `yaml:"status" json:"status"`
	Priority     Priority    `yaml:"priority" json:"priority"`
	Phase        Phase       `yaml:"phase" json:"phase"`
	Dependencies []string    `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Attempts     int         `yaml:"attempts" json:"attempts"`
	Result       *TaskResult `yaml:"result,omitempty" json:"result,omitempty"`
	Errors       []TaskError `yaml:"errors,omitempty" json:"errors,omitempty"`
	CreatedAt    time.Time   `yaml:"created_at" json:"created_at"`
	StartedAt    *time.Time  `yaml:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt  *time.Time  `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
}
