package engine

import (
	"time"

	"github.com/ClaytonHunt/sheen-sub000/plan"
)

// Metrics are the measurable progress counters compared across
// iterations.
type Metrics struct {
	TestCount       int
	FileCount       int
	CommitCount     int
	NoProgressCount int
}

// ExecError is one entry in the run's append-only error log.
type ExecError struct {
	Iteration int
	Phase     plan.Phase
	Message   string
	Recovered bool
	Timestamp time.Time
}

// UserMessage is an out-of-band input queued while the loop runs.
type UserMessage struct {
	Message   string
	Timestamp time.Time
	Processed bool
}

// StopReason classifies why a run ended. Runs never end unclassified.
type StopReason string

const (
	StopComplete      StopReason = "complete"
	StopMaxIterations StopReason = "max_iterations"
	StopErrors        StopReason = "too_many_errors"
	StopNoProgress    StopReason = "no_progress"
	StopRequested     StopReason = "stop_requested"
	StopPaused        StopReason = "paused"
)

// ExecutionState is the run's mutable state. The loop owns the top-level
// fields; the planner owns the entries inside the task queue. No other
// writer exists, so access is single-threaded by design.
type ExecutionState struct {
	Iteration      int
	Phase          plan.Phase
	CurrentTask    *plan.Task
	Metrics        Metrics
	Errors         []ExecError
	Paused         bool
	UserMessages   []UserMessage
	LastActivityAt time.Time
	StopReason     StopReason
}

// NewExecutionState creates the state for a fresh run.
func NewExecutionState() *ExecutionState {
	return &ExecutionState{
		Phase: plan.PhaseImplementation,
	}
}

// RecordError appends to the error log.
func (s *ExecutionState) RecordError(message string, recovered bool) {
	s.Errors = append(s.Errors, ExecError{
		Iteration: s.Iteration,
		Phase:     s.Phase,
		Message:   message,
		Recovered: recovered,
		Timestamp: time.Now().UTC(),
	})
}

// UnrecoveredErrors counts log entries not marked recovered.
func (s *ExecutionState) UnrecoveredErrors() int {
	count := 0
	for _, e := range s.Errors {
		if !e.Recovered {
			count++
		}
	}
	return count
}
