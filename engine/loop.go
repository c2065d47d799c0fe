package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ClaytonHunt/sheen-sub000/agent"
	"github.com/ClaytonHunt/sheen-sub000/plan"
	"github.com/ClaytonHunt/sheen-sub000/project"
)

// CompletionMarker is the line an agent emits to signal the current task
// is done. Task completion is signaled, never inferred from a single
// round-trip; multi-iteration tasks are expected.
const CompletionMarker = "TASK_COMPLETE"

// Config bounds a run.
type Config struct {
	MaxIterations  int
	ErrorThreshold int
	StallThreshold int
	MaxTaskRetries int
	Delay          time.Duration
}

// DefaultConfig returns the default run bounds.
func DefaultConfig() Config {
	return Config{
		MaxIterations:  50,
		ErrorThreshold: 5,
		StallThreshold: 3,
		MaxTaskRetries: 2,
		Delay:          2 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = def.ErrorThreshold
	}
	if c.StallThreshold <= 0 {
		c.StallThreshold = def.StallThreshold
	}
	// Negative disables task retries; zero means default.
	if c.MaxTaskRetries == 0 {
		c.MaxTaskRetries = def.MaxTaskRetries
	}
	if c.Delay < 0 {
		c.Delay = 0
	}
}

// Engine drives the agent through the task queue.
type Engine struct {
	agent   agent.Agent
	planner *plan.Planner
	proj    *project.Context
	emitter *Emitter
	state   *ExecutionState
	cfg     Config

	retryTaskID string

	mu            sync.Mutex
	stopRequested bool
	paused        bool
	userQueue     []UserMessage
}

// New creates an Engine. proj may be nil when no project context is
// available.
func New(a agent.Agent, planner *plan.Planner, proj *project.Context, cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{
		agent:   a,
		planner: planner,
		proj:    proj,
		emitter: NewEmitter("run_"+uuid.New().String()[:8], 256),
		state:   NewExecutionState(),
		cfg:     cfg,
	}
}

// Events returns the run's event stream.
func (e *Engine) Events() <-chan Event {
	return e.emitter.Events()
}

// State returns the run state for inspection. The caller must not
// mutate it while Run is in flight.
func (e *Engine) State() *ExecutionState {
	return e.state
}

// Pause requests a cooperative pause, honored at the top of the next
// iteration. In-flight model and tool calls are never preempted.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
}

// Resume clears a pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
}

// Stop requests a cooperative stop, honored at the top of the next
// iteration.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopRequested = true
}

// QueueUserMessage queues an out-of-band user input. It is drained into
// the conversation at the top of the next iteration.
func (e *Engine) QueueUserMessage(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.userQueue = append(e.userQueue, UserMessage{
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// ShouldContinue reports whether another iteration may run, and the stop
// reason when not.
func (e *Engine) ShouldContinue() (bool, StopReason) {
	e.mu.Lock()
	stopRequested := e.stopRequested
	paused := e.paused
	e.mu.Unlock()

	switch {
	case stopRequested:
		return false, StopRequested
	case paused:
		return false, StopPaused
	case e.state.Phase == plan.PhaseComplete:
		return false, StopComplete
	case e.state.Iteration >= e.cfg.MaxIterations:
		return false, StopMaxIterations
	case e.state.UnrecoveredErrors() >= e.cfg.ErrorThreshold:
		return false, StopErrors
	case e.state.Metrics.NoProgressCount >= e.cfg.StallThreshold:
		return false, StopNoProgress
	default:
		return true, ""
	}
}

// Run executes iterations until a stop condition fires, then reports the
// classified stop reason through the event stream and returns the state.
func (e *Engine) Run(ctx context.Context) *ExecutionState {
	e.emitter.Emit(EventRunStart, map[string]any{
		"pending_tasks": e.planner.PendingCount(),
	})

	for {
		if ctx.Err() != nil {
			e.state.StopReason = StopRequested
			break
		}
		ok, reason := e.ShouldContinue()
		if !ok {
			e.state.StopReason = reason
			break
		}

		e.runIteration(ctx)

		if ok, _ := e.ShouldContinue(); ok && e.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(e.cfg.Delay):
			}
		}
	}

	e.emitter.Emit(EventRunEnd, map[string]any{
		"stop_reason": string(e.state.StopReason),
		"iterations":  e.state.Iteration,
		"errors":      e.state.UnrecoveredErrors(),
	})
	e.emitter.Close()
	return e.state
}

// runIteration wraps iterate with panic recovery. A panicking iteration
// is logged as unrecovered, the current task marked failed, and the
// error-threshold condition takes effect on the next check.
func (e *Engine) runIteration(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("iteration panic: %v", rec)
			e.state.RecordError(msg, false)
			e.failCurrentTask(msg)
			e.emitter.Emit(EventFailure, map[string]any{"error": msg})
		}
	}()
	e.iterate(ctx)
}

func (e *Engine) iterate(ctx context.Context) {
	prev := e.state.Metrics

	e.state.Iteration++
	e.state.LastActivityAt = time.Now().UTC()
	e.emitter.Emit(EventIterationStart, map[string]any{"iteration": e.state.Iteration})

	e.drainUserMessages()

	if e.state.CurrentTask == nil {
		taskID := e.retryTaskID
		e.retryTaskID = ""
		if taskID == "" {
			next := e.planner.GetNextTask()
			if next == nil {
				e.state.Phase = plan.PhaseComplete
				return
			}
			taskID = next.ID
		}
		inProgress := plan.StatusInProgress
		updated, err := e.planner.UpdateTask(taskID, plan.Update{Status: &inProgress})
		if err != nil {
			e.state.RecordError(err.Error(), false)
			return
		}
		e.state.CurrentTask = updated
		e.state.Phase = updated.Phase
		e.emitter.Emit(EventTaskStart, map[string]any{
			"task_id":     updated.ID,
			"description": updated.Description,
			"attempts":    updated.Attempts,
		})
	}

	task := e.state.CurrentTask
	result, err := e.agent.Execute(ctx, e.buildPrompt(task))
	if err != nil {
		// Only cancellation escapes the agent as an error.
		msg := fmt.Sprintf("agent execute: %v", err)
		e.state.RecordError(msg, false)
		e.failCurrentTask(msg)
		return
	}

	e.emitter.Emit(EventAgentOutput, map[string]any{
		"output":  result.Output,
		"success": result.Success,
	})

	if !result.Success {
		e.state.RecordError(result.Error, true)
		e.failCurrentTask(result.Error)
	} else {
		e.state.Metrics.FileCount += len(result.FilesChanged)
		e.state.Metrics.CommitCount += result.Commits
		e.state.Metrics.TestCount += result.TestsRun

		if hasCompletionMarker(result.Output) {
			completed := plan.StatusCompleted
			e.planner.UpdateTask(task.ID, plan.Update{
				Status: &completed,
				Result: &plan.TaskResult{
					Success:       true,
					ModifiedFiles: result.FilesChanged,
				},
			})
			e.emitter.Emit(EventTaskCompleted, map[string]any{"task_id": task.ID})
			e.state.CurrentTask = nil
		}
		// Without the marker the task stays in_progress for the next
		// iteration.
	}

	if DetectProgress(prev, e.state.Metrics) {
		e.state.Metrics.NoProgressCount = 0
	} else {
		e.state.Metrics.NoProgressCount++
		e.emitter.Emit(EventNoProgress, map[string]any{
			"consecutive": e.state.Metrics.NoProgressCount,
		})
	}
}

func (e *Engine) drainUserMessages() {
	e.mu.Lock()
	queued := e.userQueue
	e.userQueue = nil
	e.mu.Unlock()

	for i := range queued {
		e.agent.Conversation().AddUserMessage(queued[i].Message)
		queued[i].Processed = true
		e.emitter.Emit(EventUserInjected, map[string]any{"message": queued[i].Message})
	}
	e.state.UserMessages = append(e.state.UserMessages, queued...)
}

// failCurrentTask marks the active task failed. A task that has not yet
// used its retry budget re-enters in_progress on a later iteration,
// which is the only path that increments its attempt counter.
func (e *Engine) failCurrentTask(msg string) {
	task := e.state.CurrentTask
	if task == nil {
		return
	}
	failed := plan.StatusFailed
	updated, err := e.planner.UpdateTask(task.ID, plan.Update{
		Status:      &failed,
		AppendError: &plan.TaskError{Message: msg, Timestamp: time.Now().UTC(), Recoverable: true},
	})
	e.emitter.Emit(EventTaskFailed, map[string]any{"task_id": task.ID, "error": msg})
	e.state.CurrentTask = nil

	if err == nil && updated.Attempts < e.cfg.MaxTaskRetries {
		e.retryTaskID = task.ID
	}
}

// buildPrompt renders the task instruction handed to the agent,
// including project context on the first iteration of a task and the
// completion-marker contract.
func (e *Engine) buildPrompt(task *plan.Task) string {
	var sb strings.Builder

	if e.proj != nil && task.Attempts == 0 && task.StartedAt != nil {
		sb.WriteString(e.proj.EnvironmentBlock())
		sb.WriteString("\n\n")
	}

	sb.WriteString(task.Description)
	sb.WriteString("\n\nWhen the task is fully done, output a line containing exactly ")
	sb.WriteString(CompletionMarker)
	sb.WriteString(".")

	if task.Attempts > 0 {
		fmt.Fprintf(&sb, "\nThis is retry attempt %d; previous attempts failed", task.Attempts)
		if n := len(task.Errors); n > 0 {
			fmt.Fprintf(&sb, " with: %s", task.Errors[n-1].Message)
		}
		sb.WriteString(".")
	}
	return sb.String()
}

// hasCompletionMarker reports whether any line of output is the
// completion marker (optionally with surrounding whitespace).
func hasCompletionMarker(output string) bool {
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == CompletionMarker {
			return true
		}
	}
	return false
}
