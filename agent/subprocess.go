package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/ClaytonHunt/sheen-sub000/conversation"
	"github.com/ClaytonHunt/sheen-sub000/llm"
	"github.com/ClaytonHunt/sheen-sub000/tools"
)

// killGracePeriod is how long the child gets between SIGTERM and
// SIGKILL.
const killGracePeriod = 5 * time.Second

// SubprocessAgent shells out to a CLI model binary. The prompt goes in
// on stdin, text comes back on stdout, and tool calls arrive embedded as
// TOOL_CALL fragments in the text.
type SubprocessAgent struct {
	command       string
	args          []string
	workDir       string
	registry      *tools.Registry
	exec          *executor
	conv          *conversation.Manager
	maxToolRounds int
	timeout       time.Duration
}

// NewSubprocessAgent constructs a SubprocessAgent from Options.
func NewSubprocessAgent(opts Options) *SubprocessAgent {
	var convOpts []conversation.ManagerOption
	if opts.TokenBudget > 0 {
		convOpts = append(convOpts, conversation.WithTokenBudget(opts.TokenBudget))
	}
	return &SubprocessAgent{
		command:       opts.Command,
		args:          opts.Args,
		workDir:       opts.WorkDir,
		registry:      opts.Registry,
		exec:          newExecutor(opts.Gate, opts.Registry),
		conv:          conversation.NewManager(opts.SystemPrompt, convOpts...),
		maxToolRounds: opts.MaxToolRounds,
		timeout:       opts.Timeout,
	}
}

// RegisterTools points the agent at a registry.
func (a *SubprocessAgent) RegisterTools(reg *tools.Registry) {
	a.registry = reg
	a.exec = newExecutor(a.exec.gate, reg)
}

// Conversation returns the agent's conversation manager.
func (a *SubprocessAgent) Conversation() *conversation.Manager {
	return a.conv
}

// ResetConversation clears history, optionally swapping the system
// prompt.
func (a *SubprocessAgent) ResetConversation(systemPrompt string) {
	a.conv.Reset(systemPrompt)
}

// Execute runs one prompt through the child process, executing embedded
// tool calls between rounds until the child stops requesting tools or
// the round budget runs out.
func (a *SubprocessAgent) Execute(ctx context.Context, prompt string) (*Result, error) {
	return a.execute(ctx, prompt, nil)
}

// Stream runs Execute while emitting incremental events.
func (a *SubprocessAgent) Stream(ctx context.Context, prompt string) (<-chan Event, error) {
	ch := make(chan Event, 64)
	go func() {
		defer close(ch)
		emit := func(ev Event) {
			select {
			case ch <- ev:
			default:
			}
		}
		result, err := a.execute(ctx, prompt, emit)
		if err != nil {
			ch <- Event{Type: EventFailure, Err: err}
			return
		}
		ch <- Event{Type: EventDone, Final: result}
	}()
	return ch, nil
}

func (a *SubprocessAgent) execute(ctx context.Context, prompt string, emit func(Event)) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.conv.AddUserMessage(prompt)

	result := &Result{}
	var outputs []string
	input := a.buildInput(prompt, "")

	for round := 0; round < a.maxToolRounds; round++ {
		text, err := a.runChild(ctx, input)
		if err != nil {
			// Child failures, including timeout kills, become a failed
			// result so the engine can retry later.
			result.Success = false
			result.Error = err.Error()
			result.Output = strings.Join(outputs, "\n")
			return result, nil
		}

		a.conv.AddAssistantMessage(text)
		outputs = append(outputs, text)
		if emit != nil {
			emit(Event{Type: EventText, Text: text})
		}

		calls := ParseToolCalls(text)
		if len(calls) == 0 {
			result.Success = true
			break
		}

		result.ToolRounds++
		execs := a.exec.run(ctx, calls, emit)
		accumulate(result, execs)

		resultsText := FormatResultsAsText(execs)
		a.conv.AddToolResult("", "", resultsText)

		if a.exec.loopDetected() {
			resultsText += "\n" + loopWarning
			a.conv.AddUserMessage(loopWarning)
		}

		input = a.buildInput("", resultsText)

		if round == a.maxToolRounds-1 {
			result.Success = true
		}
	}

	result.Output = strings.Join(outputs, "\n")
	a.conv.PruneIfNeeded()
	return result, nil
}

// buildInput assembles the full text handed to the child: system prompt,
// tool catalog, conversation so far, and either the new task prompt or
// tool results from the previous round.
func (a *SubprocessAgent) buildInput(prompt, toolResults string) string {
	var sb strings.Builder

	sb.WriteString(a.conv.SystemPrompt())
	sb.WriteString("\n\n")
	if catalog := Catalog(a.registry); catalog != "" {
		sb.WriteString(catalog)
		sb.WriteString("\n")
	}

	for _, msg := range a.conv.CoreMessages() {
		switch msg.Role {
		case llm.RoleUser:
			sb.WriteString("User: " + msg.Content + "\n")
		case llm.RoleAssistant:
			sb.WriteString("Assistant: " + msg.Content + "\n")
		}
	}

	if toolResults != "" {
		sb.WriteString("\nTool results from your previous calls:\n")
		sb.WriteString(toolResults)
		sb.WriteString("\nContinue with the task.\n")
	} else if prompt != "" {
		sb.WriteString("\nTask: " + prompt + "\n")
	}

	return sb.String()
}

// runChild runs one round of the child process, writing input to its
// stdin. On timeout the child's process group gets SIGTERM, then SIGKILL
// after a grace period.
func (a *SubprocessAgent) runChild(ctx context.Context, input string) (string, error) {
	cmd := exec.Command(a.command, a.args...)
	cmd.Dir = a.workDir
	cmd.Stdin = strings.NewReader(input)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", a.command, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("%s exited: %w: %s", a.command, err, strings.TrimSpace(stderr.String()))
		}
		return stdout.String(), nil

	case <-ctx.Done():
		pgid := -cmd.Process.Pid
		_ = syscall.Kill(pgid, syscall.SIGTERM)
		select {
		case <-done:
		case <-time.After(killGracePeriod):
			_ = syscall.Kill(pgid, syscall.SIGKILL)
			<-done
		}
		return "", fmt.Errorf("%s timed out: %w", a.command, ctx.Err())
	}
}
