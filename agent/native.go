package agent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ClaytonHunt/sheen-sub000/conversation"
	"github.com/ClaytonHunt/sheen-sub000/llm"
	"github.com/ClaytonHunt/sheen-sub000/tools"
)

// NativeAgent drives the llm client directly with structured tool
// definitions. Tool calls come back typed; no text parsing is involved.
type NativeAgent struct {
	client        *llm.Client
	model         string
	provider      string
	registry      *tools.Registry
	exec          *executor
	conv          *conversation.Manager
	maxToolRounds int
	timeout       time.Duration
}

// NewNativeAgent constructs a NativeAgent from Options.
func NewNativeAgent(opts Options) *NativeAgent {
	var convOpts []conversation.ManagerOption
	if opts.TokenBudget > 0 {
		convOpts = append(convOpts, conversation.WithTokenBudget(opts.TokenBudget))
	}
	return &NativeAgent{
		client:        opts.Client,
		model:         opts.Model,
		provider:      opts.Provider,
		registry:      opts.Registry,
		exec:          newExecutor(opts.Gate, opts.Registry),
		conv:          conversation.NewManager(opts.SystemPrompt, convOpts...),
		maxToolRounds: opts.MaxToolRounds,
		timeout:       opts.Timeout,
	}
}

// RegisterTools points the agent at a registry.
func (a *NativeAgent) RegisterTools(reg *tools.Registry) {
	a.registry = reg
	a.exec = newExecutor(a.exec.gate, reg)
}

// Conversation returns the agent's conversation manager.
func (a *NativeAgent) Conversation() *conversation.Manager {
	return a.conv
}

// ResetConversation clears history, optionally swapping the system
// prompt.
func (a *NativeAgent) ResetConversation(systemPrompt string) {
	a.conv.Reset(systemPrompt)
}

// Execute runs one prompt to completion, including internal tool rounds.
// Provider and tool failures come back in the Result so the engine can
// retry on a later iteration; the error return is reserved for context
// cancellation.
func (a *NativeAgent) Execute(ctx context.Context, prompt string) (*Result, error) {
	return a.execute(ctx, prompt, nil)
}

// Stream runs Execute while emitting incremental events.
func (a *NativeAgent) Stream(ctx context.Context, prompt string) (<-chan Event, error) {
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

func (a *NativeAgent) execute(ctx context.Context, prompt string, emit func(Event)) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.conv.AddUserMessage(prompt)

	result := &Result{}
	var outputs []string

	for round := 0; round < a.maxToolRounds; round++ {
		if err := ctx.Err(); err != nil {
			if round == 0 {
				return nil, err
			}
			result.Success = false
			result.Error = "cancelled mid-execution: " + err.Error()
			break
		}

		req := llm.Request{
			Model:      a.model,
			Provider:   a.provider,
			Messages:   a.conv.Messages(),
			Tools:      toolDefinitions(a.registry),
			ToolChoice: "auto",
		}

		resp, err := a.client.Complete(ctx, req)
		if err != nil {
			// Provider failures become a failed result, not an error;
			// the engine decides whether to retry.
			result.Success = false
			result.Error = err.Error()
			result.Output = strings.Join(outputs, "\n")
			return result, nil
		}

		result.Usage = result.Usage.Add(resp.Usage)
		if resp.Text != "" {
			outputs = append(outputs, resp.Text)
			a.conv.AddAssistantMessage(resp.Text)
			if emit != nil {
				emit(Event{Type: EventText, Text: resp.Text})
			}
		}

		if len(resp.ToolCalls) == 0 {
			result.Success = true
			break
		}

		calls := normalizeLLMCalls(resp.ToolCalls)
		result.ToolRounds++
		execs := a.exec.run(ctx, calls, emit)
		accumulate(result, execs)

		for _, exec := range execs {
			a.conv.AddToolResult(exec.Call.ID, exec.Call.Name, exec.Result.Output+exec.Result.Error)
		}

		if a.exec.loopDetected() {
			a.conv.AddUserMessage(loopWarning)
		}

		if round == a.maxToolRounds-1 {
			// Step budget exhausted; report what happened so far.
			result.Success = true
		}
	}

	result.Output = strings.Join(outputs, "\n")
	a.conv.PruneIfNeeded()
	return result, nil
}

func toolDefinitions(reg *tools.Registry) []llm.ToolDefinition {
	defs := reg.Definitions()
	out := make([]llm.ToolDefinition, len(defs))
	for i, d := range defs {
		out[i] = llm.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		}
	}
	return out
}

func normalizeLLMCalls(raw []llm.ToolCall) []Call {
	converted := make([]struct {
		ID        string
		Name      string
		Arguments json.RawMessage
	}, len(raw))
	for i, rc := range raw {
		converted[i].ID = rc.ID
		converted[i].Name = rc.Name
		converted[i].Arguments = rc.Arguments
	}
	return NormalizeToolCalls(converted)
}
