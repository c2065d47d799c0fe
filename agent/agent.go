package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/ClaytonHunt/sheen-sub000/conversation"
	"github.com/ClaytonHunt/sheen-sub000/llm"
	"github.com/ClaytonHunt/sheen-sub000/permission"
	"github.com/ClaytonHunt/sheen-sub000/tools"
)

// Backend identifies which agent implementation to construct.
type Backend string

const (
	BackendNative     Backend = "native"
	BackendSubprocess Backend = "subprocess"
)

// DefaultTimeout bounds one Execute call when none is configured.
const DefaultTimeout = 5 * time.Minute

// DefaultMaxToolRounds bounds internal tool rounds within one Execute.
const DefaultMaxToolRounds = 25

// Call is a normalized tool invocation, independent of which protocol
// carried it.
type Call struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// Result is the outcome of one Execute call. Transport failures are
// reported here, not as Go errors, so the engine can retry on a later
// iteration.
type Result struct {
	Output       string
	Success      bool
	Error        string
	FilesChanged []string
	Commits      int
	TestsRun     int
	ToolRounds   int
	Usage        llm.Usage
}

// EventType identifies a streamed agent event.
type EventType string

const (
	EventText       EventType = "text"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventDone       EventType = "done"
	EventFailure    EventType = "failure"
)

// Event is one element of an agent stream.
type Event struct {
	Type   EventType
	Text   string
	Call   *Call
	Result *tools.Result
	Final  *Result
	Err    error
}

// Agent is the uniform capability the engine drives.
type Agent interface {
	Execute(ctx context.Context, prompt string) (*Result, error)
	Stream(ctx context.Context, prompt string) (<-chan Event, error)
	RegisterTools(reg *tools.Registry)
	Conversation() *conversation.Manager
	ResetConversation(systemPrompt string)
}

// Options configures agent construction.
type Options struct {
	Backend      Backend
	SystemPrompt string

	// Native backend.
	Client   *llm.Client
	Model    string
	Provider string

	// Subprocess backend.
	Command string
	Args    []string
	WorkDir string

	Gate          *permission.Gate
	Registry      *tools.Registry
	MaxToolRounds int
	Timeout       time.Duration
	TokenBudget   int
}

func (o *Options) applyDefaults() {
	if o.MaxToolRounds <= 0 {
		o.MaxToolRounds = DefaultMaxToolRounds
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Registry == nil {
		o.Registry = tools.NewRegistry(nil)
	}
	if o.Gate == nil {
		o.Gate = permission.NewGate()
	}
}

// New constructs the configured backend.
func New(opts Options) (Agent, error) {
	opts.applyDefaults()
	switch opts.Backend {
	case BackendNative, "":
		if opts.Client == nil {
			return nil, fmt.Errorf("native backend requires an llm client")
		}
		return NewNativeAgent(opts), nil
	case BackendSubprocess:
		if opts.Command == "" {
			return nil, fmt.Errorf("subprocess backend requires a command")
		}
		return NewSubprocessAgent(opts), nil
	default:
		return nil, fmt.Errorf("unknown agent backend %q", opts.Backend)
	}
}
