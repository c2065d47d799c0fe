package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ClaytonHunt/sheen-sub000/llm"
	"github.com/ClaytonHunt/sheen-sub000/permission"
	"github.com/ClaytonHunt/sheen-sub000/tools"
)

// scriptedProvider returns canned responses in order, then repeats the
// last one.
type scriptedProvider struct {
	responses []*llm.Response
	errs      []error
	calls     int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	i := p.calls
	p.calls++
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	if p.errs != nil && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	return p.responses[i], nil
}

func (p *scriptedProvider) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.StreamEvent, 2)
	ch <- llm.StreamEvent{Type: llm.StreamTextDelta, Delta: resp.Text}
	ch <- llm.StreamEvent{Type: llm.StreamFinish, Response: resp}
	close(ch)
	return ch, nil
}

func nativeForTest(t *testing.T, provider *scriptedProvider) *NativeAgent {
	t.Helper()
	reg := tools.NewRegistry(nil)
	reg.Register(tools.Tool{
		Definition: tools.Definition{Name: "touch"},
		Handler: func(ctx context.Context, params map[string]any) (*tools.Result, error) {
			path, _ := params["path"].(string)
			return &tools.Result{Success: true, Output: "touched", FilesChanged: []string{path}}, nil
		},
	})

	opts := Options{
		Backend:      BackendNative,
		SystemPrompt: "you are a coding agent",
		Client:       llm.NewClient(llm.WithProvider(provider), llm.WithRetryPolicy(llm.RetryPolicy{})),
		Gate:         permission.NewGate(permission.WithAutoApprove(true)),
		Registry:     reg,
	}
	opts.applyDefaults()
	return NewNativeAgent(opts)
}

func TestNativeExecutePlainText(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{
		{Text: "all done", FinishReason: "stop", Usage: llm.Usage{TotalTokens: 12}},
	}}
	a := nativeForTest(t, provider)

	result, err := a.Execute(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success, got error %q", result.Error)
	}
	if result.Output != "all done" {
		t.Errorf("unexpected output: %q", result.Output)
	}
	if result.Usage.TotalTokens != 12 {
		t.Errorf("expected usage recorded, got %+v", result.Usage)
	}
	if provider.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.calls)
	}
}

func TestNativeExecuteToolRound(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{
		{
			Text:         "let me create the file",
			FinishReason: "tool_calls",
			ToolCalls: []llm.ToolCall{
				{ID: "c1", Name: "touch", Arguments: json.RawMessage(`{"path": "new.go"}`)},
			},
		},
		{Text: "file created", FinishReason: "stop"},
	}}
	a := nativeForTest(t, provider)

	result, err := a.Execute(context.Background(), "create new.go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if result.ToolRounds != 1 {
		t.Errorf("expected 1 tool round, got %d", result.ToolRounds)
	}
	if len(result.FilesChanged) != 1 || result.FilesChanged[0] != "new.go" {
		t.Errorf("expected files changed recorded, got %v", result.FilesChanged)
	}
	if provider.calls != 2 {
		t.Errorf("expected 2 provider calls, got %d", provider.calls)
	}

	// The tool result landed in the conversation history.
	foundToolMsg := false
	for _, msg := range a.Conversation().Messages() {
		if msg.Role == llm.RoleTool && strings.Contains(msg.Content, "touched") {
			foundToolMsg = true
		}
	}
	if !foundToolMsg {
		t.Error("expected tool result recorded in conversation")
	}
}

func TestNativeProviderFailureBecomesFailedResult(t *testing.T) {
	provider := &scriptedProvider{
		responses: []*llm.Response{nil},
		errs: []error{&llm.AuthenticationError{ProviderError: llm.ProviderError{
			ClientError: llm.ClientError{Message: "bad key"},
		}}},
	}
	a := nativeForTest(t, provider)

	result, err := a.Execute(context.Background(), "anything")
	if err != nil {
		t.Fatalf("transport failures must not surface as errors, got %v", err)
	}
	if result.Success {
		t.Error("expected failed result")
	}
	if !strings.Contains(result.Error, "bad key") {
		t.Errorf("expected provider error in result, got %q", result.Error)
	}
}

func TestNativeResetConversation(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{{Text: "ok", FinishReason: "stop"}}}
	a := nativeForTest(t, provider)

	if _, err := a.Execute(context.Background(), "first"); err != nil {
		t.Fatal(err)
	}
	if a.Conversation().Len() < 2 {
		t.Fatal("expected history accumulated")
	}

	a.ResetConversation("fresh prompt")
	if a.Conversation().Len() != 1 {
		t.Errorf("expected history cleared, got %d messages", a.Conversation().Len())
	}
	if a.Conversation().SystemPrompt() != "fresh prompt" {
		t.Errorf("expected system prompt swapped, got %q", a.Conversation().SystemPrompt())
	}
}
