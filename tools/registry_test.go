package tools

import (
	"context"
	"errors"
	"testing"
)

func echoTool(name string) Tool {
	return Tool{
		Definition: Definition{
			Name:        name,
			Description: "echoes its input",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text":  map[string]any{"type": "string"},
					"count": map[string]any{"type": "integer"},
					"loud":  map[string]any{"type": "boolean"},
				},
				"required": []string{"text"},
			},
		},
		Handler: func(ctx context.Context, params map[string]any) (*Result, error) {
			return &Result{Success: true, Output: params["text"].(string)}, nil
		},
	}
}

func TestRegistryCollisionWarnsAndOverwrites(t *testing.T) {
	var warnings []string
	reg := NewRegistry(func(msg string) { warnings = append(warnings, msg) })

	reg.Register(echoTool("echo"))
	if len(warnings) != 0 {
		t.Fatalf("first registration should not warn, got %v", warnings)
	}

	replacement := echoTool("echo")
	replacement.Handler = func(ctx context.Context, params map[string]any) (*Result, error) {
		return &Result{Success: true, Output: "replaced"}, nil
	}
	reg.Register(replacement)

	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	res := reg.Execute(context.Background(), "echo", map[string]any{"text": "hi"})
	if res.Output != "replaced" {
		t.Errorf("expected replacement handler to win, got %q", res.Output)
	}
	if reg.Count() != 1 {
		t.Errorf("expected 1 tool, got %d", reg.Count())
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	reg := NewRegistry(nil)
	res := reg.Execute(context.Background(), "nope", nil)
	if res.Success {
		t.Error("expected failure for unknown tool")
	}
	if res.Error == "" {
		t.Error("expected error message")
	}
}

func TestExecuteValidation(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(echoTool("echo"))

	tests := []struct {
		name    string
		params  map[string]any
		wantOK  bool
	}{
		{"valid", map[string]any{"text": "hi"}, true},
		{"missing required", map[string]any{}, false},
		{"wrong string type", map[string]any{"text": 42}, false},
		{"integer accepts whole float", map[string]any{"text": "hi", "count": float64(3)}, true},
		{"integer rejects fraction", map[string]any{"text": "hi", "count": 3.5}, false},
		{"boolean rejects string", map[string]any{"text": "hi", "loud": "yes"}, false},
		{"undeclared param passes", map[string]any{"text": "hi", "extra": "whatever"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := reg.Execute(context.Background(), "echo", tt.params)
			if res.Success != tt.wantOK {
				t.Errorf("Success = %v, want %v (error: %s)", res.Success, tt.wantOK, res.Error)
			}
		})
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(Tool{
		Definition: Definition{Name: "boom"},
		Handler: func(ctx context.Context, params map[string]any) (*Result, error) {
			panic("kaboom")
		},
	})

	res := reg.Execute(context.Background(), "boom", nil)
	if res.Success {
		t.Error("expected failure from panicking tool")
	}
	if res.Error == "" {
		t.Error("expected panic message in result")
	}
}

func TestExecuteHandlerErrorBecomesResult(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(Tool{
		Definition: Definition{Name: "fail"},
		Handler: func(ctx context.Context, params map[string]any) (*Result, error) {
			return nil, errors.New("disk on fire")
		},
	})

	res := reg.Execute(context.Background(), "fail", nil)
	if res.Success {
		t.Error("expected failure result")
	}
	if res.Error != "disk on fire" {
		t.Errorf("expected handler error in result, got %q", res.Error)
	}
}

func TestDefinitionsSorted(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(echoTool("zulu"))
	reg.Register(echoTool("alpha"))
	reg.Register(echoTool("mike"))

	names := reg.Names()
	want := []string{"alpha", "mike", "zulu"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
