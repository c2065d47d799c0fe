package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Definition describes a tool for the model: a name, a human-readable
// description, and a JSON Schema object for its parameters.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Result is the outcome of one tool execution. Failures are carried in
// the Result; Execute never returns a Go error to the caller.
type Result struct {
	Success      bool          `json:"success"`
	Output       string        `json:"output,omitempty"`
	Error        string        `json:"error,omitempty"`
	FilesChanged []string      `json:"files_changed,omitempty"`
	ExitCode     int           `json:"exit_code,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
}

// Failure builds a failed Result with the given error message.
func Failure(format string, args ...any) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Handler executes a tool with validated parameters.
type Handler func(ctx context.Context, params map[string]any) (*Result, error)

// Tool pairs a definition with its handler.
type Tool struct {
	Definition Definition
	Handler    Handler
}

// Registry manages tool registration and execution.
type Registry struct {
	tools map[string]*Tool
	warn  func(msg string)
	mu    sync.RWMutex
}

// NewRegistry creates an empty Registry. warn is called when a
// registration replaces an existing tool; it may be nil.
func NewRegistry(warn func(msg string)) *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
		warn:  warn,
	}
}

// Register adds a tool. A name collision warns and overwrites, so callers
// can replace core tools with their own implementations.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	_, existed := r.tools[tool.Definition.Name]
	r.tools[tool.Definition.Name] = &tool
	warn := r.warn
	r.mu.Unlock()

	if existed && warn != nil {
		warn(fmt.Sprintf("tool %q re-registered, previous handler replaced", tool.Definition.Name))
	}
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns the registered tool, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Definitions returns all tool definitions sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	defs := r.Definitions()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs the named tool. Unknown tools, parameter validation
// failures, handler errors, and handler panics all come back as a failed
// Result; the engine records the failure and keeps going.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (result *Result) {
	tool := r.Get(name)
	if tool == nil {
		return Failure("unknown tool: %s", name)
	}

	if err := validateParams(tool.Definition.Parameters, params); err != nil {
		return Failure("invalid parameters for %s: %v", name, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = Failure("tool %s panicked: %v", name, rec)
		}
	}()

	start := time.Now()
	result, err := tool.Handler(ctx, params)
	if err != nil {
		return &Result{Success: false, Error: err.Error(), Duration: time.Since(start)}
	}
	if result == nil {
		return Failure("tool %s returned no result", name)
	}
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	return result
}

// validateParams checks params against a JSON Schema object: required
// fields must be present and declared primitive types must match.
func validateParams(schema map[string]any, params map[string]any) error {
	if schema == nil {
		return nil
	}

	for _, name := range requiredFields(schema) {
		if _, ok := params[name]; !ok {
			return fmt.Errorf("missing required parameter %q", name)
		}
	}

	props, _ := schema["properties"].(map[string]any)
	for name, value := range params {
		propSchema, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		declared, _ := propSchema["type"].(string)
		if declared == "" || value == nil {
			continue
		}
		if err := checkType(declared, value); err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}
	}
	return nil
}

func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		fields := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				fields = append(fields, s)
			}
		}
		return fields
	default:
		return nil
	}
}

func checkType(declared string, value any) error {
	switch declared {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case "number":
		if !isNumeric(value) {
			return fmt.Errorf("expected number, got %T", value)
		}
	case "integer":
		// JSON decoding yields float64; accept it when it is whole.
		switch n := value.(type) {
		case int, int64:
		case float64:
			if n != float64(int64(n)) {
				return fmt.Errorf("expected integer, got %v", n)
			}
		default:
			return fmt.Errorf("expected integer, got %T", value)
		}
	}
	// Object and array parameters pass through unchecked.
	return nil
}

func isNumeric(value any) bool {
	switch value.(type) {
	case int, int64, float64:
		return true
	default:
		return false
	}
}
