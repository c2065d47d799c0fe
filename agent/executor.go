package agent

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ClaytonHunt/sheen-sub000/permission"
	"github.com/ClaytonHunt/sheen-sub000/tools"
)

// loopWindow is how many recent tool-call signatures are inspected for
// repetition.
const loopWindow = 6

// Execution pairs a tool call with its outcome.
type Execution struct {
	Call   Call
	Result *tools.Result
	Denied bool
}

// executor routes tool calls through the permission gate and registry,
// truncates outputs, aggregates progress metrics, and watches for
// repeating call patterns.
type executor struct {
	gate       *permission.Gate
	registry   *tools.Registry
	signatures []string
}

func newExecutor(gate *permission.Gate, registry *tools.Registry) *executor {
	return &executor{gate: gate, registry: registry}
}

// run executes the calls in order. Denied calls are not executed and are
// reported back as declined operations, not errors.
func (e *executor) run(ctx context.Context, calls []Call, emit func(Event)) []Execution {
	execs := make([]Execution, 0, len(calls))
	for _, call := range calls {
		if emit != nil {
			c := call
			emit(Event{Type: EventToolCall, Call: &c})
		}

		exec := Execution{Call: call}
		decision := e.gate.Check(ctx, call.Name, call.Params)
		if !decision.Allowed {
			exec.Denied = true
			exec.Result = &tools.Result{
				Success: false,
				Error:   fmt.Sprintf("permission denied (%s)", decision.Risk),
			}
		} else {
			result := e.registry.Execute(ctx, call.Name, call.Params)
			result.Output = tools.TruncateToolOutput(result.Output, call.Name)
			exec.Result = result
		}

		e.signatures = append(e.signatures, callSignature(call))
		if len(e.signatures) > loopWindow {
			e.signatures = e.signatures[len(e.signatures)-loopWindow:]
		}

		if emit != nil {
			c := call
			emit(Event{Type: EventToolResult, Call: &c, Result: exec.Result})
		}
		execs = append(execs, exec)
	}
	return execs
}

// accumulate folds tool outcomes into the agent result.
func accumulate(result *Result, execs []Execution) {
	seen := map[string]bool{}
	for _, f := range result.FilesChanged {
		seen[f] = true
	}

	for _, exec := range execs {
		if exec.Result == nil || !exec.Result.Success {
			continue
		}
		for _, f := range exec.Result.FilesChanged {
			if !seen[f] {
				seen[f] = true
				result.FilesChanged = append(result.FilesChanged, f)
			}
		}
		cmd := commandFor(exec.Call)
		if cmd == "" {
			continue
		}
		if isCommitCommand(cmd) {
			result.Commits++
		}
		if isTestCommand(cmd) {
			result.TestsRun++
		}
	}
}

func commandFor(call Call) string {
	switch call.Name {
	case "shell":
		s, _ := call.Params["command"].(string)
		return s
	case "git":
		s, _ := call.Params["args"].(string)
		if s == "" {
			return ""
		}
		return "git " + s
	default:
		return ""
	}
}

func isCommitCommand(cmd string) bool {
	return strings.Contains(cmd, "git commit")
}

var testCommandPrefixes = []string{
	"go test",
	"npm test",
	"npm run test",
	"yarn test",
	"pytest",
	"cargo test",
	"make test",
}

func isTestCommand(cmd string) bool {
	trimmed := strings.TrimSpace(cmd)
	for _, prefix := range testCommandPrefixes {
		if strings.HasPrefix(trimmed, prefix) || strings.Contains(trimmed, "&& "+prefix) {
			return true
		}
	}
	return false
}

// loopDetected reports whether the recent signature window is a
// repeating pattern of length 1, 2, or 3.
func (e *executor) loopDetected() bool {
	if len(e.signatures) < loopWindow {
		return false
	}
	sigs := e.signatures[len(e.signatures)-loopWindow:]

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if loopWindow%patternLen != 0 {
			continue
		}
		match := true
		for i := patternLen; i < loopWindow && match; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != sigs[j] {
					match = false
					break
				}
			}
		}
		if match {
			return true
		}
	}
	return false
}

// loopWarning is injected into the conversation when a loop is detected.
const loopWarning = "The recent tool calls repeat the same pattern without making progress. Step back, reconsider the approach, and try something different."

func callSignature(call Call) string {
	data, _ := json.Marshal(call.Params)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", call.Name, h[:8])
}
