package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ClaytonHunt/sheen-sub000/tools"
)

// ToolCallMarker prefixes an embedded tool call in model text produced
// by the subprocess backend.
const ToolCallMarker = "TOOL_CALL:"

// markerCall is the wire shape of one embedded tool call. Both the
// tool/params and name/arguments spellings are accepted.
type markerCall struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Name      string         `json:"name"`
	Params    map[string]any `json:"params"`
	Arguments map[string]any `json:"arguments"`
}

// ParseToolCalls extracts TOOL_CALL fragments from free-form model text.
// The JSON object following each marker is located by brace matching, so
// nested objects inside params survive. Fragments that do not parse are
// skipped silently; the model gets another chance on the next turn.
func ParseToolCalls(text string) []Call {
	var calls []Call

	for offset := 0; ; {
		idx := strings.Index(text[offset:], ToolCallMarker)
		if idx == -1 {
			break
		}
		start := offset + idx + len(ToolCallMarker)

		fragment, end := extractJSONObject(text[start:])
		if fragment == "" {
			offset = start
			continue
		}
		offset = start + end

		var raw markerCall
		if err := json.Unmarshal([]byte(fragment), &raw); err != nil {
			continue
		}

		call := Call{ID: raw.ID, Name: raw.Tool, Params: raw.Params}
		if call.Name == "" {
			call.Name = raw.Name
		}
		if call.Params == nil {
			call.Params = raw.Arguments
		}
		if call.Name == "" {
			continue
		}
		if call.ID == "" {
			call.ID = newCallID()
		}
		if call.Params == nil {
			call.Params = map[string]any{}
		}
		calls = append(calls, call)
	}

	return calls
}

// extractJSONObject returns the first balanced {...} in s and the index
// just past it. Braces inside JSON strings do not count toward balance.
func extractJSONObject(s string) (string, int) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if start == -1 {
			switch c {
			case '{':
				start = i
				depth = 1
			case ' ', '\t':
				continue
			default:
				// The marker must be followed by an object, optionally
				// after horizontal whitespace.
				return "", 0
			}
			continue
		}

		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], i + 1
				}
			}
		}
	}
	return "", 0
}

// NormalizeToolCalls converts structured tool calls from the native
// protocol into the common Call shape, assigning ids where absent and
// skipping calls whose arguments do not decode.
func NormalizeToolCalls(raw []struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}) []Call {
	calls := make([]Call, 0, len(raw))
	for _, rc := range raw {
		if rc.Name == "" {
			continue
		}
		params := map[string]any{}
		if len(rc.Arguments) > 0 {
			if err := json.Unmarshal(rc.Arguments, &params); err != nil {
				continue
			}
		}
		id := rc.ID
		if id == "" {
			id = newCallID()
		}
		calls = append(calls, Call{ID: id, Name: rc.Name, Params: params})
	}
	return calls
}

// FormatResultsAsText renders tool results as conversational text for
// the text-only backend's next turn.
func FormatResultsAsText(execs []Execution) string {
	var sb strings.Builder
	for i, exec := range execs {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch {
		case exec.Denied:
			fmt.Fprintf(&sb, "Tool %s was not executed: permission denied.\n", exec.Call.Name)
		case exec.Result.Success:
			fmt.Fprintf(&sb, "Tool %s succeeded:\n%s\n", exec.Call.Name, exec.Result.Output)
		default:
			fmt.Fprintf(&sb, "Tool %s failed: %s\n", exec.Call.Name, exec.Result.Error)
			if exec.Result.Output != "" {
				sb.WriteString(exec.Result.Output)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

// Catalog renders a human-readable tool list for the text-only backend,
// which must be told what tools exist and how to invoke them.
func Catalog(reg *tools.Registry) string {
	defs := reg.Definitions()
	if len(defs) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("You can invoke tools by emitting a line of the form:\n")
	sb.WriteString(`TOOL_CALL: {"tool": "<name>", "params": {...}}`)
	sb.WriteString("\n\nAvailable tools:\n")
	for _, def := range defs {
		fmt.Fprintf(&sb, "- %s: %s\n", def.Name, def.Description)
		if props, ok := def.Parameters["properties"].(map[string]any); ok && len(props) > 0 {
			required := map[string]bool{}
			for _, r := range requiredList(def.Parameters) {
				required[r] = true
			}
			for name, prop := range props {
				desc := ""
				typ := ""
				if m, ok := prop.(map[string]any); ok {
					desc, _ = m["description"].(string)
					typ, _ = m["type"].(string)
				}
				suffix := ""
				if required[name] {
					suffix = ", required"
				}
				fmt.Fprintf(&sb, "    %s (%s%s): %s\n", name, typ, suffix, desc)
			}
		}
	}
	return sb.String()
}

func requiredList(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func newCallID() string {
	return "call_" + uuid.New().String()[:8]
}
