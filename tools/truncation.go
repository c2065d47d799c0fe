package tools

import (
	"fmt"
	"strings"
)

// TruncationMode selects which part of oversized output survives.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// Per-tool character limits applied before output enters the conversation.
var defaultCharLimits = map[string]int{
	"read_file":  50000,
	"shell":      30000,
	"git":        20000,
	"list_dir":   20000,
	"edit_file":  10000,
	"write_file": 1000,
}

var defaultModes = map[string]TruncationMode{
	"read_file":  TruncateHeadTail,
	"shell":      TruncateHeadTail,
	"git":        TruncateTail,
	"list_dir":   TruncateTail,
	"edit_file":  TruncateTail,
	"write_file": TruncateTail,
}

// Line limits applied after character truncation.
var defaultLineLimits = map[string]int{
	"shell":    256,
	"git":      200,
	"list_dir": 500,
}

// Truncate applies character-based truncation to output.
func Truncate(output string, maxChars int, mode TruncationMode) string {
	if len(output) <= maxChars {
		return output
	}

	removed := len(output) - maxChars
	switch mode {
	case TruncateTail:
		return fmt.Sprintf("[output truncated: first %d characters removed]\n\n", removed) +
			output[len(output)-maxChars:]
	default:
		half := maxChars / 2
		return output[:half] +
			fmt.Sprintf("\n\n[output truncated: %d characters removed from the middle; re-run the tool with narrower parameters to see more]\n\n", removed) +
			output[len(output)-half:]
	}
}

// TruncateLines keeps the head and tail of output when it exceeds
// maxLines.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	head := maxLines / 2
	tail := maxLines - head
	omitted := len(lines) - head - tail

	return strings.Join(lines[:head], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tail:], "\n")
}

// TruncateToolOutput applies the per-tool truncation pipeline: character
// truncation first, then line truncation.
func TruncateToolOutput(output, toolName string) string {
	maxChars, ok := defaultCharLimits[toolName]
	if !ok {
		maxChars = 30000
	}
	mode, ok := defaultModes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}

	result := Truncate(output, maxChars, mode)

	if maxLines, ok := defaultLineLimits[toolName]; ok {
		result = TruncateLines(result, maxLines)
	}
	return result
}
