package tools

import (
	"strings"
	"testing"
)

func TestTruncateUnderLimitUnchanged(t *testing.T) {
	out := Truncate("short output", 100, TruncateHeadTail)
	if out != "short output" {
		t.Errorf("expected unchanged output, got %q", out)
	}
}

func TestTruncateHeadTailKeepsBothEnds(t *testing.T) {
	input := strings.Repeat("A", 500) + strings.Repeat("Z", 500)
	out := Truncate(input, 100, TruncateHeadTail)

	if !strings.HasPrefix(out, strings.Repeat("A", 50)) {
		t.Error("expected head preserved")
	}
	if !strings.HasSuffix(out, strings.Repeat("Z", 50)) {
		t.Error("expected tail preserved")
	}
	if !strings.Contains(out, "truncated") {
		t.Error("expected truncation notice")
	}
}

func TestTruncateTailKeepsEnd(t *testing.T) {
	input := strings.Repeat("A", 500) + strings.Repeat("Z", 100)
	out := Truncate(input, 100, TruncateTail)

	if !strings.HasSuffix(out, strings.Repeat("Z", 100)) {
		t.Error("expected tail preserved")
	}
	if strings.HasPrefix(out, "A") {
		t.Error("expected head removed")
	}
}

func TestTruncateLines(t *testing.T) {
	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, "line")
	}
	out := TruncateLines(strings.Join(lines, "\n"), 10)

	if !strings.Contains(out, "90 lines omitted") {
		t.Errorf("expected omission notice, got %q", out)
	}
	if got := strings.Count(out, "line"); got > 12 {
		t.Errorf("expected at most 12 line markers, got %d", got)
	}
}

func TestTruncateToolOutputUsesPerToolLimits(t *testing.T) {
	// write_file has a 1000 char limit; shell has 30000.
	big := strings.Repeat("x", 5000)

	if out := TruncateToolOutput(big, "write_file"); !strings.Contains(out, "truncated") {
		t.Error("expected write_file output truncated at 5000 chars")
	}
	if out := TruncateToolOutput(big, "shell"); strings.Contains(out, "truncated") {
		t.Error("did not expect shell output truncated at 5000 chars")
	}
}
