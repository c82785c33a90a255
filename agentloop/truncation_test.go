package agentloop

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateOutputHeadTail(t *testing.T) {
	out := TruncateOutput(strings.Repeat("a", 50)+strings.Repeat("b", 50), 20, TruncateHeadTail)
	if !strings.HasPrefix(out, strings.Repeat("a", 10)+"\n\n[WARNING") {
		t.Errorf("expected head kept, got %q", out)
	}
	if !strings.HasSuffix(out, "]\n\n"+strings.Repeat("b", 10)) {
		t.Errorf("expected tail kept, got %q", out)
	}
	if !strings.Contains(out, "80 characters were removed") {
		t.Errorf("expected removed count, got %q", out)
	}
}

func TestTruncateOutputTail(t *testing.T) {
	out := TruncateOutput("0123456789", 4, TruncateTail)
	if !strings.HasSuffix(out, "6789") || !strings.Contains(out, "First 6 characters were removed") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestTruncateOutputKeepsRunesWhole(t *testing.T) {
	input := strings.Repeat("é", 30) + strings.Repeat("日", 30)
	for _, mode := range []TruncationMode{TruncateHeadTail, TruncateTail} {
		for limit := 5; limit < 20; limit++ {
			out := TruncateOutput(input, limit, mode)
			if !utf8.ValidString(out) {
				t.Fatalf("%s limit %d produced invalid UTF-8: %q", mode, limit, out)
			}
		}
	}

	out := TruncateOutput(input, 7, TruncateHeadTail)
	if !strings.HasPrefix(out, "é\n\n[WARNING") || !strings.HasSuffix(out, "]\n\n日") {
		t.Errorf("unexpected head/tail %q", out)
	}
}

func TestTruncateOutputUnderLimit(t *testing.T) {
	if got := TruncateOutput("short", 100, TruncateHeadTail); got != "short" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestTruncateLines(t *testing.T) {
	input := "1\n2\n3\n4\n5\n6"
	got := TruncateLines(input, 4)
	want := "1\n2\n[... 2 lines omitted ...]\n5\n6"
	if got != want {
		t.Errorf("TruncateLines = %q, want %q", got, want)
	}
	if TruncateLines(input, 0) != input {
		t.Error("non-positive limit should be a no-op")
	}
}

func TestTruncateToolOutputOverrides(t *testing.T) {
	long := strings.Repeat("x", 2000)
	if got := TruncateToolOutput(long, ToolReadFile, nil); got != long {
		t.Error("read_file output under its default limit should be untouched")
	}
	got := TruncateToolOutput(long, ToolReadFile, map[ToolKind]int{ToolReadFile: 100})
	if len(got) >= len(long) || !strings.Contains(got, "WARNING") {
		t.Errorf("expected override to truncate, got %d chars", len(got))
	}

	lines := strings.Repeat("line\n", 600)
	if got := TruncateToolOutput(lines, ToolRunCommand, nil); !strings.Contains(got, "lines omitted") {
		t.Error("expected run_command output to be line-truncated")
	}
}
