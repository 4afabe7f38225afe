package reporter

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestTextReporter_PrintHeader(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf, false)
	r.PrintHeader()

	rule := strings.Repeat("=", 60)
	want := rule + "\nDaily Codex Automation\n" + rule + "\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestTextReporter_RunLines(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf, false)

	now := time.Date(2026, 10, 17, 7, 0, 0, 123456000, time.Local)
	r.PrintStarting(now)
	r.PrintServerStarted("")
	r.PrintRunning()
	r.PrintCompleted("all good")
	r.PrintSaved("daily-automation-output/summary-20261017_070000.txt")

	want := "Starting daily automation at 2026-10-17 07:00:00.123456\n" +
		"✓ Codex MCP server started\n" +
		"⚙️  Running daily automation tasks...\n" +
		"✓ Daily automation completed\n" +
		"\nFinal Output:\nall good\n" +
		"\n✓ Summary saved to daily-automation-output/summary-20261017_070000.txt\n"
	if buf.String() != want {
		t.Errorf("got:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestTextReporter_NoColorWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf, false)
	r.PrintError("Error in daily automation: boom")
	r.PrintArtifact("report.md")
	r.PrintStats(Snapshot{Turn: 2, ToolCalls: 3, ToolErrors: 1, Artifacts: []string{"a"}}, 90*time.Second)

	if strings.Contains(buf.String(), "\033[") {
		t.Errorf("unexpected ANSI codes: %q", buf.String())
	}
	if !strings.HasPrefix(buf.String(), "Error in daily automation: boom\n") {
		t.Errorf("error line: %q", buf.String())
	}
	for _, want := range []string{"turns: 2", "tool calls: 3", "tool errors: 1", "files: 1", "duration: 1m30s"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %q in %q", want, buf.String())
		}
	}
}

func TestTextReporter_Color(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf, true)
	r.PrintServerStarted("Codex CLI")

	if !strings.Contains(buf.String(), colorGreen) {
		t.Errorf("expected green check mark, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "Codex CLI server started") {
		t.Errorf("got %q", buf.String())
	}
}
