package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// RuleWidth is the width of the banner rule.
const RuleWidth = 60

// TimeLayout formats wall-clock times in console lines and error logs.
const TimeLayout = "2006-01-02 15:04:05.000000"

// TextReporter writes human-readable output to a writer.
type TextReporter struct {
	w     io.Writer
	color bool
}

// NewTextReporter creates a text reporter.
// If w is nil, defaults to os.Stdout.
// color enables ANSI codes.
func NewTextReporter(w io.Writer, color bool) *TextReporter {
	if w == nil {
		w = os.Stdout
	}
	return &TextReporter{w: w, color: color}
}

// PrintRule writes the banner separator.
func (r *TextReporter) PrintRule() {
	fmt.Fprintln(r.w, strings.Repeat("=", RuleWidth))
}

// PrintHeader writes the opening banner.
func (r *TextReporter) PrintHeader() {
	r.PrintRule()
	fmt.Fprintf(r.w, "%sDaily Codex Automation%s\n", r.c(colorCyan), r.c(colorReset))
	r.PrintRule()
}

// PrintStarting writes the start line.
func (r *TextReporter) PrintStarting(now time.Time) {
	fmt.Fprintf(r.w, "Starting daily automation at %s\n", now.Format(TimeLayout))
}

// PrintServerStarted confirms the tool server answered the handshake.
func (r *TextReporter) PrintServerStarted(name string) {
	if name == "" {
		name = "Codex MCP"
	}
	fmt.Fprintf(r.w, "%s✓%s %s server started\n", r.c(colorGreen), r.c(colorReset), name)
}

// PrintRunning announces the agent run.
func (r *TextReporter) PrintRunning() {
	fmt.Fprintln(r.w, "⚙️  Running daily automation tasks...")
}

// PrintArtifact reports a file the agent created in the output directory.
func (r *TextReporter) PrintArtifact(path string) {
	fmt.Fprintf(r.w, "  %s+ %s%s\n", r.c(colorDim), path, r.c(colorReset))
}

// PrintCompleted writes the completion line and the agent's final output.
func (r *TextReporter) PrintCompleted(finalOutput string) {
	fmt.Fprintf(r.w, "%s✓%s Daily automation completed\n", r.c(colorGreen), r.c(colorReset))
	fmt.Fprintf(r.w, "\nFinal Output:\n%s\n", finalOutput)
}

// PrintSaved reports where the summary was written.
func (r *TextReporter) PrintSaved(path string) {
	fmt.Fprintf(r.w, "\n%s✓%s Summary saved to %s\n", r.c(colorGreen), r.c(colorReset), path)
}

// PrintStats writes a one-line run summary.
func (r *TextReporter) PrintStats(s Snapshot, duration time.Duration) {
	parts := []string{
		fmt.Sprintf("turns: %d", s.Turn),
		fmt.Sprintf("tool calls: %d", s.ToolCalls),
	}
	if s.ToolErrors > 0 {
		parts = append(parts, fmt.Sprintf("%stool errors: %d%s", r.c(colorYellow), s.ToolErrors, r.c(colorReset)))
	}
	if len(s.Artifacts) > 0 {
		parts = append(parts, fmt.Sprintf("files: %d", len(s.Artifacts)))
	}
	parts = append(parts, fmt.Sprintf("duration: %s", duration.Truncate(time.Second)))
	fmt.Fprintf(r.w, "%s%s%s\n", r.c(colorDim), strings.Join(parts, "  "), r.c(colorReset))
}

// PrintError writes a failure line. The reporter's writer is expected to be
// stderr here.
func (r *TextReporter) PrintError(msg string) {
	fmt.Fprintf(r.w, "%s%s%s\n", r.c(colorRed), msg, r.c(colorReset))
}

func (r *TextReporter) c(code string) string {
	if !r.color {
		return ""
	}
	return code
}
