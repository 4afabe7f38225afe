package task

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DefaultInput is the user message that starts the agent.
const DefaultInput = "Execute daily automation and generate comprehensive report"

// StampLayout formats the per-run timestamp used in every output file name.
const StampLayout = "20060102_150405"

// dailyTasks is the fixed work list given to the agent.
var dailyTasks = []string{
	"Analyze the repository structure and create a summary",
	"Generate a daily status report",
	"List any TODOs or issues found",
	"Create recommendations for improvements",
}

// PromptParams are the values interpolated into the instructions.
type PromptParams struct {
	Now       time.Time
	Stamp     string
	OutputDir string
	ToolName  string
	Policy    Policy
}

// ReportPath is where the agent is told to save its report.
func ReportPath(outputDir, stamp string) string {
	return filepath.Join(outputDir, "report-"+stamp+".md")
}

// BuildInstructions assembles the agent instructions for one run.
func BuildInstructions(p PromptParams) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a daily automation agent running on %s.\n\n", p.Now.Format("2006-01-02"))

	b.WriteString("Execute these tasks:\n")
	for i, t := range dailyTasks {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}

	report := ReportPath(p.OutputDir, p.Stamp)
	if !filepath.IsAbs(report) && !strings.HasPrefix(report, ".") {
		report = "." + string(filepath.Separator) + report
	}
	fmt.Fprintf(&b, "\nSave all outputs to %s\n", filepath.ToSlash(report))

	tool := p.ToolName
	if tool == "" {
		tool = "Codex MCP"
	}
	fmt.Fprintf(&b, "\nAlways call %s with %s.\n", tool, p.Policy)

	return b.String()
}
