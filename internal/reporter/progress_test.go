package reporter

import (
	"testing"
	"time"

	"github.com/ppiankov/dailyforge/internal/agent"
)

func TestProgress_Observe(t *testing.T) {
	p := NewProgress(time.Now())

	p.Observe(agent.Event{Type: agent.EventToolsListed, Count: 2})
	p.Observe(agent.Event{Type: agent.EventTurnStarted, Turn: 1})
	p.Observe(agent.Event{Type: agent.EventToolCalled, Turn: 1, Tool: "codex"})

	s := p.Snapshot()
	if s.Tools != 2 || s.Turn != 1 || s.ActiveTool != "codex" {
		t.Errorf("unexpected snapshot: %+v", s)
	}

	p.Observe(agent.Event{Type: agent.EventToolCompleted, Tool: "codex", IsError: true, Duration: 3 * time.Second})
	p.Observe(agent.Event{Type: agent.EventTurnStarted, Turn: 2})
	p.Observe(agent.Event{Type: agent.EventRunCompleted, Turn: 2})

	s = p.Snapshot()
	if s.ToolCalls != 1 || s.ToolErrors != 1 {
		t.Errorf("calls=%d errors=%d", s.ToolCalls, s.ToolErrors)
	}
	if s.ActiveTool != "" {
		t.Errorf("active tool should clear, got %q", s.ActiveTool)
	}
	if !s.Done || s.Turn != 2 {
		t.Errorf("unexpected final snapshot: %+v", s)
	}
}

func TestProgress_Artifacts(t *testing.T) {
	p := NewProgress(time.Now())
	p.AddArtifact("report.md")
	p.AddArtifact("report.md")
	p.AddArtifact("notes.md")

	s := p.Snapshot()
	if len(s.Artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %v", s.Artifacts)
	}
	if s.LastEvent != "created notes.md" {
		t.Errorf("last event: got %q", s.LastEvent)
	}

	// snapshot is a copy
	s.Artifacts[0] = "changed"
	if p.Snapshot().Artifacts[0] != "report.md" {
		t.Error("snapshot shares its slice with the tracker")
	}
}
