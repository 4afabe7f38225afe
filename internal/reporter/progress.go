package reporter

import (
	"sync"
	"time"

	"github.com/ppiankov/dailyforge/internal/agent"
)

// Snapshot is a point-in-time view of a running automation.
type Snapshot struct {
	StartedAt  time.Time
	Tools      int
	Turn       int
	ToolCalls  int
	ToolErrors int
	ActiveTool string // tool currently executing, empty between calls
	LastEvent  string
	Artifacts  []string
	Done       bool
}

// Progress collects agent events and artifact notifications so the live
// displays can poll a consistent snapshot.
type Progress struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewProgress creates a tracker for a run started at startedAt.
func NewProgress(startedAt time.Time) *Progress {
	return &Progress{snap: Snapshot{StartedAt: startedAt, LastEvent: "starting"}}
}

// Observe records an agent event. It is safe to pass as an agent observer.
func (p *Progress) Observe(ev agent.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Type {
	case agent.EventToolsListed:
		p.snap.Tools = ev.Count
		p.snap.LastEvent = "tools listed"
	case agent.EventTurnStarted:
		p.snap.Turn = ev.Turn
		p.snap.LastEvent = "waiting for model"
	case agent.EventToolCalled:
		p.snap.ActiveTool = ev.Tool
		p.snap.LastEvent = "calling " + ev.Tool
	case agent.EventToolCompleted:
		p.snap.ToolCalls++
		p.snap.ActiveTool = ""
		if ev.IsError {
			p.snap.ToolErrors++
			p.snap.LastEvent = ev.Tool + " failed after " + ev.Duration.Truncate(time.Second).String()
		} else {
			p.snap.LastEvent = ev.Tool + " finished in " + ev.Duration.Truncate(time.Second).String()
		}
	case agent.EventRunCompleted:
		p.snap.Done = true
		p.snap.LastEvent = "final answer received"
	}
}

// AddArtifact records a file that appeared in the output directory.
func (p *Progress) AddArtifact(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range p.snap.Artifacts {
		if a == name {
			return
		}
	}
	p.snap.Artifacts = append(p.snap.Artifacts, name)
	p.snap.LastEvent = "created " + name
}

// MarkDone flags the run as finished, successfully or not.
func (p *Progress) MarkDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Done = true
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.snap
	s.Artifacts = append([]string(nil), p.snap.Artifacts...)
	return s
}
