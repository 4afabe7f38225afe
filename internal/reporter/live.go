package reporter

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// LiveReporter redraws a short status block while the agent runs.
type LiveReporter struct {
	w         io.Writer
	color     bool
	snapshot  func() Snapshot
	now       func() time.Time
	stop      chan struct{}
	done      chan struct{}
	lastLines int
	frame     int
	mu        sync.Mutex
}

// NewLiveReporter creates a live reporter that polls progress via snapshot.
func NewLiveReporter(w io.Writer, color bool, snapshot func() Snapshot) *LiveReporter {
	return &LiveReporter{
		w:        w,
		color:    color,
		snapshot: snapshot,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the periodic refresh loop.
func (lr *LiveReporter) Start() {
	go lr.loop()
}

// Stop halts the refresh loop and clears the live display.
func (lr *LiveReporter) Stop() {
	close(lr.stop)
	<-lr.done
	lr.clearLastFrame()
}

func (lr *LiveReporter) loop() {
	defer close(lr.done)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-lr.stop:
			return
		case <-ticker.C:
			lr.render()
		}
	}
}

func (lr *LiveReporter) clearLastFrame() {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if lr.lastLines > 0 {
		fmt.Fprintf(lr.w, "\033[%dA", lr.lastLines)
		for i := 0; i < lr.lastLines; i++ {
			fmt.Fprintf(lr.w, "\033[K\n")
		}
		fmt.Fprintf(lr.w, "\033[%dA", lr.lastLines)
	}
	lr.lastLines = 0
}

func (lr *LiveReporter) render() {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	lines := lr.buildLines(lr.snapshot())

	// move cursor up to overwrite previous frame
	if lr.lastLines > 0 {
		fmt.Fprintf(lr.w, "\033[%dA", lr.lastLines)
	}

	for _, line := range lines {
		fmt.Fprintf(lr.w, "\033[K%s\n", line)
	}

	lr.lastLines = len(lines)
	lr.frame++
}

// Render produces the display lines for a given snapshot.
// Exported for testing.
func (lr *LiveReporter) Render(s Snapshot) []string {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.buildLines(s)
}

func (lr *LiveReporter) buildLines(s Snapshot) []string {
	spinner := spinnerFrames[lr.frame%len(spinnerFrames)]
	elapsed := lr.now().Sub(s.StartedAt).Truncate(time.Second)

	status := fmt.Sprintf("  %s%s %-8s %s%s", lr.c(colorCyan), spinner, "running", elapsed, lr.c(colorReset))
	if s.Done {
		status = fmt.Sprintf("  %s✓ %-8s %s%s", lr.c(colorGreen), "done", elapsed, lr.c(colorReset))
	}

	counts := []string{fmt.Sprintf("turn %d", s.Turn), fmt.Sprintf("%d tool calls", s.ToolCalls)}
	if s.ToolErrors > 0 {
		counts = append(counts, fmt.Sprintf("%s%d failed%s", lr.c(colorRed), s.ToolErrors, lr.c(colorReset)))
	}
	if len(s.Artifacts) > 0 {
		counts = append(counts, fmt.Sprintf("%d files", len(s.Artifacts)))
	}

	last := s.LastEvent
	if s.ActiveTool != "" {
		last = "calling " + s.ActiveTool
	}
	if len(last) > 100 {
		last = last[:100] + "..."
	}

	return []string{
		status,
		fmt.Sprintf("  progress: %s", strings.Join(counts, ", ")),
		fmt.Sprintf("  %s%s%s", lr.c(colorDim), last, lr.c(colorReset)),
	}
}

func (lr *LiveReporter) c(code string) string {
	if !lr.color {
		return ""
	}
	return code
}
