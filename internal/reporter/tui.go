package reporter

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI styles
var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	runStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")) // cyan
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	pauseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

type tickMsg time.Time

// TUIModel is the Bubbletea model for the full-screen run display.
type TUIModel struct {
	title     string
	snapshot  func() Snapshot
	cancelRun func() // called on 'q' to cancel the run context
	now       func() time.Time

	snap         Snapshot
	scrollOffset int
	paused       bool
	frame        int
	width        int
	height       int
	done         bool
}

// NewTUIModel creates a new TUI model.
func NewTUIModel(title string, snapshot func() Snapshot, cancelRun func()) TUIModel {
	return TUIModel{
		title:     title,
		snapshot:  snapshot,
		cancelRun: cancelRun,
		now:       time.Now,
		snap:      snapshot(),
	}
}

// Init implements tea.Model.
func (m TUIModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancelRun != nil {
				m.cancelRun()
			}
			m.done = true
			return m, tea.Quit

		case "p", " ":
			m.paused = !m.paused

		case "j", "down":
			m.scrollDown(1)

		case "k", "up":
			m.scrollUp(1)

		case "g", "home":
			m.scrollOffset = 0

		case "G", "end":
			m.scrollOffset = m.maxScroll()
		}

	case tickMsg:
		if !m.paused {
			m.snap = m.snapshot()
		}
		m.frame++
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func (m *TUIModel) scrollDown(n int) {
	m.scrollOffset += n
	if max := m.maxScroll(); m.scrollOffset > max {
		m.scrollOffset = max
	}
}

func (m *TUIModel) scrollUp(n int) {
	m.scrollOffset -= n
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

func (m TUIModel) visibleArtifacts() int {
	// header(1) + status(1) + progress(1) + last event(1) + blank(1) + files label(1) + help(1)
	avail := m.height - 7
	if avail < 3 {
		return 3
	}
	return avail
}

func (m TUIModel) maxScroll() int {
	total := len(m.snap.Artifacts)
	vis := m.visibleArtifacts()
	if total <= vis {
		return 0
	}
	return total - vis
}

// View implements tea.Model.
func (m TUIModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	s := m.snap

	header := m.title
	if m.paused {
		header += "  " + pauseStyle.Render("⏸ PAUSED")
	}
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	elapsed := m.now().Sub(s.StartedAt).Truncate(time.Second)
	if s.Done {
		b.WriteString(doneStyle.Render(fmt.Sprintf("  ✓ %-10s %s", "done", elapsed)))
	} else {
		spinner := spinnerFrames[m.frame%len(spinnerFrames)]
		b.WriteString(runStyle.Render(fmt.Sprintf("  %s %-10s %s", spinner, "running", elapsed)))
	}
	b.WriteString("\n")

	b.WriteString(m.progressLine(s))
	b.WriteString("\n")

	last := s.LastEvent
	if s.ActiveTool != "" {
		last = "calling " + s.ActiveTool
	}
	if m.width > 4 && len(last) > m.width-4 {
		last = last[:m.width-4]
	}
	b.WriteString(dimStyle.Render("  " + last))
	b.WriteString("\n\n")

	used := 5
	if len(s.Artifacts) > 0 {
		b.WriteString(headerStyle.Render(fmt.Sprintf("  files [%d]", len(s.Artifacts))))
		b.WriteString("\n")
		used++

		vis := m.visibleArtifacts()
		start := m.scrollOffset
		if start > len(s.Artifacts) {
			start = len(s.Artifacts)
		}
		end := start + vis
		if end > len(s.Artifacts) {
			end = len(s.Artifacts)
		}
		if start > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  ↑ %d more above", start)))
			b.WriteString("\n")
			used++
		}
		for _, name := range s.Artifacts[start:end] {
			b.WriteString(doneStyle.Render("  + " + name))
			b.WriteString("\n")
			used++
		}
		if end < len(s.Artifacts) {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  ↓ %d more below", len(s.Artifacts)-end)))
			b.WriteString("\n")
			used++
		}
	}

	// pad to fill screen
	for i := used; i < m.height-1; i++ {
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("  ↑↓/jk: scroll  g/G: top/bottom  p: pause  q: cancel run"))

	return b.String()
}

func (m TUIModel) progressLine(s Snapshot) string {
	parts := []string{
		runStyle.Render(fmt.Sprintf("turn %d", s.Turn)),
		doneStyle.Render(fmt.Sprintf("%d tool calls", s.ToolCalls)),
	}
	if s.ToolErrors > 0 {
		parts = append(parts, failedStyle.Render(fmt.Sprintf("%d failed", s.ToolErrors)))
	}
	if s.Tools > 0 {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("%d tools available", s.Tools)))
	}
	return fmt.Sprintf("  %s", strings.Join(parts, "  "))
}
