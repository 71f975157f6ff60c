package runview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/JiLiZART/fast-staged/internal/report"
	"github.com/JiLiZART/fast-staged/internal/task"
)

// pollInterval matches the original's 30fps-ish refresh.
const pollInterval = 33 * time.Millisecond

// lingerDelay keeps the final frame on screen before the program quits
// itself.
const lingerDelay = 500 * time.Millisecond

// Source is the slice of the pool the view polls. *task.Pool satisfies it.
type Source interface {
	PullCompleted() (bool, error)
	IsComplete() bool
	Len() int
	DisplayLines() []task.DisplayLine
	AggregateStats() map[string]task.CommandStat
	TotalExecutionTime() time.Duration
}

type tickMsg time.Time
type lingerDoneMsg struct{}

// Model is the BubbleTea model for a live run.
type Model struct {
	src       Source
	fileCount int

	width  int
	height int
	ready  bool

	theme Theme
	view  viewport.Model

	startedAt time.Time
	frozenAt  time.Time
	finished  bool
	joinErrs  []string
}

// New creates a run view over src. fileCount is the number of staged files
// shown in the title.
func New(src Source, fileCount int) Model {
	return Model{
		src:       src,
		fileCount: fileCount,
		theme:     NewDefaultTheme(),
		startedAt: time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), tea.EnterAltScreen)
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.view.Width = msg.Width
		m.view.Height = m.listHeight()
		m.ready = true
		m.view.SetContent(m.renderList())

	case tickMsg:
		m.drain()
		m.view.SetContent(m.renderList())
		if m.src.IsComplete() {
			if !m.finished {
				m.finished = true
				m.frozenAt = time.Now()
			}
			return m, tea.Tick(lingerDelay, func(time.Time) tea.Msg { return lingerDoneMsg{} })
		}
		return m, tick()

	case lingerDoneMsg:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

// drain joins every execution unit that has finished since the last tick.
func (m *Model) drain() {
	for {
		joined, err := m.src.PullCompleted()
		if err != nil {
			m.joinErrs = append(m.joinErrs, err.Error())
		}
		if !joined {
			return
		}
	}
}

// Elapsed is wall time since the run began, frozen at the moment the pool
// completed.
func (m Model) Elapsed() time.Duration {
	if m.finished {
		return m.frozenAt.Sub(m.startedAt)
	}
	return time.Since(m.startedAt)
}

func (m Model) View() string {
	if !m.ready {
		return "Starting tasks..."
	}

	title := m.theme.Title.Render(
		fmt.Sprintf("Running %d tasks for %d file(s)...", m.src.Len(), m.fileCount))

	parts := []string{title, m.view.View(), m.renderFooter()}
	if stats := m.renderStats(); stats != "" {
		parts = append(parts, stats)
	}
	for _, joinErr := range m.joinErrs {
		parts = append(parts, m.theme.Warning.Render(" ⚠ "+joinErr))
	}
	parts = append(parts, m.theme.Dim.Render(" [q] Quit"))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderList() string {
	lines := m.src.DisplayLines()
	rendered := make([]string, 0, len(lines))
	for _, line := range lines {
		rendered = append(rendered, m.theme.styleFor(line.Status).Render(line.Text))
	}
	return strings.Join(rendered, "\n")
}

func (m Model) renderFooter() string {
	return m.theme.Footer.Render(fmt.Sprintf("Total execution time: %dms | Elapsed: %dms",
		m.src.TotalExecutionTime().Milliseconds(), m.Elapsed().Milliseconds()))
}

func (m Model) renderStats() string {
	lines := report.StatLines(m.src.AggregateStats())
	if len(lines) == 0 {
		return ""
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, m.theme.Header.Render("Command Statistics"))
	for _, line := range lines {
		out = append(out, m.theme.Dim.Render("  "+line))
	}
	return strings.Join(out, "\n")
}

// listHeight carves the viewport out of the window, leaving room for the
// title, footer, stats, and help lines.
func (m Model) listHeight() int {
	reserved := 4 + len(report.StatLines(m.src.AggregateStats()))
	h := m.height - reserved
	if h < 1 {
		h = 1
	}
	return h
}
