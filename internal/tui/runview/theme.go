// Package runview implements the live run TUI: a scrolling task list
// refreshed while the pool executes.
package runview

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/JiLiZART/fast-staged/internal/task"
)

// Theme centralizes all styling for the run view.
type Theme struct {
	// Status colors
	StatusDone    lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusRunning lipgloss.Style
	StatusWaiting lipgloss.Style
	StatusTimeout lipgloss.Style

	// UI elements
	Title   lipgloss.Style
	Header  lipgloss.Style
	Footer  lipgloss.Style
	Warning lipgloss.Style
	Dim     lipgloss.Style
}

func NewDefaultTheme() Theme {
	return Theme{
		StatusDone:    lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		StatusFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		StatusRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		StatusWaiting: lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		StatusTimeout: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF00FF")),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#61AFEF")),
		Footer:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}

// styleFor maps a task status onto its display style.
func (t Theme) styleFor(status task.Status) lipgloss.Style {
	switch status {
	case task.StatusDone:
		return t.StatusDone
	case task.StatusFailed:
		return t.StatusFailed
	case task.StatusRunning:
		return t.StatusRunning
	case task.StatusTimeout:
		return t.StatusTimeout
	default:
		return t.StatusWaiting
	}
}
