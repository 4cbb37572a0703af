package cli

import (
	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	ok      lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
	heading lipgloss.Style
}

func newStyles(colorize bool) styles {
	if !colorize {
		plain := lipgloss.NewStyle()
		return styles{ok: plain, fail: plain, warn: plain, muted: plain, heading: plain}
	}
	return styles{
		ok:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")), // green
		fail:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),  // red
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")),  // yellow
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("7")),  // gray
		heading: lipgloss.NewStyle().Bold(true),
	}
}
