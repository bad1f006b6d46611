// Package style centralizes terminal styling for the drover CLI.
package style

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Shared styles for CLI output.
var (
	// Header styles table headers and section titles.
	Header = lipgloss.NewStyle().Bold(true)

	// Healthy marks agents that are fine.
	Healthy = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	// Warn marks degraded or recovering agents.
	Warn = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	// Bad marks failed agents and errors.
	Bad = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	// Muted styles secondary detail like timestamps and ids.
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Plain disables all styling. Set when stdout is not a terminal.
var Plain = false

func init() {
	if !term.IsTerminal(int(os.Stdout.Fd())) || termenv.EnvColorProfile() == termenv.Ascii {
		Plain = true
	}
}

// Apply renders text with the style unless Plain output is in effect.
func Apply(s lipgloss.Style, text string) string {
	if Plain {
		return text
	}
	return s.Render(text)
}

// TermWidth returns the terminal width, or a sane default when stdout
// is not a terminal.
func TermWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
