// Package components: TUI sub-components for Gantry's dashboard.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// ─────────────────────────────────────────────────────────────────────────────
// Header component
// ─────────────────────────────────────────────────────────────────────────────

// Header renders the top status bar.
type Header struct {
	project    string
	buildCount int
	agentCount int
}

// NewHeader creates a Header for the named project.
func NewHeader(project string) Header {
	return Header{project: project}
}

func (h *Header) SetBuildCount(n int) { h.buildCount = n }
func (h *Header) SetAgentCount(n int) { h.agentCount = n }

// View renders the header bar. Accepts total terminal width.
func (h *Header) View(width int) string {
	left := fmt.Sprintf(" ⣿ GANTRY  %s ", h.project)
	right := fmt.Sprintf(" %d builds · %d agents ",
		h.buildCount, h.agentCount)
	gap := width - len(left) - len(right)
	if gap < 0 {
		gap = 0
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color("#5FA8D3")).
		Foreground(lipgloss.Color("#10151A")).
		Bold(true).
		Width(width).
		Render(left + spaces(gap) + right)
}

// ─────────────────────────────────────────────────────────────────────────────
// Footer component
// ─────────────────────────────────────────────────────────────────────────────

// Footer renders the bottom hint bar with the build stats digest.
type Footer struct {
	stats string
	err   error
}

// NewFooter creates a Footer.
func NewFooter() Footer { return Footer{} }

// SetStats sets the stats digest shown before the key hints.
func (f *Footer) SetStats(s string) { f.stats = s }

// SetError sets an error message to display.
func (f *Footer) SetError(err error) { f.err = err }

// View renders the footer.
func (f *Footer) View(width int) string {
	hints := []struct{ key, desc string }{
		{"tab", "switch"}, {"↑↓", "navigate"}, {"enter", "detail"},
		{"r", "refresh"}, {"?", "help"}, {"q", "quit"},
	}

	content := ""
	if f.stats != "" {
		content += lipgloss.NewStyle().Foreground(lipgloss.Color("#F2B950")).Render(f.stats + "  ")
	}
	for _, h := range hints {
		content += lipgloss.NewStyle().Foreground(lipgloss.Color("#5FA8D3")).Bold(true).Render(h.key)
		content += lipgloss.NewStyle().Foreground(lipgloss.Color("#51606D")).Render(" " + h.desc + "  ")
	}

	if f.err != nil {
		content = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06060")).
			Render("Error: " + f.err.Error())
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color("#1B232B")).
		Width(width).Padding(0, 1).
		Render(content)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func spaces(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += " "
	}
	return s
}
