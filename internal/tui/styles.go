// Package tui: Lipgloss style constants for the "Gantry Steel" theme.
package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds all theme-aware Lipgloss styles.
type Styles struct {
	// Colors
	Background lipgloss.Color
	Surface    lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Danger     lipgloss.Color
	Warning    lipgloss.Color
	Success    lipgloss.Color
	Muted      lipgloss.Color
	Text       lipgloss.Color

	// Component styles
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	Tab         lipgloss.Style
	TabActive   lipgloss.Style
	PanelTitle  lipgloss.Style
	TableHeader lipgloss.Style
	TableRow    lipgloss.Style
	TableRowSel lipgloss.Style
	Detail      lipgloss.Style
	Footer      lipgloss.Style
	FooterKey   lipgloss.Style
	Modal       lipgloss.Style
	ModalTitle  lipgloss.Style
	StatusOK    lipgloss.Style
	StatusWarn  lipgloss.Style
	StatusErr   lipgloss.Style
	Border      lipgloss.Style
}

// newStyles returns the "Gantry Steel" theme styles.
func newStyles() Styles {
	bg := lipgloss.Color("#10151A")
	surface := lipgloss.Color("#1B232B")
	primary := lipgloss.Color("#5FA8D3")
	accent := lipgloss.Color("#F2B950")
	danger := lipgloss.Color("#E06060")
	warning := lipgloss.Color("#D98E32")
	success := lipgloss.Color("#72BD77")
	muted := lipgloss.Color("#51606D")
	text := lipgloss.Color("#DCE3E8")

	border := lipgloss.Border{
		Top: "─", Bottom: "─", Left: "│", Right: "│",
		TopLeft: "┌", TopRight: "┐", BottomLeft: "└", BottomRight: "┘",
	}

	return Styles{
		Background: bg, Surface: surface, Primary: primary,
		Accent: accent, Danger: danger, Warning: warning,
		Success: success, Muted: muted, Text: text,

		Header: lipgloss.NewStyle().
			Background(primary).Foreground(bg).
			Bold(true).Padding(0, 1),

		HeaderTitle: lipgloss.NewStyle().
			Foreground(accent).Bold(true),

		Tab: lipgloss.NewStyle().
			Foreground(muted).Padding(0, 2),

		TabActive: lipgloss.NewStyle().
			Foreground(accent).Bold(true).Padding(0, 2).
			BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).
			BorderForeground(accent),

		PanelTitle: lipgloss.NewStyle().
			Foreground(primary).Bold(true).
			BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).
			BorderForeground(muted).Padding(0, 1),

		TableHeader: lipgloss.NewStyle().
			Foreground(muted).Bold(true).Padding(0, 1),

		TableRow: lipgloss.NewStyle().
			Foreground(text).Padding(0, 1),

		TableRowSel: lipgloss.NewStyle().
			Background(surface).Foreground(accent).Bold(true).Padding(0, 1),

		Detail: lipgloss.NewStyle().
			Background(bg).Foreground(text).
			Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Background(surface).Foreground(muted).
			Padding(0, 1),

		FooterKey: lipgloss.NewStyle().
			Foreground(primary).Bold(true),

		Modal: lipgloss.NewStyle().
			Background(surface).Foreground(text).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(1, 2),

		ModalTitle: lipgloss.NewStyle().
			Foreground(accent).Bold(true),

		StatusOK:   lipgloss.NewStyle().Foreground(success),
		StatusWarn: lipgloss.NewStyle().Foreground(warning),
		StatusErr:  lipgloss.NewStyle().Foreground(danger),

		Border: lipgloss.NewStyle().BorderStyle(border).BorderForeground(muted),
	}
}
