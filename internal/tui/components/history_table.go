// Package components: build history table, agents table, and modal rendering.
package components

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	v1 "github.com/gantry-build/gantry/api/v1"
)

// ─────────────────────────────────────────────────────────────────────────────
// Build history table
// ─────────────────────────────────────────────────────────────────────────────

// RenderBuildsTable renders the build history table, newest first.
func RenderBuildsTable(builds []v1.BuildRecord, selected int, width, height int) string {
	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#51606D")).Bold(true).Padding(0, 1)
	rowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#DCE3E8")).Padding(0, 1)
	selStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("#1B232B")).
		Foreground(lipgloss.Color("#F2B950")).Bold(true).Padding(0, 1)

	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#5FA8D3")).Bold(true).
		Padding(0, 1).
		Render("BUILDS")

	hdr := headerStyle.Render(
		fmt.Sprintf("%-12s %-24s %-10s %-10s %-9s %s",
			"TIME", "PROJECT", "CONFIG", "RUNNER", "DURATION", "STATUS"),
	)

	rows := ""
	for i, rec := range builds {
		line := fmt.Sprintf("%-12s %-24s %-10s %-10s %-9s %s",
			rec.StartedAt.Local().Format("01-02 15:04"),
			truncate(filepath.Base(rec.ProjectFile), 22),
			truncate(rec.Configuration, 8),
			truncate(rec.Runner, 8),
			fmtDuration(rec.DurationMS),
			buildBadge(rec.Status),
		)

		if i == selected {
			rows += selStyle.Render("▶ "+line) + "\n"
		} else {
			rows += rowStyle.Render("  "+line) + "\n"
		}
	}

	if len(builds) == 0 {
		rows = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#51606D")).
			Padding(2, 2).
			Render("No builds recorded. Run 'gantry build' to get started.")
	}

	return lipgloss.NewStyle().Width(width).Height(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, hdr, rows))
}

// ─────────────────────────────────────────────────────────────────────────────
// Agents table
// ─────────────────────────────────────────────────────────────────────────────

// RenderAgentsTable renders the registered build agents with probe results.
func RenderAgentsTable(agents []v1.AgentInfo, selected int, width, height int) string {
	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#51606D")).Bold(true).Padding(0, 1)
	rowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#DCE3E8")).Padding(0, 1)
	selStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("#1B232B")).
		Foreground(lipgloss.Color("#F2B950")).Bold(true).Padding(0, 1)

	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#5FA8D3")).Bold(true).
		Padding(0, 1).
		Render("AGENTS")

	hdr := headerStyle.Render(
		fmt.Sprintf("%-16s %-26s %-10s %-14s %s",
			"NAME", "ADDRESS", "USER", "STATUS", "LAST SEEN"),
	)

	rows := ""
	for i, agent := range agents {
		addr := fmt.Sprintf("%s:%d", agent.Spec.Host, agent.Spec.Port)
		line := fmt.Sprintf("%-16s %-26s %-10s %-14s %s",
			truncate(agent.Spec.Name, 14),
			truncate(addr, 24),
			truncate(agent.Spec.User, 8),
			agentBadge(agent.Status),
			fmtSince(agent.LastSeen),
		)

		if i == selected {
			rows += selStyle.Render("▶ "+line) + "\n"
		} else {
			rows += rowStyle.Render("  "+line) + "\n"
		}
	}

	if len(agents) == 0 {
		rows = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#51606D")).
			Padding(2, 2).
			Render("No agents registered. Run 'gantry agents add' to register one.")
	}

	return lipgloss.NewStyle().Width(width).Height(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, hdr, rows))
}

// ─────────────────────────────────────────────────────────────────────────────
// Build detail
// ─────────────────────────────────────────────────────────────────────────────

// BuildDetail renders the full field listing of one record for the
// detail viewport.
func BuildDetail(rec v1.BuildRecord) string {
	label := lipgloss.NewStyle().Foreground(lipgloss.Color("#51606D")).Width(16)
	value := lipgloss.NewStyle().Foreground(lipgloss.Color("#DCE3E8"))

	row := func(name, val string) string {
		return label.Render(name) + value.Render(val) + "\n"
	}

	out := row("ID", rec.ID)
	out += row("Project", rec.ProjectFile)
	out += row("Configuration", rec.Configuration)
	out += row("Version", rec.Version)
	out += row("Runner", rec.Runner)
	out += row("Metadata files", fmt.Sprintf("%d", rec.MetadataFiles))
	out += row("Output dir", rec.OutputDir)
	out += row("Started", rec.StartedAt.Local().Format(time.RFC1123))
	out += row("Completed", rec.CompletedAt.Local().Format(time.RFC1123))
	out += row("Duration", fmtDuration(rec.DurationMS))
	out += row("Exit code", fmt.Sprintf("%d", rec.ExitCode))
	out += row("Status", buildBadge(rec.Status))

	if rec.Error != "" {
		out += "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("#E06060")).
			Render("Error: "+rec.Error) + "\n"
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Modal
// ─────────────────────────────────────────────────────────────────────────────

// Modal is a pop-over dialog.
type Modal struct {
	title string
	body  string
	style lipgloss.Style
}

// NewHelpModal creates the keyboard help modal.
func NewHelpModal(body string, style lipgloss.Style) *Modal {
	return &Modal{
		title: "Keyboard Shortcuts",
		body:  body,
		style: style,
	}
}

// HandleKey processes a key for the modal. Returns (cmd, done).
func (m *Modal) HandleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "esc", "q", "enter", "?":
		return nil, true
	}
	return nil, false
}

// Overlay renders the modal centred over the background content.
func (m *Modal) Overlay(bg string, width, height int) string {
	content := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F2B950")).Bold(true).
		Render(m.title) + "\n"
	content += m.body
	content += "\n  [Esc] Close"

	box := m.style.Render(content)
	boxLines := strings.Split(box, "\n")
	boxWidth := 0
	for _, l := range boxLines {
		if len(l) > boxWidth {
			boxWidth = len(l)
		}
	}
	boxHeight := len(boxLines)

	topPad := (height - boxHeight) / 2
	leftPad := (width - boxWidth) / 2
	if topPad < 0 {
		topPad = 0
	}
	if leftPad < 0 {
		leftPad = 0
	}

	_ = bg // Rendered instead of the background, not composited over it
	padding := strings.Repeat("\n", topPad)
	indent := strings.Repeat(" ", leftPad)
	out := padding
	for _, l := range boxLines {
		out += indent + l + "\n"
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

func buildBadge(status v1.BuildStatus) string {
	switch status {
	case v1.BuildSucceeded:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#72BD77")).Render("● PASS")
	case v1.BuildFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#E06060")).Render("○ FAIL")
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#51606D")).Render("? UNK")
	}
}

func agentBadge(status v1.AgentStatus) string {
	switch status {
	case v1.AgentReady:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#72BD77")).Render("● READY")
	case v1.AgentUnreachable:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#E06060")).Render("○ UNREACHABLE")
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#51606D")).Render("? UNKNOWN")
	}
}

func fmtDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", ms)
	}
	return d.Round(100 * time.Millisecond).String()
}

func fmtSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	since := time.Since(t)
	switch {
	case since < time.Minute:
		return fmt.Sprintf("%ds ago", int(since.Seconds()))
	case since < time.Hour:
		return fmt.Sprintf("%dm ago", int(since.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(since.Hours()))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
