// Package tui defines the Bubble Tea model for Gantry's interactive dashboard.
package tui

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/internal/core/config"
	"github.com/gantry-build/gantry/internal/core/logger"
	"github.com/gantry-build/gantry/internal/core/state"
	"github.com/gantry-build/gantry/internal/metrics"
	"github.com/gantry-build/gantry/internal/preflight"
	"github.com/gantry-build/gantry/internal/tui/components"
)

// historyWindow bounds how many build records the dashboard loads per refresh.
const historyWindow = 200

// probeTimeout bounds the per-agent reachability probe on each tick.
const probeTimeout = time.Second

// Config carries dependencies into the TUI app.
type Config struct {
	Project string
	State   *state.DB
	Log     *logger.Logger
	Gantry  *config.Config
}

// ActiveTab identifies which main tab has focus.
type ActiveTab int

const (
	TabBuilds ActiveTab = iota
	TabAgents
)

// Model is the root Bubble Tea model (Elm architecture).
type Model struct {
	cfg Config

	// Dimensions
	width  int
	height int

	// Tabs
	tab    ActiveTab
	builds []v1.BuildRecord
	agents []v1.AgentInfo
	stats  metrics.Stats

	// Detail view over the selected build record
	detail     viewport.Model
	showDetail bool

	// Sub-components
	header components.Header
	footer components.Footer
	modal  *components.Modal

	// Selection per tab
	selectedBuild int
	selectedAgent int

	// Error state
	lastError error

	// Theme
	styles Styles
}

// tickMsg is emitted by the refresh ticker.
type tickMsg time.Time

// buildListMsg carries a refreshed build history window.
type buildListMsg []v1.BuildRecord

// agentListMsg carries probed agent records.
type agentListMsg []v1.AgentInfo

// errMsg carries an error to display in the status bar.
type errMsg error

// New constructs a new TUI Model.
func New(cfg Config) *Model {
	styles := newStyles()
	dv := viewport.New(0, 0)
	dv.Style = styles.Detail

	return &Model{
		cfg:    cfg,
		detail: dv,
		styles: styles,
		header: components.NewHeader(cfg.Project),
		footer: components.NewFooter(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Init
// ─────────────────────────────────────────────────────────────────────────────

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.tickCmd(),
		m.loadBuildsCmd(),
		m.loadAgentsCmd(),
	)
}

// ─────────────────────────────────────────────────────────────────────────────
// Update
// ─────────────────────────────────────────────────────────────────────────────

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.detail.Width = m.width - 4
		m.detail.Height = m.height - 8

	case tea.KeyMsg:
		// Modal intercepts key events when open
		if m.modal != nil {
			cmd, done := m.modal.HandleKey(msg)
			if done {
				m.modal = nil
			}
			return m, cmd
		}
		cmds = append(cmds, m.handleKey(msg))

	case tickMsg:
		cmds = append(cmds, m.tickCmd(), m.loadBuildsCmd(), m.loadAgentsCmd())

	case buildListMsg:
		m.builds = msg
		m.stats = metrics.Compute(msg)
		m.header.SetBuildCount(m.stats.Total)
		m.footer.SetStats(m.stats.Summary())
		m.selectedBuild = clampSel(m.selectedBuild, len(m.builds))

	case agentListMsg:
		m.agents = msg
		m.header.SetAgentCount(len(msg))
		m.selectedAgent = clampSel(m.selectedAgent, len(m.agents))

	case errMsg:
		m.lastError = msg
		m.footer.SetError(msg)
	}

	// Propagate to the detail viewport while it is open
	if m.showDetail {
		var dvCmd tea.Cmd
		m.detail, dvCmd = m.detail.Update(msg)
		cmds = append(cmds, dvCmd)
	}

	return m, tea.Batch(cmds...)
}

// handleKey processes keyboard input when no modal is open.
func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	kb := defaultKeymap()

	switch msg.String() {
	case kb.Quit:
		return tea.Quit

	case kb.Back:
		m.showDetail = false

	case kb.TabNext, kb.TabPrev:
		m.showDetail = false
		m.tab = (m.tab + 1) % 2

	case kb.Builds:
		m.showDetail = false
		m.tab = TabBuilds

	case kb.Agents:
		m.showDetail = false
		m.tab = TabAgents

	case kb.NavDown, "j":
		switch m.tab {
		case TabBuilds:
			if m.selectedBuild < len(m.builds)-1 {
				m.selectedBuild++
			}
		case TabAgents:
			if m.selectedAgent < len(m.agents)-1 {
				m.selectedAgent++
			}
		}

	case kb.NavUp, "k":
		switch m.tab {
		case TabBuilds:
			if m.selectedBuild > 0 {
				m.selectedBuild--
			}
		case TabAgents:
			if m.selectedAgent > 0 {
				m.selectedAgent--
			}
		}

	case kb.Select:
		if m.tab == TabBuilds && m.selectedBuild < len(m.builds) {
			m.detail.SetContent(components.BuildDetail(m.builds[m.selectedBuild]))
			m.detail.GotoTop()
			m.showDetail = true
		}

	case kb.Refresh:
		return tea.Batch(m.loadBuildsCmd(), m.loadAgentsCmd())

	case kb.Help:
		m.modal = components.NewHelpModal(HelpText(), m.styles.Modal)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// View
// ─────────────────────────────────────────────────────────────────────────────

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := m.header.View(m.width)
	tabs := m.renderTabs()
	mainPanel := m.renderMain()
	footer := m.footer.View(m.width)

	view := lipgloss.JoinVertical(lipgloss.Left, header, tabs, mainPanel, footer)

	if m.modal != nil {
		view = m.modal.Overlay(view, m.width, m.height)
	}

	return view
}

func (m *Model) renderTabs() string {
	labels := []string{"BUILDS", "AGENTS"}
	out := ""
	for i, label := range labels {
		if ActiveTab(i) == m.tab {
			out += m.styles.TabActive.Render(label)
		} else {
			out += m.styles.Tab.Render(label)
		}
	}
	return out
}

func (m *Model) renderMain() string {
	if m.showDetail {
		title := m.styles.PanelTitle.Render("BUILD DETAIL")
		return lipgloss.JoinVertical(lipgloss.Left, title, m.detail.View())
	}

	switch m.tab {
	case TabBuilds:
		return components.RenderBuildsTable(m.builds, m.selectedBuild, m.width, m.height-5)
	case TabAgents:
		return components.RenderAgentsTable(m.agents, m.selectedAgent, m.width, m.height-5)
	}
	return ""
}

// ─────────────────────────────────────────────────────────────────────────────
// Commands (async data fetchers)
// ─────────────────────────────────────────────────────────────────────────────

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) loadBuildsCmd() tea.Cmd {
	return func() tea.Msg {
		records, err := m.cfg.State.ListBuilds("", historyWindow)
		if err != nil {
			return errMsg(err)
		}
		return buildListMsg(records)
	}
}

// loadAgentsCmd merges config-declared and registered agents, probes each
// for reachability, and returns the sorted list.
func (m *Model) loadAgentsCmd() tea.Cmd {
	return func() tea.Msg {
		registered, err := m.cfg.State.ListAgents()
		if err != nil {
			return errMsg(err)
		}

		byName := make(map[string]v1.AgentInfo, len(registered))
		for _, info := range registered {
			byName[info.Spec.Name] = info
		}
		for _, spec := range m.cfg.Gantry.Agents {
			if _, ok := byName[spec.Name]; !ok {
				byName[spec.Name] = v1.AgentInfo{Spec: spec, Status: v1.AgentUnknown}
			}
		}

		agents := make([]v1.AgentInfo, 0, len(byName))
		for _, info := range byName {
			agents = append(agents, info)
		}
		sort.Slice(agents, func(i, j int) bool {
			return agents[i].Spec.Name < agents[j].Spec.Name
		})

		var wg sync.WaitGroup
		for i := range agents {
			wg.Add(1)
			go func(info *v1.AgentInfo) {
				defer wg.Done()
				info.Status = preflight.ProbeAgent(context.Background(), info.Spec, probeTimeout)
				if info.Status == v1.AgentReady {
					info.LastSeen = time.Now().UTC()
				}
			}(&agents[i])
		}
		wg.Wait()

		return agentListMsg(agents)
	}
}

// clampSel keeps a selection index inside the list bounds.
func clampSel(sel, n int) int {
	if n == 0 || sel < 0 {
		return 0
	}
	if sel >= n {
		return n - 1
	}
	return sel
}
