package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	v1 "github.com/gantry-build/gantry/api/v1"
)

func TestClampSel(t *testing.T) {
	assert.Equal(t, 0, clampSel(0, 0))
	assert.Equal(t, 0, clampSel(3, 0))
	assert.Equal(t, 0, clampSel(-1, 5))
	assert.Equal(t, 2, clampSel(2, 5))
	assert.Equal(t, 4, clampSel(9, 5))
}

func TestUpdateBuildListClampsSelectionAndStats(t *testing.T) {
	m := New(Config{Project: "fixture"})
	m.selectedBuild = 10

	next, _ := m.Update(buildListMsg{
		{Status: v1.BuildSucceeded, DurationMS: 1000, Configuration: "release"},
	})
	m = next.(*Model)

	assert.Equal(t, 0, m.selectedBuild)
	assert.Equal(t, 1, m.stats.Total)
	assert.Equal(t, 1, m.stats.Succeeded)
}

func TestHandleKeySwitchesTabs(t *testing.T) {
	m := New(Config{Project: "fixture"})

	m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	assert.Equal(t, TabAgents, m.tab)

	m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'b'}})
	assert.Equal(t, TabBuilds, m.tab)

	m.handleKey(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, TabAgents, m.tab)
}

func TestHandleKeyOpensDetailOnlyWithRecords(t *testing.T) {
	m := New(Config{Project: "fixture"})

	m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.showDetail)

	m.builds = []v1.BuildRecord{{ID: "one", Status: v1.BuildSucceeded}}
	m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.showDetail)

	m.handleKey(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.showDetail)
}
