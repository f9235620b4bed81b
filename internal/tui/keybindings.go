// Package tui: keyboard binding configuration.
package tui

// Keymap defines all keyboard shortcuts for the TUI.
type Keymap struct {
	Quit    string
	TabNext string
	TabPrev string
	NavUp   string
	NavDown string
	Select  string
	Back    string
	Builds  string
	Agents  string
	Refresh string
	Help    string
}

// defaultKeymap returns the default Gantry TUI key bindings.
func defaultKeymap() Keymap {
	return Keymap{
		Quit:    "q",
		TabNext: "tab",
		TabPrev: "shift+tab",
		NavUp:   "up",
		NavDown: "down",
		Select:  "enter",
		Back:    "esc",
		Builds:  "b",
		Agents:  "a",
		Refresh: "r",
		Help:    "?",
	}
}

// HelpText returns the keyboard shortcut reference displayed in the help modal.
func HelpText() string {
	return `
  NAVIGATION
  ──────────────────────────────────────
  Tab / Shift+Tab    Switch tab
  ↑↓  /  j k        Navigate list
  b / a              Builds / Agents tab

  ACTIONS
  ──────────────────────────────────────
  Enter              Open build detail
  Esc                Close detail
  r                  Refresh now

  MISC
  ──────────────────────────────────────
  ?                  Toggle this help
  q                  Quit
  Ctrl+C             Force quit
`
}
