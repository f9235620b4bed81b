// gantry ui — launch the interactive TUI dashboard.
package commands

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/gantry-build/gantry/internal/tui"
)

func NewUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Launch the interactive TUI dashboard",
		Example: `  gantry ui`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())

			app := tui.New(tui.Config{
				Project: rt.Config.Project.Name,
				State:   rt.State,
				Log:     rt.Log,
				Gantry:  rt.Config,
			})

			p := tea.NewProgram(app,
				tea.WithAltScreen(),       // use alternate screen buffer
				tea.WithMouseCellMotion(), // enable mouse support
			)

			if _, err := p.Run(); err != nil {
				return fmt.Errorf("tui: %w", err)
			}
			return nil
		},
	}
	return cmd
}
