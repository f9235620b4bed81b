// gantry sweep — recover metadata backups left behind by interrupted runs.
package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/internal/core/logger"
	"github.com/gantry-build/gantry/internal/core/plugin"
	"github.com/gantry-build/gantry/internal/metadata"
	"github.com/gantry-build/gantry/pkg/pprint"
)

func NewSweepCmd() *cobra.Command {
	var listOnly bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Restore metadata backups stranded by an interrupted build",
		Example: `  gantry sweep
  gantry sweep --list`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			root := rt.Config.Project.Root

			backups, err := metadata.FindBackups(root)
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				pprint.Success("No stranded backups under %s", root)
				return nil
			}

			pprint.Header(fmt.Sprintf("Stranded Backups (%d)", len(backups)))
			for _, b := range backups {
				pprint.Info("  %s", b)
			}

			if listOnly {
				return nil
			}
			if rt.Flags.DryRun {
				fmt.Printf("[dry-run] would restore %d file(s)\n", len(backups))
				return nil
			}

			if rt.Plugins != nil {
				rt.Plugins.Fire(cmd.Context(), plugin.HookPreSweep, v1.HookContext{
					ProjectFile: root,
					DryRun:      false,
				})
			}

			restored, err := metadata.SweepRestore(backups, rt.Log)

			result := "success"
			if err != nil {
				result = "failure"
			}
			rt.Log.Audit(logger.AuditEntry{
				Timestamp: time.Now(),
				Op:        "sweep",
				User:      rt.Config.User,
				Project:   root,
				Result:    result,
				Meta:      map[string]string{"restored": strconv.Itoa(restored)},
			})

			if err != nil {
				pprint.Error("Sweep restored %d of %d file(s): %v", restored, len(backups), err)
				return err
			}

			fmt.Println()
			pprint.Success("Restored %d metadata file(s)", restored)
			return nil
		},
	}

	cmd.Flags().BoolVar(&listOnly, "list", false, "Only list stranded backups, restore nothing")
	return cmd
}
