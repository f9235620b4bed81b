// gantry doctor — check the environment before a build.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gantry-build/gantry/internal/preflight"
	"github.com/gantry-build/gantry/pkg/pprint"
)

func NewDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check toolchain, project layout and runner connectivity",
		Example: `  gantry doctor
  gantry doctor --json
  gantry doctor --agent winbox`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			checker := preflight.NewChecker(rt.Config, rt.Log)

			if rt.Flags.JSONOutput {
				results := checker.Run(cmd.Context())
				if err := printJSON(results); err != nil {
					return err
				}
				if preflight.Failed(results) {
					return fmt.Errorf("doctor found problems")
				}
				return nil
			}

			pprint.Header("Doctor")

			sp := pprint.NewSpinner("Probing toolchain and runner")
			sp.Start()
			results := checker.Run(cmd.Context())
			sp.Stop(!preflight.Failed(results))

			for _, r := range results {
				switch r.Status {
				case preflight.StatusOK:
					pprint.Success("%-18s %s", r.Name, r.Detail)
				case preflight.StatusWarn:
					pprint.Warn("%-18s %s", r.Name, r.Detail)
				default:
					pprint.Error("%-18s %s", r.Name, r.Detail)
				}
			}

			fmt.Println()
			if preflight.Failed(results) {
				pprint.Error("Environment is not ready to build")
				return fmt.Errorf("doctor found problems")
			}
			pprint.Success("Environment is ready to build")
			return nil
		},
	}
}
