// gantry history — inspect recorded builds and packages.
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/internal/metrics"
	"github.com/gantry-build/gantry/pkg/pprint"
)

func NewHistoryCmd() *cobra.Command {
	var limit int
	var project string
	var showStats bool
	var showPackages bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded builds and packages",
		Example: `  gantry history
  gantry history --limit 50
  gantry history --project src/App/App.csproj
  gantry history --stats
  gantry history --packages`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())

			if showPackages {
				recs, err := rt.State.ListPackages(limit)
				if err != nil {
					return err
				}
				if rt.Flags.JSONOutput {
					return printJSON(recs)
				}
				printPackageTable(recs)
				return nil
			}

			if showStats {
				// Stats run over the whole history, not the display window.
				recs, err := rt.State.ListBuilds(project, 0)
				if err != nil {
					return err
				}
				stats := metrics.Compute(recs)
				if rt.Flags.JSONOutput {
					return printJSON(stats)
				}
				printStats(stats)
				return nil
			}

			recs, err := rt.State.ListBuilds(project, limit)
			if err != nil {
				return err
			}
			if rt.Flags.JSONOutput {
				return printJSON(recs)
			}
			printBuildTable(recs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show (0 for all)")
	cmd.Flags().StringVar(&project, "project", "", "Only records for this project file")
	cmd.Flags().BoolVar(&showStats, "stats", false, "Aggregate statistics instead of a record list")
	cmd.Flags().BoolVar(&showPackages, "packages", false, "Show package history instead of builds")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printBuildTable(recs []v1.BuildRecord) {
	if len(recs) == 0 {
		pprint.Info("No builds recorded. Run 'gantry build' to get started.")
		return
	}
	t := pprint.NewTable("TIME", "PROJECT", "CONFIG", "VERSION", "RUNNER", "DURATION", "STATUS")
	for _, r := range recs {
		t.AddRow(
			r.StartedAt.Format("01-02 15:04"),
			r.ProjectFile,
			r.Configuration,
			r.Version,
			r.Runner,
			(time.Duration(r.DurationMS) * time.Millisecond).String(),
			string(r.Status),
		)
	}
	t.Render()
}

func printPackageTable(recs []v1.PackageRecord) {
	if len(recs) == 0 {
		pprint.Info("No packages recorded. Run 'gantry pack' to get started.")
		return
	}
	t := pprint.NewTable("TIME", "SPEC", "VERSION", "OUTPUT", "STATUS")
	for _, r := range recs {
		t.AddRow(
			r.CreatedAt.Format("01-02 15:04"),
			r.SpecFile,
			r.Version,
			r.OutputDir,
			string(r.Status),
		)
	}
	t.Render()
}

func printStats(stats metrics.Stats) {
	pprint.Header("Build Statistics")
	pprint.KV("Builds", fmt.Sprintf("%d", stats.Total))
	pprint.KV("Succeeded", fmt.Sprintf("%d", stats.Succeeded))
	pprint.KV("Failed", fmt.Sprintf("%d", stats.Failed))
	pprint.KV("Success rate", fmt.Sprintf("%.1f%%", stats.SuccessRate))
	pprint.KV("Avg duration", stats.AvgDuration.String())
	pprint.KV("Last duration", stats.LastDuration.String())
	if stats.LastBuild != nil {
		pprint.KV("Last build", fmt.Sprintf("%s %s (%s)",
			stats.LastBuild.ProjectFile, stats.LastBuild.Version, stats.LastBuild.Status))
	}
	if len(stats.ByConfiguration) > 0 {
		for cfg, n := range stats.ByConfiguration {
			pprint.KV("  "+cfg, fmt.Sprintf("%d", n))
		}
	}
}
