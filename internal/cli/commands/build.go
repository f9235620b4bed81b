// gantry build — stamp metadata, compile, restore.
package commands

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/internal/core/logger"
	"github.com/gantry-build/gantry/internal/metadata"
	"github.com/gantry-build/gantry/internal/sequencer"
	"github.com/gantry-build/gantry/pkg/errs"
	"github.com/gantry-build/gantry/pkg/pprint"
)

func NewBuildCmd() *cobra.Command {
	var configuration string
	var version string
	var runnerOverride string
	var root string

	cmd := &cobra.Command{
		Use:   "build <project-file>",
		Short: "Stamp assembly metadata, compile the project, and restore the originals",
		Args:  cobra.ExactArgs(1),
		Example: `  gantry build My.Service.csproj
  gantry build src/My.Service/My.Service.csproj --configuration release
  gantry build My.Service.csproj --runner container
  gantry build My.Service.csproj --dry-run`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			cfg := rt.Config

			if root != "" {
				abs, err := filepath.Abs(root)
				if err != nil {
					return fmt.Errorf("resolve --root: %w", err)
				}
				cfg.Project.Root = abs
			}

			runner, closeRunner, err := resolveRunner(rt, runnerOverride)
			if err != nil {
				return err
			}
			defer closeRunner()

			effectiveConfig := configuration
			if effectiveConfig == "" {
				effectiveConfig = cfg.Toolchain.Configuration
			}

			pprint.Header("Build — " + args[0])
			pprint.KV("Configuration", effectiveConfig)
			pprint.KV("Runner", runner.Name())
			pprint.KV("Output", cfg.Toolchain.OutputDir)
			if rt.Flags.DryRun {
				pprint.Warn("DRY RUN — no files will be touched")
			}
			fmt.Println()

			seq := sequencer.New(cfg, runner, rt.State, rt.Plugins, rt.Log)
			record, err := seq.Build(cmd.Context(), sequencer.BuildRequest{
				ProjectFile:   args[0],
				Configuration: configuration,
				Version:       version,
				DryRun:        rt.Flags.DryRun,
			})

			if rt.Flags.DryRun && err == nil {
				printBuildPlan(rt, record)
				return nil
			}

			project, versionTok := args[0], version
			if record != nil {
				project, versionTok = record.ProjectFile, record.Version
			}
			result := "success"
			if err != nil {
				result = "failure"
			}
			rt.Log.Audit(logger.AuditEntry{
				Timestamp: time.Now(),
				Op:        "build",
				User:      cfg.User,
				Project:   project,
				Version:   versionTok,
				Result:    result,
			})

			if err != nil {
				pprint.Error("Build failed: %v", err)
				if ge := errs.AsGantry(err); ge != nil && ge.Advice != "" {
					pprint.Info("%s", ge.Advice)
				}
				return err
			}

			fmt.Println()
			pprint.Success("Build complete in %s — output in %s",
				time.Duration(record.DurationMS)*time.Millisecond, record.OutputDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configuration, "configuration", "C", "", "Build configuration (default: toolchain.configuration)")
	cmd.Flags().StringVar(&version, "version", "", "Version token to record (default: build timestamp)")
	cmd.Flags().StringVar(&runnerOverride, "runner", "", "Runner to compile with: local | container | agent")
	cmd.Flags().StringVar(&root, "root", "", "Project root to discover metadata files under (overrides config)")
	return cmd
}

// printBuildPlan reports what a dry run would have staged and executed.
func printBuildPlan(rt *Runtime, record *v1.BuildRecord) {
	pprint.KV("Project", record.ProjectFile)
	pprint.KV("Version", record.Version)

	files, err := metadata.Discover(rt.Config.Project.Root, rt.Log)
	if err == nil {
		pprint.KV("Metadata files", fmt.Sprintf("%d", files.Len()))
		for _, path := range files.Paths() {
			pprint.Info("  would stage %s", path)
		}
	}

	argv := sequencer.MSBuildArgs(record.Configuration, record.OutputDir, record.ProjectFile)
	pprint.KV("Compiler", rt.Config.Toolchain.MSBuild)
	pprint.KV("Arguments", strings.Join(argv, " "))
}
