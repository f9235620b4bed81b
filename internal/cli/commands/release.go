// gantry release — build, stage content and package in one pass.
package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/gantry-build/gantry/internal/core/logger"
	"github.com/gantry-build/gantry/internal/packaging"
	"github.com/gantry-build/gantry/internal/sequencer"
	"github.com/gantry-build/gantry/pkg/errs"
	"github.com/gantry-build/gantry/pkg/fsutil"
	"github.com/gantry-build/gantry/pkg/pprint"
)

func NewReleaseCmd() *cobra.Command {
	var configuration string
	var version string
	var runnerName string
	var keep bool

	cmd := &cobra.Command{
		Use:   "release <project-file>",
		Short: "Build a project and package the output in one pass",
		Args:  cobra.ExactArgs(1),
		Example: `  gantry release src/App/App.csproj
  gantry release src/App/App.csproj --configuration Release
  gantry release src/App/App.csproj --keep`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			cfg := rt.Config

			runner, closeRunner, err := resolveRunner(rt, runnerName)
			if err != nil {
				return err
			}
			defer closeRunner()

			pprint.Header("Release — " + args[0])
			if rt.Flags.DryRun {
				pprint.Warn("DRY RUN — no files will be touched")
			}

			total := 4
			if keep {
				total = 3
			}

			pprint.Step(1, total, "Building %s", args[0])
			seq := sequencer.New(cfg, runner, rt.State, rt.Plugins, rt.Log)
			buildRec, err := seq.Build(cmd.Context(), sequencer.BuildRequest{
				ProjectFile:   args[0],
				Configuration: configuration,
				Version:       version,
				DryRun:        rt.Flags.DryRun,
			})
			if err != nil {
				return releaseFailed(rt, args[0], version, "build", err)
			}

			contentDir := filepath.Join(buildRec.OutputDir, cfg.Package.ContentDir)
			stagingDir := cfg.Package.SourceDir

			if rt.Flags.DryRun {
				pprint.KV("Version", buildRec.Version)
				pprint.Info("  would stage %s into %s", contentDir, stagingDir)
				pprint.Info("  would pack %s into %s", stagingDir, cfg.Package.OutputDir)
				if !keep {
					pprint.Info("  would clear %s afterwards", stagingDir)
				}
				return nil
			}

			packer := packaging.New(cfg, runner, rt.State, rt.Plugins, rt.Log)

			pprint.Step(2, total, "Staging package content")
			if err := packer.StageContent(contentDir, stagingDir); err != nil {
				return releaseFailed(rt, args[0], buildRec.Version, "stage", err)
			}

			pprint.Step(3, total, "Packaging %s", buildRec.Version)
			packRec, err := packer.Pack(cmd.Context(), packaging.PackRequest{
				TargetDir: stagingDir,
				Version:   buildRec.Version,
			})
			if err != nil {
				return releaseFailed(rt, args[0], buildRec.Version, "pack", err)
			}

			if !keep {
				pprint.Step(4, total, "Cleaning staging directory")
				if err := fsutil.CleanDir(stagingDir); err != nil {
					pprint.Warn("Could not clear %s: %v", stagingDir, err)
					rt.Log.Warn("release.cleanup.failed", "dir", stagingDir, "err", err)
				}
			}

			rt.Log.Audit(logger.AuditEntry{
				Timestamp: time.Now(),
				Op:        "release",
				User:      cfg.User,
				Project:   buildRec.ProjectFile,
				Version:   buildRec.Version,
				Result:    "success",
			})

			fmt.Println()
			pprint.Success("Release %s complete — package in %s", packRec.Version, packRec.OutputDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configuration, "configuration", "C", "", "Build configuration (default: toolchain.configuration)")
	cmd.Flags().StringVar(&version, "version", "", "Version stamp for both build and package (default: timestamp token)")
	cmd.Flags().StringVar(&runnerName, "runner", "", "Runner to compile and pack with (local, container or agent)")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the staging directory after packaging")
	return cmd
}

// releaseFailed audits the failed phase, prints advice and hands the error up.
func releaseFailed(rt *Runtime, project, version, phase string, err error) error {
	rt.Log.Audit(logger.AuditEntry{
		Timestamp: time.Now(),
		Op:        "release",
		User:      rt.Config.User,
		Project:   project,
		Version:   version,
		Result:    "failure",
		Meta:      map[string]string{"phase": phase},
	})
	pprint.Error("Release failed during %s: %v", phase, err)
	if ge := errs.AsGantry(err); ge != nil && ge.Advice != "" {
		pprint.Info("%s", ge.Advice)
	}
	return err
}
