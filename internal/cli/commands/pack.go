// gantry pack — generate a package spec and build the package.
package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gantry-build/gantry/internal/core/logger"
	"github.com/gantry-build/gantry/internal/packaging"
	"github.com/gantry-build/gantry/pkg/errs"
	"github.com/gantry-build/gantry/pkg/pprint"
)

func NewPackCmd() *cobra.Command {
	var specFile string
	var specName string
	var version string
	var outputDir string
	var templateFile string

	cmd := &cobra.Command{
		Use:   "pack [target-dir]",
		Short: "Package staged content into a deployment package",
		Args:  cobra.MaximumNArgs(1),
		Example: `  gantry pack
  gantry pack PackageSource --spec-name My.Web
  gantry pack --version 2024.03.01.1530 --output-dir DeploymentPackages
  gantry pack --template deploy/package.nuspec.tmpl`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := FromContext(cmd.Context())
			cfg := rt.Config

			targetDir := ""
			if len(args) > 0 {
				targetDir = args[0]
			}

			// --spec names the file verbatim and wins over --spec-name.
			name := specName
			if specFile != "" {
				name = specFile
			}

			runner, closeRunner, err := resolveRunner(rt, "")
			if err != nil {
				return err
			}
			defer closeRunner()

			// The template, when used, sees the full descriptor token set
			// with the package version substituted in.
			var tokens map[string]string
			if templateFile != "" || cfg.Package.Template != "" {
				tokens = cfg.Descriptor.WithDefaults(cfg.Toolchain.Configuration).Tokens()
				if version != "" {
					tokens["Version"] = version
				}
			}

			if rt.Flags.DryRun {
				pprint.Warn("DRY RUN — no package will be produced")
			}

			packer := packaging.New(cfg, runner, rt.State, rt.Plugins, rt.Log)
			record, err := packer.Pack(cmd.Context(), packaging.PackRequest{
				TargetDir:      targetDir,
				SpecName:       name,
				Version:        version,
				OutputDir:      outputDir,
				TemplateFile:   templateFile,
				TemplateTokens: tokens,
				DryRun:         rt.Flags.DryRun,
			})

			if rt.Flags.DryRun && err == nil {
				pprint.KV("Spec", record.SpecFile)
				pprint.KV("Version", record.Version)
				pprint.KV("Target", record.TargetDir)
				pprint.KV("Output", record.OutputDir)
				return nil
			}

			spec, versionTok := name, version
			if record != nil {
				spec, versionTok = record.SpecFile, record.Version
			}
			result := "success"
			if err != nil {
				result = "failure"
			}
			rt.Log.Audit(logger.AuditEntry{
				Timestamp: time.Now(),
				Op:        "pack",
				User:      cfg.User,
				Project:   spec,
				Version:   versionTok,
				Result:    result,
			})

			if err != nil {
				pprint.Error("Pack failed: %v", err)
				if ge := errs.AsGantry(err); ge != nil && ge.Advice != "" {
					pprint.Info("%s", ge.Advice)
				}
				return err
			}

			fmt.Println()
			pprint.Success("Package %s built into %s", record.Version, record.OutputDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&specFile, "spec", "", "Spec file name to use verbatim (overrides --spec-name)")
	cmd.Flags().StringVar(&specName, "spec-name", "", "Package id for the spec file (default: package.spec_name or last built project)")
	cmd.Flags().StringVar(&version, "version", "", "Package version (default: timestamp token)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory the package lands in (default: package.output_dir)")
	cmd.Flags().StringVar(&templateFile, "template", "", "Spec template file rendered instead of generating via the tool")
	return cmd
}
