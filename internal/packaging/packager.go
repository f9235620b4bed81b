// Package packaging produces NuGet packages from staged build output:
// generate or render a spec file, then run the packaging tool against it.
package packaging

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/internal/core/config"
	"github.com/gantry-build/gantry/internal/core/logger"
	"github.com/gantry-build/gantry/internal/core/plugin"
	"github.com/gantry-build/gantry/internal/core/state"
	"github.com/gantry-build/gantry/internal/sequencer"
	"github.com/gantry-build/gantry/internal/toolchain"
	"github.com/gantry-build/gantry/pkg/errs"
	"github.com/gantry-build/gantry/pkg/fsutil"
)

// PackRequest carries the per-run inputs. Empty fields fall back to the
// loaded configuration.
type PackRequest struct {
	// TargetDir holds the package content and receives the spec file.
	TargetDir string

	// SpecName names the spec file; ".nuspec" is appended when absent.
	SpecName string

	// Version stamps the package; defaults to the timestamp token.
	Version string

	// OutputDir receives the generated package.
	OutputDir string

	// TemplateFile, when set, is rendered with TemplateTokens to produce
	// the spec file instead of asking the packaging tool to generate one.
	TemplateFile   string
	TemplateTokens map[string]string

	// DryRun plans the run without touching any file. The returned
	// record carries the plan but no status and is not persisted.
	DryRun bool
}

// Packager owns the packaging flow for one loaded configuration.
type Packager struct {
	cfg     *config.Config
	runner  toolchain.Runner
	state   *state.DB
	plugins *plugin.Host
	log     *logger.Logger

	now    func() time.Time
	stdout io.Writer
	stderr io.Writer
}

// New constructs a Packager. state and plugins may be nil, in which case
// no record is persisted and no hooks fire.
func New(cfg *config.Config, runner toolchain.Runner, db *state.DB, plugins *plugin.Host, log *logger.Logger) *Packager {
	return &Packager{
		cfg:     cfg,
		runner:  runner,
		state:   db,
		plugins: plugins,
		log:     log,
		now:     time.Now,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
}

// Pack produces one package: spec file first, then the package itself.
func (p *Packager) Pack(ctx context.Context, req PackRequest) (*v1.PackageRecord, error) {
	started := p.now()

	targetDir := req.TargetDir
	if targetDir == "" {
		targetDir = p.cfg.Package.SourceDir
	}
	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = p.cfg.Package.OutputDir
	}
	version := req.Version
	if version == "" {
		version = sequencer.VersionToken(started)
	}
	templateFile := req.TemplateFile
	if templateFile == "" {
		templateFile = p.cfg.Package.Template
	}

	if !fsutil.Exists(targetDir) {
		return nil, errs.Newf(errs.ErrInvalidRequest, "pack.target", "package content directory %s does not exist", targetDir).
			WithAdvice("stage content first, e.g. with `gantry release`")
	}
	if err := p.checkTool(); err != nil {
		return nil, err
	}

	specFileName := p.resolveSpecFileName(req.SpecName)
	specPath := filepath.Join(targetDir, specFileName)

	record := &v1.PackageRecord{
		SpecFile:  specPath,
		Version:   version,
		TargetDir: targetDir,
		OutputDir: outputDir,
		CreatedAt: started.UTC(),
	}

	p.log.Info("pack.start",
		"spec", specPath, "version", version,
		"target_dir", targetDir, "output_dir", outputDir, "dry_run", req.DryRun,
	)

	if req.DryRun {
		p.log.Info("pack.dryrun", "spec", specPath)
		return record, nil
	}

	hctx := v1.HookContext{
		SpecFile:  specPath,
		Version:   version,
		OutputDir: outputDir,
	}
	if p.plugins != nil {
		if err := p.plugins.FireStrict(ctx, plugin.HookPrePack, hctx); err != nil {
			return p.finish(ctx, record, hctx, err)
		}
	}

	// 1. Produce the spec file
	var err error
	if templateFile != "" {
		err = p.renderSpecFile(templateFile, specPath, req.TemplateTokens)
	} else {
		err = p.generateSpec(ctx, targetDir, specFileName)
	}
	if err != nil {
		return p.finish(ctx, record, hctx, err)
	}

	// 2. Build the package from the spec
	p.log.Info("pack.building", "spec", specPath)
	exit, runErr := p.runner.Run(ctx, p.packInvocation(targetDir, specPath, version, outputDir), p.stdout, p.stderr)
	if runErr != nil {
		if ge := errs.AsGantry(runErr); ge != nil {
			return p.finish(ctx, record, hctx, ge)
		}
		return p.finish(ctx, record, hctx, errs.Wrap(runErr, errs.ErrPackBuild, "pack.run").WithResource(specPath))
	}
	if exit != 0 {
		packErr := errs.Newf(errs.ErrPackBuild, "pack.run", "packaging tool exited with code %d", exit).
			WithResource(specPath).
			WithAdvice("see the tool output above")
		return p.finish(ctx, record, hctx, packErr)
	}

	return p.finish(ctx, record, hctx, nil)
}

// StageContent copies built content into the package staging directory,
// replacing whatever a previous run left there.
func (p *Packager) StageContent(contentDir, stagingDir string) error {
	if !fsutil.Exists(contentDir) {
		return errs.Newf(errs.ErrInvalidRequest, "pack.stage", "content directory %s does not exist", contentDir).
			WithAdvice("run the build first so the output directory is populated")
	}
	p.log.Info("pack.staging_content", "from", contentDir, "to", stagingDir)
	if err := fsutil.CopyDirContents(contentDir, stagingDir); err != nil {
		return errs.Wrap(err, errs.ErrPackSpec, "pack.stage").WithResource(stagingDir)
	}
	return nil
}

// finish closes out the record, persists it, fires post-pack hooks and
// logs the terminal event.
func (p *Packager) finish(ctx context.Context, record *v1.PackageRecord, hctx v1.HookContext, packErr error) (*v1.PackageRecord, error) {
	if packErr != nil {
		record.Status = v1.PackageFailed
		record.Error = packErr.Error()
	} else {
		record.Status = v1.PackageSucceeded
	}

	if p.state != nil {
		if id, err := p.state.AppendPackage(*record); err != nil {
			p.log.Warn("pack.record_persist.failed", "err", err)
		} else {
			record.ID = id
		}
	}

	if p.plugins != nil {
		hctx.Metadata = map[string]string{"status": string(record.Status)}
		p.plugins.Fire(ctx, plugin.HookPostPack, hctx)
	}

	if packErr != nil {
		p.log.Error("pack.failed", "spec", record.SpecFile, "err", packErr)
		return record, packErr
	}
	p.log.Info("pack.complete", "spec", record.SpecFile, "version", record.Version, "output_dir", record.OutputDir)
	return record, nil
}

// checkTool verifies the packaging tool exists before any invocation.
// Only the local runner can check the path; container and agent runners
// resolve the tool on their side.
func (p *Packager) checkTool() error {
	if _, ok := p.runner.(*toolchain.LocalRunner); !ok {
		return nil
	}
	if !fsutil.IsFile(p.cfg.Toolchain.NuGet) {
		return errs.Newf(errs.ErrPackToolMissing, "pack.tool", "packaging tool not found at %s", p.cfg.Toolchain.NuGet).
			WithAdvice("install it or set toolchain.nuget in gantry.yaml")
	}
	return nil
}

// generateSpec asks the packaging tool to write <id>.nuspec into
// targetDir, overwriting any previous one.
func (p *Packager) generateSpec(ctx context.Context, targetDir, specFileName string) error {
	id := strings.TrimSuffix(specFileName, ".nuspec")
	inv := toolchain.Invocation{
		Tool: p.cfg.Toolchain.NuGet,
		Args: []string{"spec", "-Force", id},
		Dir:  targetDir,
	}
	p.log.Info("pack.spec", "id", id, "dir", targetDir)

	exit, err := p.runner.Run(ctx, inv, p.stdout, p.stderr)
	if err != nil {
		return errs.Wrap(err, errs.ErrPackSpec, "pack.spec").WithResource(id)
	}
	if exit != 0 {
		return errs.Newf(errs.ErrPackSpec, "pack.spec", "spec generation exited with code %d", exit).WithResource(id)
	}
	return nil
}

// renderSpecFile renders a spec template with the given tokens and
// writes the result to specPath. Rendering refuses missing tokens.
func (p *Packager) renderSpecFile(templateFile, specPath string, tokens map[string]string) error {
	raw, err := os.ReadFile(templateFile)
	if err != nil {
		return errs.Wrap(err, errs.ErrPackSpec, "pack.template").WithResource(templateFile)
	}

	content := raw
	if len(tokens) > 0 {
		tmpl, err := template.New(filepath.Base(templateFile)).Option("missingkey=error").Parse(string(raw))
		if err != nil {
			return errs.Wrap(err, errs.ErrPackSpec, "pack.template").WithResource(templateFile)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, tokens); err != nil {
			return errs.Wrap(err, errs.ErrPackSpec, "pack.template").WithResource(templateFile)
		}
		content = buf.Bytes()
	}

	if err := os.WriteFile(specPath, content, 0o644); err != nil {
		return errs.Wrap(err, errs.ErrPackSpec, "pack.template").WithResource(specPath)
	}
	p.log.Info("pack.spec_rendered", "template", templateFile, "spec", specPath)
	return nil
}

// packInvocation renders the packaging argument vector.
func (p *Packager) packInvocation(targetDir, specPath, version, outputDir string) toolchain.Invocation {
	args := []string{"pack", specPath, "-Version", version}
	if outputDir != "" {
		args = append(args, "-OutputDirectory", outputDir)
	}
	args = append(args, "-NoPackageAnalysis")
	return toolchain.Invocation{
		Tool: p.cfg.Toolchain.NuGet,
		Args: args,
		Dir:  targetDir,
	}
}

// resolveSpecFileName decides the spec file name: an explicit name wins
// (gaining the extension when missing), then the configured name, then
// the stem of the last built project, then a fixed fallback.
func (p *Packager) resolveSpecFileName(specName string) string {
	if specName == "" {
		specName = p.cfg.Package.SpecName
	}
	if specName == "" && p.state != nil {
		if last, err := p.state.LastBuild(); err == nil && last != nil {
			base := filepath.Base(last.ProjectFile)
			specName = strings.TrimSuffix(base, filepath.Ext(base))
		}
	}
	return ResolveSpecFileName(specName)
}

// ResolveSpecFileName normalises a spec name to its file name: the
// ".nuspec" extension is appended unless already present, and an empty
// name falls back to "package.nuspec".
func ResolveSpecFileName(specName string) string {
	if specName == "" {
		return "package.nuspec"
	}
	if filepath.Ext(specName) != ".nuspec" {
		return specName + ".nuspec"
	}
	return specName
}
