// Package sequencer drives the staged build: park the per-project
// metadata files, compile with generated replacements in place, then put
// every original back no matter how the compile ended.
package sequencer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/internal/core/config"
	"github.com/gantry-build/gantry/internal/core/logger"
	"github.com/gantry-build/gantry/internal/core/plugin"
	"github.com/gantry-build/gantry/internal/core/state"
	"github.com/gantry-build/gantry/internal/metadata"
	"github.com/gantry-build/gantry/internal/toolchain"
	"github.com/gantry-build/gantry/pkg/errs"
	"github.com/gantry-build/gantry/pkg/fsutil"
	"github.com/gantry-build/gantry/pkg/pprint"
)

// BuildRequest carries the per-build inputs. Empty fields fall back to
// the loaded configuration.
type BuildRequest struct {
	ProjectFile   string
	Configuration string

	// Descriptor overrides the configured assembly descriptor wholesale.
	Descriptor *v1.Descriptor

	// Version overrides the timestamp token recorded for the build.
	Version string

	// DryRun resolves and plans the build without touching any file. The
	// returned record carries the plan but no status and is not persisted.
	DryRun bool
}

// Sequencer owns the build flow for one loaded configuration.
type Sequencer struct {
	cfg     *config.Config
	runner  toolchain.Runner
	state   *state.DB
	plugins *plugin.Host
	log     *logger.Logger

	// now is the clock used for version tokens and record timestamps.
	now func() time.Time

	// stdout and stderr receive the compiler's output streams.
	stdout io.Writer
	stderr io.Writer
}

// New constructs a Sequencer. state and plugins may be nil, in which
// case no record is persisted and no hooks fire.
func New(cfg *config.Config, runner toolchain.Runner, db *state.DB, plugins *plugin.Host, log *logger.Logger) *Sequencer {
	return &Sequencer{
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

// Build runs one staged build.
//
// The originals are restored on every path that staged them: after a
// clean compile, after a failed compile, after a launch failure and
// after a partial stage. A compile error and a restore error can both
// occur in one build; they are reported together with the compile error
// first, and the returned record reflects the compile outcome.
func (s *Sequencer) Build(ctx context.Context, req BuildRequest) (*v1.BuildRecord, error) {
	started := s.now()

	if req.ProjectFile == "" {
		return nil, errs.Newf(errs.ErrInvalidRequest, "build.request", "no project or solution file specified").
			WithAdvice("pass the project file, e.g. `gantry build My.Web.csproj`")
	}
	configuration := req.Configuration
	if configuration == "" {
		configuration = s.cfg.Toolchain.Configuration
	}
	if configuration == "" {
		configuration = "debug"
	}
	version := req.Version
	if version == "" {
		version = VersionToken(started)
	}
	root := s.cfg.Project.Root
	outputDir := s.cfg.Toolchain.OutputDir

	// 1. Resolve the project file under the source root
	projectPath, err := s.resolveProject(root, req.ProjectFile)
	if err != nil {
		return nil, err
	}

	// 2. Discover the metadata files to stage
	files, err := metadata.Discover(root, s.log)
	if err != nil {
		return nil, err
	}

	// 3. Compose the descriptor and render the staged content
	desc := s.cfg.Descriptor
	if req.Descriptor != nil {
		desc = *req.Descriptor
	}
	desc = annotateTitle(desc.WithDefaults(configuration), configuration, s.cfg.User)
	content, err := metadata.Render(desc.Tokens())
	if err != nil {
		return nil, err
	}

	record := &v1.BuildRecord{
		ProjectFile:   projectPath,
		Configuration: configuration,
		Version:       version,
		Runner:        s.runner.Name(),
		MetadataFiles: files.Len(),
		OutputDir:     outputDir,
		StartedAt:     started.UTC(),
	}

	s.log.Info("build.start",
		"project", projectPath, "configuration", configuration,
		"version", version, "runner", s.runner.Name(),
		"metadata_files", files.Len(), "dry_run", req.DryRun,
	)

	if req.DryRun {
		s.log.Info("build.dryrun", "project", projectPath)
		return record, nil
	}

	hctx := v1.HookContext{
		ProjectFile:   projectPath,
		Configuration: configuration,
		Version:       version,
		OutputDir:     outputDir,
	}

	// 4. Fire pre-build hooks; a hook error aborts before any file moves
	if s.plugins != nil {
		if err := s.plugins.FireStrict(ctx, plugin.HookPreBuild, hctx); err != nil {
			return s.finish(ctx, record, hctx, err)
		}
	}

	// 5. Prepare an empty output directory before the staging window opens
	if err := fsutil.EnsureEmptyDir(outputDir); err != nil {
		prepErr := errs.Wrap(err, errs.ErrMetadataOutputPrep, "build.output_dir").WithResource(outputDir)
		return s.finish(ctx, record, hctx, prepErr)
	}

	// 6. Stage generated metadata over the originals
	s.log.Info("build.staging", "count", files.Len())
	if err := files.Stage(content); err != nil {
		// A partial stage may have parked some originals already.
		restoreErr := files.Restore()
		return s.finish(ctx, record, hctx, multierr.Append(err, restoreErr))
	}

	// 7. Compile
	pprint.Banner("Compiling to output directory: " + outputDir)
	s.log.Info("build.compiling", "tool", s.compileTool(), "project", projectPath)
	exit, runErr := s.runner.Run(ctx, s.compileInvocation(projectPath, configuration, outputDir), s.stdout, s.stderr)
	record.ExitCode = exit

	// 8. Restore the originals regardless of the compile outcome
	s.log.Info("build.restoring", "count", files.StagedCount())
	restoreErr := files.Restore()

	buildErr := classifyCompile(exit, runErr, projectPath)
	buildErr = multierr.Append(buildErr, restoreErr)

	// 9. Finalize the record and fire post-build hooks
	return s.finish(ctx, record, hctx, buildErr)
}

// finish closes out the record, persists it, fires post-build hooks and
// logs the terminal event. It returns the record alongside buildErr so
// callers always see what was attempted.
func (s *Sequencer) finish(ctx context.Context, record *v1.BuildRecord, hctx v1.HookContext, buildErr error) (*v1.BuildRecord, error) {
	completed := s.now().UTC()
	record.CompletedAt = completed
	record.DurationMS = completed.Sub(record.StartedAt).Milliseconds()
	if buildErr != nil {
		record.Status = v1.BuildFailed
		record.Error = buildErr.Error()
	} else {
		record.Status = v1.BuildSucceeded
	}

	if s.state != nil {
		if id, err := s.state.AppendBuild(*record); err != nil {
			s.log.Warn("build.record_persist.failed", "err", err)
		} else {
			record.ID = id
		}
	}

	if s.plugins != nil {
		hctx.Metadata = map[string]string{
			"status":    string(record.Status),
			"exit_code": strconv.Itoa(record.ExitCode),
		}
		s.plugins.Fire(ctx, plugin.HookPostBuild, hctx)
	}

	if buildErr != nil {
		s.log.Error("build.failed",
			"project", record.ProjectFile, "exit_code", record.ExitCode,
			"duration_ms", record.DurationMS, "err", buildErr,
		)
		return record, buildErr
	}
	s.log.Info("build.complete",
		"project", record.ProjectFile, "version", record.Version,
		"duration_ms", record.DurationMS,
	)
	return record, nil
}

// resolveProject locates the project file: an exact path under the root
// wins, otherwise the tree is searched for the file name.
func (s *Sequencer) resolveProject(root, projectFile string) (string, error) {
	direct := projectFile
	if !filepath.IsAbs(direct) {
		direct = filepath.Join(root, projectFile)
	}
	if fsutil.IsFile(direct) {
		return direct, nil
	}

	found, err := fsutil.FindFile(root, filepath.Base(projectFile))
	if err != nil {
		return "", errs.Wrap(err, errs.ErrProjectNotFound, "build.resolve").WithResource(projectFile)
	}
	if found == "" {
		return "", errs.Newf(errs.ErrProjectNotFound, "build.resolve", "project file %q not found under %s", projectFile, root).
			WithAdvice("check the file name, or point project.root at the tree that contains it")
	}
	return found, nil
}

func (s *Sequencer) compileInvocation(projectPath, configuration, outputDir string) toolchain.Invocation {
	return toolchain.Invocation{
		Tool: s.compileTool(),
		Args: MSBuildArgs(configuration, outputDir, projectPath),
		Dir:  s.cfg.Project.Root,
	}
}

func (s *Sequencer) compileTool() string {
	return s.cfg.Toolchain.MSBuild
}

// MSBuildArgs renders the compiler argument vector for one build: the
// configuration, a clean rebuild of every target, the output path and
// finally the project file itself.
func MSBuildArgs(configuration, outputDir, projectPath string) []string {
	return []string{
		"/p:Configuration=" + configuration,
		"/t:Clean;Rebuild",
		"/p:OutputPath=" + outputDir,
		projectPath,
	}
}

// classifyCompile maps a runner result onto the build error taxonomy.
// Exit code 1 is the compiler's own build-error signal; anything else
// nonzero is reported as an unexpected exit.
func classifyCompile(exit int, runErr error, projectPath string) error {
	if runErr != nil {
		if ge := errs.AsGantry(runErr); ge != nil {
			return ge
		}
		return errs.Wrap(runErr, errs.ErrCompileLaunch, "build.compile").
			WithResource(projectPath).
			WithAdvice("check that toolchain.msbuild points at a runnable compiler")
	}
	switch exit {
	case 0:
		return nil
	case 1:
		return errs.Newf(errs.ErrCompileFailed, "build.compile", "compiler reported build errors").
			WithResource(projectPath).
			WithAdvice("see the compiler output above for the failing targets")
	default:
		return errs.Newf(errs.ErrCompileUnknown, "build.compile", "compiler exited with code %d", exit).
			WithResource(projectPath)
	}
}

// annotateTitle appends the compilation and user details displayed in
// assembly tooltips. It operates on a copy, so building twice with the
// same descriptor never stacks annotations.
func annotateTitle(d v1.Descriptor, configuration, user string) v1.Descriptor {
	d.Title = fmt.Sprintf("%s (compilation: %s, built by: %s)", d.Title, configuration, strings.ToLower(user))
	return d
}
