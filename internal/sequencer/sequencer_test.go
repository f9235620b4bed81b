package sequencer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/internal/core/config"
	"github.com/gantry-build/gantry/internal/core/logger"
	"github.com/gantry-build/gantry/internal/core/plugin"
	"github.com/gantry-build/gantry/internal/core/state"
	"github.com/gantry-build/gantry/internal/metadata"
	"github.com/gantry-build/gantry/internal/toolchain"
	"github.com/gantry-build/gantry/pkg/errs"
)

// fixedTime renders as version token 2012.01.14.2317.
var fixedTime = time.Date(2012, 1, 14, 23, 17, 0, 0, time.UTC)

// stubRunner records the invocation it receives and returns a canned
// result. The optional inspect hook runs mid-compile, while the staged
// files are still swapped in.
type stubRunner struct {
	exitCode int
	err      error
	inspect  func()

	calls   int
	lastInv toolchain.Invocation
}

func (r *stubRunner) Name() string { return "stub" }

func (r *stubRunner) Run(_ context.Context, inv toolchain.Invocation, _, _ io.Writer) (int, error) {
	r.calls++
	r.lastInv = inv
	if r.inspect != nil {
		r.inspect()
	}
	if r.err != nil {
		return -1, r.err
	}
	return r.exitCode, nil
}

type fixture struct {
	root      string
	project   string
	appMeta   string
	libMeta   string
	outputDir string
	runner    *stubRunner
	seq       *Sequencer
}

func newFixture(t *testing.T, runner *stubRunner) *fixture {
	t.Helper()
	root := t.TempDir()

	f := &fixture{
		root:      root,
		project:   filepath.Join(root, "App.csproj"),
		appMeta:   filepath.Join(root, "App", "Properties", metadata.FileName),
		libMeta:   filepath.Join(root, "Lib", metadata.FileName),
		outputDir: filepath.Join(root, "BuildOutput"),
		runner:    runner,
	}
	writeFile(t, f.project, "<Project/>")
	writeFile(t, f.appMeta, "original app metadata")
	writeFile(t, f.libMeta, "original lib metadata")
	writeFile(t, filepath.Join(root, "App", metadata.FileName+".bak"), "decoy backup")

	cfg := &config.Config{
		Project: config.ProjectConfig{Name: "fixture", Root: root},
		Toolchain: config.Toolchain{
			MSBuild:       "/opt/msbuild",
			Configuration: "release",
			OutputDir:     f.outputDir,
			Runner:        config.RunnerLocal,
		},
		Descriptor: v1.Descriptor{Title: "Fixture App", Company: "Acme"},
		User:       "Builder",
	}

	f.seq = New(cfg, runner, nil, nil, logger.Nop())
	f.seq.now = func() time.Time { return fixedTime }
	f.seq.stdout = io.Discard
	f.seq.stderr = io.Discard
	return f
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) assertRestored(t *testing.T) {
	t.Helper()
	assert.Equal(t, "original app metadata", readFile(t, f.appMeta))
	assert.Equal(t, "original lib metadata", readFile(t, f.libMeta))
	backups, err := metadata.FindBackups(f.root)
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestBuildRoundTrip(t *testing.T) {
	f := newFixture(t, &stubRunner{exitCode: 0})
	stale := filepath.Join(f.outputDir, "stale.dll")
	writeFile(t, stale, "from last build")

	staleSeenByCompiler := true
	f.runner.inspect = func() {
		_, statErr := os.Stat(stale)
		staleSeenByCompiler = statErr == nil
	}

	rec, err := f.seq.Build(context.Background(), BuildRequest{ProjectFile: "App.csproj"})
	require.NoError(t, err)

	assert.Equal(t, v1.BuildSucceeded, rec.Status)
	assert.Zero(t, rec.ExitCode)
	assert.Equal(t, "2012.01.14.2317", rec.Version)
	assert.Equal(t, "release", rec.Configuration)
	assert.Equal(t, 2, rec.MetadataFiles)
	assert.Equal(t, f.project, rec.ProjectFile)
	assert.Equal(t, "stub", rec.Runner)

	f.assertRestored(t)
	assert.False(t, staleSeenByCompiler, "output dir should be emptied before the compiler runs")
	assert.NoFileExists(t, stale)

	assert.Equal(t, 1, f.runner.calls)
	assert.Equal(t, "/opt/msbuild", f.runner.lastInv.Tool)
	assert.Equal(t, []string{
		"/p:Configuration=release",
		"/t:Clean;Rebuild",
		"/p:OutputPath=" + f.outputDir,
		f.project,
	}, f.runner.lastInv.Args)
	assert.Equal(t, f.root, f.runner.lastInv.Dir)
}

func TestBuildStagesGeneratedContentDuringCompile(t *testing.T) {
	runner := &stubRunner{exitCode: 0}
	f := newFixture(t, runner)

	var stagedApp, parkedApp string
	runner.inspect = func() {
		stagedApp = readFile(t, f.appMeta)
		parkedApp = readFile(t, f.appMeta+metadata.BackupSuffix)
	}

	_, err := f.seq.Build(context.Background(), BuildRequest{ProjectFile: "App.csproj"})
	require.NoError(t, err)

	assert.Contains(t, stagedApp, `[assembly: AssemblyTitleAttribute("Fixture App (compilation: release, built by: builder)")]`)
	assert.Contains(t, stagedApp, `[assembly: AssemblyVersionAttribute("1.0")]`)
	assert.Contains(t, stagedApp, `[assembly: AssemblyInformationalVersionAttribute("1.0 (release)")]`)
	assert.Equal(t, "original app metadata", parkedApp)

	assert.Equal(t, "decoy backup", readFile(t, filepath.Join(f.root, "App", metadata.FileName+".bak")))
	f.assertRestored(t)
}

func TestBuildRestoresAfterCompileFailure(t *testing.T) {
	f := newFixture(t, &stubRunner{exitCode: 1})

	rec, err := f.seq.Build(context.Background(), BuildRequest{ProjectFile: "App.csproj"})
	require.Error(t, err)

	assert.True(t, errs.IsCode(err, errs.ErrCompileFailed))
	assert.Equal(t, v1.BuildFailed, rec.Status)
	assert.Equal(t, 1, rec.ExitCode)
	f.assertRestored(t)
}

func TestBuildRestoresAfterUnexpectedExitCode(t *testing.T) {
	f := newFixture(t, &stubRunner{exitCode: 7})

	rec, err := f.seq.Build(context.Background(), BuildRequest{ProjectFile: "App.csproj"})
	require.Error(t, err)

	assert.True(t, errs.IsCode(err, errs.ErrCompileUnknown))
	assert.False(t, errs.IsCode(err, errs.ErrCompileFailed))
	assert.Equal(t, 7, rec.ExitCode)
	f.assertRestored(t)
}

func TestBuildRestoresAfterLaunchFailure(t *testing.T) {
	f := newFixture(t, &stubRunner{err: errors.New("fork/exec: no such file")})

	rec, err := f.seq.Build(context.Background(), BuildRequest{ProjectFile: "App.csproj"})
	require.Error(t, err)

	assert.True(t, errs.IsCode(err, errs.ErrCompileLaunch))
	assert.Equal(t, v1.BuildFailed, rec.Status)
	f.assertRestored(t)
}

func TestBuildReportsCompileErrorBeforeRestoreError(t *testing.T) {
	runner := &stubRunner{exitCode: 1}
	f := newFixture(t, runner)

	// Sabotage one parked original mid-compile so restore cannot complete.
	runner.inspect = func() {
		require.NoError(t, os.Remove(f.libMeta+metadata.BackupSuffix))
	}

	rec, err := f.seq.Build(context.Background(), BuildRequest{ProjectFile: "App.csproj"})
	require.Error(t, err)

	assert.True(t, errs.IsCode(err, errs.ErrCompileFailed))
	assert.True(t, errs.IsCode(err, errs.ErrMetadataRestore))

	msg := err.Error()
	assert.Less(t,
		strings.Index(msg, string(errs.ErrCompileFailed)),
		strings.Index(msg, string(errs.ErrMetadataRestore)),
	)

	assert.Equal(t, v1.BuildFailed, rec.Status)
	assert.Equal(t, 1, rec.ExitCode)
	assert.Equal(t, "original app metadata", readFile(t, f.appMeta))
}

func TestBuildWithoutMetadataFiles(t *testing.T) {
	runner := &stubRunner{exitCode: 0}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Solo.csproj"), "<Project/>")

	cfg := &config.Config{
		Project: config.ProjectConfig{Root: root},
		Toolchain: config.Toolchain{
			MSBuild:       "/opt/msbuild",
			Configuration: "debug",
			OutputDir:     filepath.Join(root, "BuildOutput"),
			Runner:        config.RunnerLocal,
		},
		User: "builder",
	}
	seq := New(cfg, runner, nil, nil, logger.Nop())
	seq.now = func() time.Time { return fixedTime }
	seq.stdout = io.Discard
	seq.stderr = io.Discard

	rec, err := seq.Build(context.Background(), BuildRequest{ProjectFile: "Solo.csproj"})
	require.NoError(t, err)

	assert.Equal(t, v1.BuildSucceeded, rec.Status)
	assert.Zero(t, rec.MetadataFiles)
	assert.Equal(t, 1, runner.calls)

	backups, err := metadata.FindBackups(root)
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestBuildAnnotatesTitleOncePerBuild(t *testing.T) {
	runner := &stubRunner{exitCode: 0}
	f := newFixture(t, runner)

	var staged []string
	runner.inspect = func() {
		staged = append(staged, readFile(t, f.appMeta))
	}

	_, err := f.seq.Build(context.Background(), BuildRequest{ProjectFile: "App.csproj"})
	require.NoError(t, err)
	_, err = f.seq.Build(context.Background(), BuildRequest{ProjectFile: "App.csproj"})
	require.NoError(t, err)

	require.Len(t, staged, 2)
	assert.Equal(t, staged[0], staged[1])
	assert.Equal(t, 1, strings.Count(staged[1], "(compilation: release, built by: builder)"))
}

func TestBuildDryRunTouchesNothing(t *testing.T) {
	runner := &stubRunner{exitCode: 0}
	f := newFixture(t, runner)

	rec, err := f.seq.Build(context.Background(), BuildRequest{ProjectFile: "App.csproj", DryRun: true})
	require.NoError(t, err)

	assert.Zero(t, runner.calls)
	assert.Empty(t, rec.Status)
	assert.Equal(t, "2012.01.14.2317", rec.Version)
	assert.Equal(t, 2, rec.MetadataFiles)
	assert.Equal(t, "original app metadata", readFile(t, f.appMeta))
	assert.NoDirExists(t, f.outputDir)
}

func TestBuildProjectNotFound(t *testing.T) {
	runner := &stubRunner{exitCode: 0}
	f := newFixture(t, runner)

	_, err := f.seq.Build(context.Background(), BuildRequest{ProjectFile: "Missing.csproj"})
	require.Error(t, err)

	assert.True(t, errs.IsCode(err, errs.ErrProjectNotFound))
	assert.Zero(t, runner.calls)
	assert.Equal(t, "original app metadata", readFile(t, f.appMeta))
}

func TestBuildRejectsEmptyProjectFile(t *testing.T) {
	f := newFixture(t, &stubRunner{})

	_, err := f.seq.Build(context.Background(), BuildRequest{})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrInvalidRequest))
}

func TestBuildRefusesStrandedBackup(t *testing.T) {
	runner := &stubRunner{exitCode: 0}
	f := newFixture(t, runner)
	writeFile(t, f.appMeta+metadata.BackupSuffix, "stranded original")

	rec, err := f.seq.Build(context.Background(), BuildRequest{ProjectFile: "App.csproj"})
	require.Error(t, err)

	assert.True(t, errs.IsCode(err, errs.ErrMetadataStage))
	assert.Zero(t, runner.calls)
	assert.Equal(t, v1.BuildFailed, rec.Status)
	assert.Equal(t, "stranded original", readFile(t, f.appMeta+metadata.BackupSuffix))
	assert.Equal(t, "original app metadata", readFile(t, f.appMeta))
}

func TestBuildResolvesProjectByName(t *testing.T) {
	runner := &stubRunner{exitCode: 0}
	f := newFixture(t, runner)
	nested := filepath.Join(f.root, "src", "Deep", "Nested.csproj")
	writeFile(t, nested, "<Project/>")

	rec, err := f.seq.Build(context.Background(), BuildRequest{ProjectFile: "Nested.csproj"})
	require.NoError(t, err)
	assert.Equal(t, nested, rec.ProjectFile)
}

func TestBuildDescriptorOverride(t *testing.T) {
	runner := &stubRunner{exitCode: 0}
	f := newFixture(t, runner)

	var staged string
	runner.inspect = func() {
		staged = readFile(t, f.appMeta)
	}

	_, err := f.seq.Build(context.Background(), BuildRequest{
		ProjectFile: "App.csproj",
		Descriptor:  &v1.Descriptor{Title: "Hotfix", Version: "3.2"},
	})
	require.NoError(t, err)

	assert.Contains(t, staged, `AssemblyTitleAttribute("Hotfix (compilation: release, built by: builder)")`)
	assert.Contains(t, staged, `AssemblyVersionAttribute("3.2")`)
	assert.Contains(t, staged, `AssemblyInformationalVersionAttribute("1.0 (release)")`)
}

func TestBuildPersistsRecord(t *testing.T) {
	runner := &stubRunner{exitCode: 1}
	f := newFixture(t, runner)

	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer db.Close()
	f.seq.state = db

	rec, buildErr := f.seq.Build(context.Background(), BuildRequest{ProjectFile: "App.csproj"})
	require.Error(t, buildErr)
	assert.NotEmpty(t, rec.ID)

	stored, err := db.ListBuilds("", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, v1.BuildFailed, stored[0].Status)
	assert.Equal(t, 1, stored[0].ExitCode)
	assert.Equal(t, rec.ID, stored[0].ID)
}

// hookPlugin implements v1.PluginV1 with a fixed hook map.
type hookPlugin struct {
	name  string
	hooks map[string]v1.HookFunc
}

func (p *hookPlugin) Name() string                  { return p.name }
func (p *hookPlugin) APIVersion() string            { return v1.PluginAPIVersion }
func (p *hookPlugin) Init(map[string]string) error  { return nil }
func (p *hookPlugin) Hooks() map[string]v1.HookFunc { return p.hooks }
func (p *hookPlugin) Shutdown() error               { return nil }

func TestBuildPreBuildHookAbortsBeforeStaging(t *testing.T) {
	runner := &stubRunner{exitCode: 0}
	f := newFixture(t, runner)

	host := plugin.NewHost(logger.Nop())
	require.NoError(t, host.Register(&hookPlugin{name: "veto", hooks: map[string]v1.HookFunc{
		plugin.HookPreBuild: func(v1.HookContext) error { return errors.New("blocked by policy") },
	}}))
	f.seq.plugins = host

	rec, err := f.seq.Build(context.Background(), BuildRequest{ProjectFile: "App.csproj"})
	require.Error(t, err)

	assert.Zero(t, runner.calls)
	assert.Equal(t, v1.BuildFailed, rec.Status)
	assert.Equal(t, "original app metadata", readFile(t, f.appMeta))
	backups, berr := metadata.FindBackups(f.root)
	require.NoError(t, berr)
	assert.Empty(t, backups)
}

func TestBuildPostBuildHookSeesOutcome(t *testing.T) {
	runner := &stubRunner{exitCode: 0}
	f := newFixture(t, runner)

	var got v1.HookContext
	host := plugin.NewHost(logger.Nop())
	require.NoError(t, host.Register(&hookPlugin{name: "observer", hooks: map[string]v1.HookFunc{
		plugin.HookPostBuild: func(hctx v1.HookContext) error {
			got = hctx
			return nil
		},
	}}))
	f.seq.plugins = host

	_, err := f.seq.Build(context.Background(), BuildRequest{ProjectFile: "App.csproj"})
	require.NoError(t, err)

	assert.Equal(t, f.project, got.ProjectFile)
	assert.Equal(t, "2012.01.14.2317", got.Version)
	assert.Equal(t, "succeeded", got.Metadata["status"])
	assert.Equal(t, "0", got.Metadata["exit_code"])
}

func TestVersionToken(t *testing.T) {
	assert.Equal(t, "2012.01.14.2317", VersionToken(fixedTime))
	assert.Equal(t, "2026.08.02.0905", VersionToken(time.Date(2026, 8, 2, 9, 5, 59, 0, time.UTC)))
}

func TestMSBuildArgs(t *testing.T) {
	args := MSBuildArgs("debug", `/build/out`, `/src/My.sln`)
	assert.Equal(t, []string{
		"/p:Configuration=debug",
		"/t:Clean;Rebuild",
		"/p:OutputPath=/build/out",
		"/src/My.sln",
	}, args)
}
