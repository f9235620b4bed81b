package packaging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/internal/core/config"
	"github.com/gantry-build/gantry/internal/core/logger"
	"github.com/gantry-build/gantry/internal/core/state"
	"github.com/gantry-build/gantry/internal/toolchain"
	"github.com/gantry-build/gantry/pkg/errs"
)

var fixedTime = time.Date(2012, 1, 14, 23, 17, 0, 0, time.UTC)

// stubRunner records every invocation and returns exit codes from exits
// in call order, defaulting to 0 when the slice runs out.
type stubRunner struct {
	exits []int
	err   error
	invs  []toolchain.Invocation
}

func (r *stubRunner) Name() string { return "stub" }

func (r *stubRunner) Run(_ context.Context, inv toolchain.Invocation, _, _ io.Writer) (int, error) {
	r.invs = append(r.invs, inv)
	if r.err != nil {
		return -1, r.err
	}
	if n := len(r.invs) - 1; n < len(r.exits) {
		return r.exits[n], nil
	}
	return 0, nil
}

func newPackager(t *testing.T, runner toolchain.Runner) (*Packager, string) {
	t.Helper()
	root := t.TempDir()
	targetDir := filepath.Join(root, "PackageSource")
	require.NoError(t, os.MkdirAll(targetDir, 0o755))

	cfg := &config.Config{
		Toolchain: config.Toolchain{NuGet: "/opt/nuget"},
		Package: config.PackageConfig{
			SourceDir: targetDir,
			OutputDir: filepath.Join(root, "DeploymentPackages"),
		},
	}
	p := New(cfg, runner, nil, nil, logger.Nop())
	p.now = func() time.Time { return fixedTime }
	p.stdout = io.Discard
	p.stderr = io.Discard
	return p, targetDir
}

func TestResolveSpecFileName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty falls back", "", "package.nuspec"},
		{"bare name gains extension", "My.Web", "My.Web.nuspec"},
		{"existing extension kept", "pkg.nuspec", "pkg.nuspec"},
		{"other extension appended", "archive.tar", "archive.tar.nuspec"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSpecFileName(tt.in))
		})
	}
}

func TestPackGeneratesSpecThenPacks(t *testing.T) {
	runner := &stubRunner{}
	p, targetDir := newPackager(t, runner)

	rec, err := p.Pack(context.Background(), PackRequest{SpecName: "My.Web"})
	require.NoError(t, err)

	specPath := filepath.Join(targetDir, "My.Web.nuspec")
	assert.Equal(t, v1.PackageSucceeded, rec.Status)
	assert.Equal(t, specPath, rec.SpecFile)
	assert.Equal(t, "2012.01.14.2317", rec.Version)

	require.Len(t, runner.invs, 2)
	assert.Equal(t, toolchain.Invocation{
		Tool: "/opt/nuget",
		Args: []string{"spec", "-Force", "My.Web"},
		Dir:  targetDir,
	}, runner.invs[0])
	assert.Equal(t, toolchain.Invocation{
		Tool: "/opt/nuget",
		Args: []string{
			"pack", specPath,
			"-Version", "2012.01.14.2317",
			"-OutputDirectory", p.cfg.Package.OutputDir,
			"-NoPackageAnalysis",
		},
		Dir: targetDir,
	}, runner.invs[1])
}

func TestPackSpecGenerationFailure(t *testing.T) {
	runner := &stubRunner{exits: []int{1}}
	p, _ := newPackager(t, runner)

	rec, err := p.Pack(context.Background(), PackRequest{SpecName: "My.Web"})
	require.Error(t, err)

	assert.True(t, errs.IsCode(err, errs.ErrPackSpec))
	assert.Equal(t, v1.PackageFailed, rec.Status)
	assert.Len(t, runner.invs, 1)
}

func TestPackNonzeroExit(t *testing.T) {
	runner := &stubRunner{exits: []int{0, 2}}
	p, _ := newPackager(t, runner)

	rec, err := p.Pack(context.Background(), PackRequest{SpecName: "My.Web"})
	require.Error(t, err)

	assert.True(t, errs.IsCode(err, errs.ErrPackBuild))
	assert.Equal(t, v1.PackageFailed, rec.Status)
	assert.Len(t, runner.invs, 2)
}

func TestPackMissingTargetDir(t *testing.T) {
	runner := &stubRunner{}
	p, _ := newPackager(t, runner)

	_, err := p.Pack(context.Background(), PackRequest{
		TargetDir: filepath.Join(t.TempDir(), "absent"),
	})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrInvalidRequest))
	assert.Empty(t, runner.invs)
}

func TestPackFromTemplate(t *testing.T) {
	runner := &stubRunner{}
	p, targetDir := newPackager(t, runner)

	templateFile := filepath.Join(t.TempDir(), "spec.tmpl")
	require.NoError(t, os.WriteFile(templateFile, []byte("<id>{{.PackageId}}</id>\n<version>{{.Version}}</version>\n"), 0o644))

	rec, err := p.Pack(context.Background(), PackRequest{
		SpecName:     "Templated",
		TemplateFile: templateFile,
		TemplateTokens: map[string]string{
			"PackageId": "Acme.Web",
			"Version":   "4.2",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, v1.PackageSucceeded, rec.Status)

	spec, readErr := os.ReadFile(filepath.Join(targetDir, "Templated.nuspec"))
	require.NoError(t, readErr)
	assert.Equal(t, "<id>Acme.Web</id>\n<version>4.2</version>\n", string(spec))

	// Only the pack invocation runs; the spec came from the template.
	require.Len(t, runner.invs, 1)
	assert.Equal(t, "pack", runner.invs[0].Args[0])
}

func TestPackTemplateMissingToken(t *testing.T) {
	runner := &stubRunner{}
	p, _ := newPackager(t, runner)

	templateFile := filepath.Join(t.TempDir(), "spec.tmpl")
	require.NoError(t, os.WriteFile(templateFile, []byte("<id>{{.PackageId}}</id>"), 0o644))

	_, err := p.Pack(context.Background(), PackRequest{
		SpecName:       "Templated",
		TemplateFile:   templateFile,
		TemplateTokens: map[string]string{"Version": "4.2"},
	})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrPackSpec))
	assert.Empty(t, runner.invs)
}

func TestPackTemplateVerbatimWithoutTokens(t *testing.T) {
	runner := &stubRunner{}
	p, targetDir := newPackager(t, runner)

	templateFile := filepath.Join(t.TempDir(), "spec.tmpl")
	require.NoError(t, os.WriteFile(templateFile, []byte("static spec {{.NotAToken}}"), 0o644))

	_, err := p.Pack(context.Background(), PackRequest{
		SpecName:     "Static",
		TemplateFile: templateFile,
	})
	require.NoError(t, err)

	spec, readErr := os.ReadFile(filepath.Join(targetDir, "Static.nuspec"))
	require.NoError(t, readErr)
	assert.Equal(t, "static spec {{.NotAToken}}", string(spec))
}

func TestPackDryRun(t *testing.T) {
	runner := &stubRunner{}
	p, targetDir := newPackager(t, runner)

	rec, err := p.Pack(context.Background(), PackRequest{SpecName: "My.Web", DryRun: true})
	require.NoError(t, err)

	assert.Empty(t, runner.invs)
	assert.Empty(t, rec.Status)
	assert.NoFileExists(t, filepath.Join(targetDir, "My.Web.nuspec"))
}

func TestPackSpecNameFallsBackToLastBuild(t *testing.T) {
	runner := &stubRunner{}
	p, targetDir := newPackager(t, runner)

	db, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer db.Close()
	p.state = db

	_, err = db.AppendBuild(v1.BuildRecord{
		ProjectFile: "/src/checkout/My.Service.csproj",
		Status:      v1.BuildSucceeded,
	})
	require.NoError(t, err)

	rec, err := p.Pack(context.Background(), PackRequest{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(targetDir, "My.Service.nuspec"), rec.SpecFile)
}

func TestPackChecksLocalToolPath(t *testing.T) {
	p, _ := newPackager(t, toolchain.NewLocalRunner(logger.Nop()))
	p.cfg.Toolchain.NuGet = filepath.Join(t.TempDir(), "missing", "nuget.exe")

	_, err := p.Pack(context.Background(), PackRequest{SpecName: "My.Web"})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrPackToolMissing))
}

func TestStageContentRequiresExistingSource(t *testing.T) {
	p, _ := newPackager(t, &stubRunner{})
	err := p.StageContent(filepath.Join(t.TempDir(), "absent"), t.TempDir())
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrInvalidRequest))
}

func TestStageContent(t *testing.T) {
	p, _ := newPackager(t, &stubRunner{})

	content := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(content, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(content, "bin", "app.dll"), []byte("binary"), 0o644))

	staging := filepath.Join(t.TempDir(), "PackageSource")
	require.NoError(t, p.StageContent(content, staging))
	assert.FileExists(t, filepath.Join(staging, "bin", "app.dll"))
}
