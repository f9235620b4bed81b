// Package preflight inspects the environment a build would run in and
// reports per-check results, without touching any project file.
package preflight

import (
	"context"
	"fmt"

	"github.com/gantry-build/gantry/internal/core/config"
	"github.com/gantry-build/gantry/internal/core/logger"
	"github.com/gantry-build/gantry/internal/metadata"
	"github.com/gantry-build/gantry/internal/toolchain"
	"github.com/gantry-build/gantry/pkg/fsutil"
)

// Status classifies the outcome of a single preflight check.
type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Result is the outcome of one preflight check.
type Result struct {
	Name   string
	Status Status
	Detail string
}

// Checker runs the preflight checks for a loaded configuration.
type Checker struct {
	cfg *config.Config
	log *logger.Logger
}

// NewChecker constructs a Checker.
func NewChecker(cfg *config.Config, log *logger.Logger) *Checker {
	return &Checker{cfg: cfg, log: log}
}

// Run executes every check and returns the results in a fixed order.
// A failing check never stops the remaining checks.
func (c *Checker) Run(ctx context.Context) []Result {
	checks := []func(context.Context) Result{
		c.checkProjectRoot,
		c.checkMetadata,
		c.checkBackups,
		c.checkCompiler,
		c.checkPackager,
		c.checkOutputDir,
		c.checkRunner,
	}

	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		res := check(ctx)
		if res.Status != StatusOK {
			c.log.Debug("preflight check not ok",
				"check", res.Name,
				"status", string(res.Status),
				"detail", res.Detail,
			)
		}
		results = append(results, res)
	}
	return results
}

// Failed reports whether any result is a hard failure.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Status == StatusFail {
			return true
		}
	}
	return false
}

func (c *Checker) checkProjectRoot(context.Context) Result {
	root := c.cfg.Project.Root
	if !fsutil.IsDir(root) {
		return Result{Name: "project root", Status: StatusFail, Detail: fmt.Sprintf("%s does not exist", root)}
	}
	return Result{Name: "project root", Status: StatusOK, Detail: root}
}

func (c *Checker) checkMetadata(context.Context) Result {
	files, err := metadata.Discover(c.cfg.Project.Root, c.log)
	if err != nil {
		return Result{Name: "metadata files", Status: StatusFail, Detail: err.Error()}
	}
	if files.Len() == 0 {
		return Result{
			Name:   "metadata files",
			Status: StatusWarn,
			Detail: fmt.Sprintf("no %s files under %s", metadata.FileName, c.cfg.Project.Root),
		}
	}
	return Result{Name: "metadata files", Status: StatusOK, Detail: fmt.Sprintf("%d found", files.Len())}
}

func (c *Checker) checkBackups(context.Context) Result {
	backups, err := metadata.FindBackups(c.cfg.Project.Root)
	if err != nil {
		return Result{Name: "stranded backups", Status: StatusFail, Detail: err.Error()}
	}
	if len(backups) > 0 {
		return Result{
			Name:   "stranded backups",
			Status: StatusWarn,
			Detail: fmt.Sprintf("%d %s file(s) left behind, run `gantry sweep`", len(backups), metadata.BackupSuffix),
		}
	}
	return Result{Name: "stranded backups", Status: StatusOK, Detail: "none"}
}

func (c *Checker) checkCompiler(context.Context) Result {
	if c.cfg.Toolchain.Runner != config.RunnerLocal {
		return Result{
			Name:   "compiler",
			Status: StatusOK,
			Detail: fmt.Sprintf("resolved by %s runner", c.cfg.Toolchain.Runner),
		}
	}
	path := c.cfg.Toolchain.MSBuild
	if !fsutil.IsFile(path) {
		return Result{Name: "compiler", Status: StatusFail, Detail: fmt.Sprintf("%s not found", path)}
	}
	return Result{Name: "compiler", Status: StatusOK, Detail: path}
}

// checkPackager warns rather than fails: builds run without the packaging
// tool, only `gantry pack` needs it.
func (c *Checker) checkPackager(context.Context) Result {
	if c.cfg.Toolchain.Runner != config.RunnerLocal {
		return Result{
			Name:   "packager",
			Status: StatusOK,
			Detail: fmt.Sprintf("resolved by %s runner", c.cfg.Toolchain.Runner),
		}
	}
	path := c.cfg.Toolchain.NuGet
	if !fsutil.IsFile(path) {
		return Result{Name: "packager", Status: StatusWarn, Detail: fmt.Sprintf("%s not found", path)}
	}
	return Result{Name: "packager", Status: StatusOK, Detail: path}
}

func (c *Checker) checkOutputDir(context.Context) Result {
	dir := c.cfg.Toolchain.OutputDir
	if err := checkWritable(dir); err != nil {
		return Result{Name: "output directory", Status: StatusFail, Detail: err.Error()}
	}
	return Result{Name: "output directory", Status: StatusOK, Detail: dir}
}

func (c *Checker) checkRunner(ctx context.Context) Result {
	switch c.cfg.Toolchain.Runner {
	case config.RunnerLocal:
		return Result{Name: "runner", Status: StatusOK, Detail: "local"}
	case config.RunnerContainer:
		return c.checkDocker(ctx)
	case config.RunnerAgent:
		return c.checkAgent(ctx)
	default:
		return Result{
			Name:   "runner",
			Status: StatusFail,
			Detail: fmt.Sprintf("unknown runner %q", c.cfg.Toolchain.Runner),
		}
	}
}

func (c *Checker) checkDocker(ctx context.Context) Result {
	client, err := toolchain.NewClient("", c.log)
	if err != nil {
		return Result{Name: "runner", Status: StatusFail, Detail: fmt.Sprintf("docker: %v", err)}
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return Result{Name: "runner", Status: StatusFail, Detail: fmt.Sprintf("docker daemon unreachable: %v", err)}
	}
	return Result{
		Name:   "runner",
		Status: StatusOK,
		Detail: fmt.Sprintf("container (%s)", c.cfg.Toolchain.Container.Image),
	}
}

func (c *Checker) checkAgent(ctx context.Context) Result {
	name := c.cfg.Toolchain.Agent
	spec := c.cfg.AgentByName(name)
	if spec == nil {
		return Result{Name: "runner", Status: StatusFail, Detail: fmt.Sprintf("agent %q is not defined", name)}
	}
	if spec.Key != "" && !fsutil.IsFile(spec.Key) {
		return Result{
			Name:   "runner",
			Status: StatusFail,
			Detail: fmt.Sprintf("agent %q: key file %s not found", name, spec.Key),
		}
	}

	// With a key on hand the probe goes all the way to an SSH echo,
	// otherwise only the TCP port is checked.
	probe := func() error { return CheckAgent(ctx, *spec, DefaultProbeTimeout) }
	if spec.Key != "" {
		probe = func() error { return CheckAgentSSH(ctx, *spec, DefaultProbeTimeout) }
	}
	if err := probe(); err != nil {
		return Result{Name: "runner", Status: StatusFail, Detail: fmt.Sprintf("agent %q: %v", name, err)}
	}
	return Result{
		Name:   "runner",
		Status: StatusOK,
		Detail: fmt.Sprintf("agent %q (%s:%d)", name, spec.Host, spec.Port),
	}
}
