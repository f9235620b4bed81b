package toolchain

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/gantry-build/gantry/internal/core/logger"
)

// LocalRunner executes tools as child processes of the current process.
type LocalRunner struct {
	log *logger.Logger
}

// NewLocalRunner constructs a LocalRunner.
func NewLocalRunner(log *logger.Logger) *LocalRunner {
	return &LocalRunner{log: log}
}

// Name identifies the runner in logs and build records.
func (r *LocalRunner) Name() string { return "local" }

// Run executes the invocation with os/exec. A nonzero exit from the tool
// is returned as the exit code with a nil error.
func (r *LocalRunner) Run(ctx context.Context, inv Invocation, stdout, stderr io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, inv.Tool, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.log.Debug("toolchain.exec", "runner", r.Name(), "tool", inv.Tool, "args", inv.Args, "dir", inv.Dir)

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("launch %s: %w", inv.Tool, err)
	}
	return 0, nil
}
