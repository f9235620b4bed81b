// Package toolchain abstracts where the external build tools run: on this
// machine, inside a one-shot container, or on a remote agent over SSH.
package toolchain

import (
	"context"
	"io"
)

// Invocation is one external tool call. Tool is the executable path or
// name, Args its argument vector, Dir the working directory. Paths in
// Args are absolute so the same invocation is valid on every runner.
type Invocation struct {
	Tool string
	Args []string
	Dir  string
}

// Runner executes an invocation and reports the tool's exit code.
//
// The error return is reserved for failures to run the tool at all: a
// missing binary, an unreachable daemon, a dropped connection. A tool
// that launched and exited nonzero is reported through the exit code
// with a nil error; callers decide what nonzero means.
type Runner interface {
	Name() string
	Run(ctx context.Context, inv Invocation, stdout, stderr io.Writer) (int, error)
}
