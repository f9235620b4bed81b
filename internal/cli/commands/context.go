// Package commands provides the shared context type and all CLI subcommands.
package commands

import (
	"context"

	"github.com/gantry-build/gantry/internal/core/config"
	"github.com/gantry-build/gantry/internal/core/logger"
	"github.com/gantry-build/gantry/internal/core/plugin"
	"github.com/gantry-build/gantry/internal/core/state"
)

// contextKey is the key type for values stored in a command context.
type contextKey string

const runtimeContextKey contextKey = "gantry.runtime"

// GlobalFlags holds the parsed global flags for use by subcommands.
type GlobalFlags struct {
	Agent      string
	Debug      bool
	JSONOutput bool
	DryRun     bool
}

// Runtime is the shared dependency bundle injected into each subcommand via context.
type Runtime struct {
	Config  *config.Config
	Log     *logger.Logger
	State   *state.DB
	Plugins *plugin.Host
	Flags   GlobalFlags
}

// NewContext returns a new context carrying the Runtime.
func NewContext(parent context.Context, rt *Runtime) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithValue(parent, runtimeContextKey, rt)
}

// FromContext extracts the Runtime from ctx. Panics if not present (programming error).
func FromContext(ctx context.Context) *Runtime {
	rt, ok := ctx.Value(runtimeContextKey).(*Runtime)
	if !ok || rt == nil {
		panic("gantry: Runtime not found in context — missing PersistentPreRunE?")
	}
	return rt
}
