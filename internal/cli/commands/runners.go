// Runner selection shared by build, pack, and release.
package commands

import (
	"fmt"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/internal/core/config"
	"github.com/gantry-build/gantry/internal/toolchain"
)

// resolveRunner constructs the toolchain runner the loaded config selects.
// An override names a runner kind directly (the build --runner flag); the
// persistent --agent flag forces the agent runner. The returned closer
// releases any transport the runner holds.
func resolveRunner(rt *Runtime, override string) (toolchain.Runner, func(), error) {
	cfg := rt.Config

	kind := cfg.Toolchain.Runner
	if override != "" {
		kind = override
	}
	if rt.Flags.Agent != "" {
		kind = config.RunnerAgent
	}

	switch kind {
	case config.RunnerLocal:
		return toolchain.NewLocalRunner(rt.Log), func() {}, nil

	case config.RunnerContainer:
		client, err := toolchain.NewClient("", rt.Log)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Toolchain.Container.Image == "" {
			client.Close()
			return nil, nil, fmt.Errorf("container runner selected but toolchain.container.image is not set")
		}
		mounts := []string{cfg.Project.Root, cfg.Toolchain.OutputDir}
		runner := toolchain.NewContainerRunner(
			client,
			cfg.Toolchain.Container.Image,
			cfg.Toolchain.Container.Command,
			mounts,
			rt.Log,
		)
		return runner, func() { _ = client.Close() }, nil

	case config.RunnerAgent:
		name := cfg.Toolchain.Agent
		if rt.Flags.Agent != "" {
			name = rt.Flags.Agent
		}
		spec, err := agentSpec(rt, name)
		if err != nil {
			return nil, nil, err
		}
		return toolchain.NewAgentRunner(*spec, rt.Log), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown runner %q (want local, container or agent)", kind)
	}
}

// agentSpec resolves an agent by name from gantry.yaml first, then from
// the registered agents in state.
func agentSpec(rt *Runtime, name string) (*v1.AgentSpec, error) {
	if name == "" {
		return nil, fmt.Errorf("agent runner selected but no agent named (set toolchain.agent or pass --agent)")
	}
	if spec := rt.Config.AgentByName(name); spec != nil {
		return spec, nil
	}
	if rt.State != nil {
		info, err := rt.State.GetAgent(name)
		if err != nil {
			return nil, err
		}
		if info != nil {
			return &info.Spec, nil
		}
	}
	return nil, fmt.Errorf("agent %q not found in gantry.yaml or the registry", name)
}
