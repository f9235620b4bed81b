package toolchain

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/internal/core/logger"
	"github.com/gantry-build/gantry/pkg/errs"
	"github.com/gantry-build/gantry/pkg/sshutil"
)

// AgentRunner executes invocations on a remote build agent over SSH.
// Paths in the invocation refer to the agent's filesystem: the source
// tree must already exist at the same location on the agent, typically
// via a checkout or a shared mount.
type AgentRunner struct {
	spec v1.AgentSpec
	log  *logger.Logger
}

// NewAgentRunner constructs an AgentRunner for the given agent.
func NewAgentRunner(spec v1.AgentSpec, log *logger.Logger) *AgentRunner {
	return &AgentRunner{spec: spec, log: log}
}

// Name identifies the runner in logs and build records.
func (r *AgentRunner) Name() string { return "agent:" + r.spec.Name }

// Run dials the agent, executes the invocation through its login shell
// and returns the remote exit status. The connection is dropped when ctx
// is cancelled, aborting the remote command.
func (r *AgentRunner) Run(ctx context.Context, inv Invocation, stdout, stderr io.Writer) (int, error) {
	cfg, err := sshutil.ClientConfig(r.spec.User, r.spec.Key, "")
	if err != nil {
		return -1, errs.Wrap(err, errs.ErrAgentConnect, "toolchain.agent").WithResource(r.spec.Name)
	}

	addr := net.JoinHostPort(r.spec.Host, strconv.Itoa(r.spec.Port))
	client, err := sshutil.Dial(addr, cfg)
	if err != nil {
		return -1, errs.Wrap(err, errs.ErrAgentConnect, "toolchain.agent").WithResource(addr)
	}
	defer client.Close()

	cmd := remoteCommand(inv)
	r.log.Debug("toolchain.exec", "runner", r.Name(), "addr", addr, "cmd", cmd)

	type result struct {
		code int
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		code, runErr := sshutil.StartCommand(client, cmd, stdout, stderr)
		resCh <- result{code, runErr}
	}()

	select {
	case <-ctx.Done():
		client.Close()
		return -1, errs.Wrap(ctx.Err(), errs.ErrAgentTimeout, "toolchain.agent").WithResource(r.spec.Name)
	case res := <-resCh:
		if res.err != nil {
			return -1, errs.Wrap(res.err, errs.ErrAgentConnect, "toolchain.agent").WithResource(r.spec.Name)
		}
		return res.code, nil
	}
}

// remoteCommand renders the invocation as a single line for the agent's
// login shell. Arguments containing whitespace are double-quoted, which
// both sh and cmd.exe accept.
func remoteCommand(inv Invocation) string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, quoteArg(inv.Tool))
	for _, a := range inv.Args {
		parts = append(parts, quoteArg(a))
	}
	cmd := strings.Join(parts, " ")
	if inv.Dir != "" {
		cmd = fmt.Sprintf("cd %s && %s", quoteArg(inv.Dir), cmd)
	}
	return cmd
}

func quoteArg(s string) string {
	if s == "" || strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}
