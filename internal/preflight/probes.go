// Package preflight: connectivity and filesystem probe implementations.
package preflight

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	v1 "github.com/gantry-build/gantry/api/v1"
	"github.com/gantry-build/gantry/pkg/netutil"
	"github.com/gantry-build/gantry/pkg/sshutil"
)

// DefaultProbeTimeout bounds a single connectivity probe.
const DefaultProbeTimeout = 5 * time.Second

// CheckAgent dials the agent's SSH port and returns nil if it accepts
// connections within the timeout.
func CheckAgent(ctx context.Context, spec v1.AgentSpec, timeout time.Duration) error {
	if timeout == 0 {
		timeout = DefaultProbeTimeout
	}
	return netutil.ProbeTCP(ctx, spec.Host, spec.Port, timeout)
}

// ProbeAgent performs a one-off reachability probe and returns the AgentStatus.
func ProbeAgent(ctx context.Context, spec v1.AgentSpec, timeout time.Duration) v1.AgentStatus {
	if err := CheckAgent(ctx, spec, timeout); err != nil {
		return v1.AgentUnreachable
	}
	return v1.AgentReady
}

// CheckAgentSSH performs the deep agent probe: a TCP dial followed by an
// SSH session running echo on the remote host. Requires the agent's key.
func CheckAgentSSH(ctx context.Context, spec v1.AgentSpec, timeout time.Duration) error {
	if err := CheckAgent(ctx, spec, timeout); err != nil {
		return err
	}

	cfg, err := sshutil.ClientConfig(spec.User, spec.Key, "")
	if err != nil {
		return err
	}
	if timeout > 0 {
		cfg.Timeout = timeout
	}

	addr := net.JoinHostPort(spec.Host, strconv.Itoa(spec.Port))
	client, err := sshutil.Dial(addr, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	done := make(chan error, 1)
	go func() {
		out, code, err := sshutil.RunCommand(client, "echo gantry")
		switch {
		case err != nil:
			done <- err
		case code != 0 || !strings.Contains(out, "gantry"):
			done <- fmt.Errorf("echo probe returned %d: %q", code, strings.TrimSpace(out))
		default:
			done <- nil
		}
	}()

	select {
	case <-ctx.Done():
		client.Close()
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// checkWritable verifies that dir, or its nearest existing ancestor when dir
// has not been created yet, accepts new files.
func checkWritable(dir string) error {
	target := nearestExisting(dir)
	f, err := os.CreateTemp(target, ".gantry-doctor-*")
	if err != nil {
		return fmt.Errorf("write probe in %s: %w", target, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// nearestExisting walks up from path to the closest directory that exists.
func nearestExisting(path string) string {
	for {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
