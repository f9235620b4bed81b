// Package netutil provides network utility helpers used across Gantry.
package netutil

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"time"
)

// agentNameRegex enforces DNS-label-safe agent names.
var agentNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]{0,62}$`)

// IsValidAgentName returns true if name is a DNS-label-safe agent name.
func IsValidAgentName(name string) bool {
	return agentNameRegex.MatchString(name)
}

// IsValidPort returns true if port is in the valid TCP range.
func IsValidPort(port int) bool {
	return port >= 1 && port <= 65535
}

// ProbeTCP dials host:port and returns nil if successful within the timeout.
func ProbeTCP(ctx context.Context, host string, port int, timeout time.Duration) error {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("tcp probe to %s failed: %w", addr, err)
	}
	conn.Close()
	return nil
}

// SplitHostPort wraps net.SplitHostPort with a default port fallback.
func SplitHostPort(addr string, defaultPort int) (host string, port string, err error) {
	host, port, err = net.SplitHostPort(addr)
	if err != nil {
		// No port in addr: treat the entire string as host
		return addr, fmt.Sprintf("%d", defaultPort), nil
	}
	return host, port, nil
}
