package netutil

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

func TestIsValidAgentName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"simple", "buildbox", true},
		{"with digits and dashes", "build-agent-01", true},
		{"single char", "a", true},
		{"leading digit", "9node", true},
		{"max length", strings.Repeat("a", 63), true},
		{"empty", "", false},
		{"uppercase", "Buildbox", false},
		{"leading dash", "-lead", false},
		{"underscore", "node_1", false},
		{"dot", "node.local", false},
		{"too long", strings.Repeat("a", 64), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidAgentName(tt.in); got != tt.want {
				t.Errorf("IsValidAgentName(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsValidPort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		port int
		want bool
	}{
		{0, false},
		{-1, false},
		{1, true},
		{22, true},
		{65535, true},
		{65536, false},
	}
	for _, tt := range tests {
		if got := IsValidPort(tt.port); got != tt.want {
			t.Errorf("IsValidPort(%d) = %v, want %v", tt.port, got, tt.want)
		}
	}
}

func TestSplitHostPort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		addr        string
		defaultPort int
		wantHost    string
		wantPort    string
	}{
		{"host with port", "10.0.0.5:2222", 22, "10.0.0.5", "2222"},
		{"bare host gets default", "buildbox", 22, "buildbox", "22"},
		{"bare host custom default", "buildbox", 2200, "buildbox", "2200"},
		{"bracketed ipv6", "[::1]:22", 22, "::1", "22"},
		{"bare ipv6 falls back whole", "::1", 22, "::1", "22"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := SplitHostPort(tt.addr, tt.defaultPort)
			if err != nil {
				t.Fatalf("SplitHostPort(%q) error: %v", tt.addr, err)
			}
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("SplitHostPort(%q) = (%q, %q), want (%q, %q)",
					tt.addr, host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestProbeTCP(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	if err := ProbeTCP(context.Background(), "127.0.0.1", port, time.Second); err != nil {
		t.Errorf("probe of open port failed: %v", err)
	}

	ln.Close()
	if err := ProbeTCP(context.Background(), "127.0.0.1", port, time.Second); err == nil {
		t.Error("probe of closed port succeeded, want error")
	}
}
