// Package sshutil provides reusable SSH client helpers for Gantry's build agents.
package sshutil

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultPort is the standard SSH port.
const DefaultPort = 22

// ConnectTimeout is the default dial timeout for SSH connections.
const ConnectTimeout = 15 * time.Second

// ClientConfig builds an ssh.ClientConfig from a private key file.
// If knownHostsFile is non-empty, strict host key verification is enabled.
func ClientConfig(user, keyPath, knownHostsFile string) (*ssh.ClientConfig, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read key %q: %w", keyPath, err)
	}

	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	cfg := &ssh.ClientConfig{
		User:    user,
		Auth:    []ssh.AuthMethod{ssh.PublicKeys(signer)},
		Timeout: ConnectTimeout,
	}

	if knownHostsFile != "" {
		hostKeyCallback, err := knownhosts.New(knownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts %q: %w", knownHostsFile, err)
		}
		cfg.HostKeyCallback = hostKeyCallback
	} else {
		// Warn: insecure, only used for first-trust scenarios
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec
	}

	return cfg, nil
}

// Dial establishes an SSH connection to addr (host:port) using cfg.
func Dial(addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %q: %w", addr, err)
	}
	return client, nil
}

// RunCommand executes a shell command on the remote host and returns its combined output.
func RunCommand(client *ssh.Client, cmd string) (string, int, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", -1, fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	out, err := session.CombinedOutput(cmd)
	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			return string(out), exitErr.ExitStatus(), err
		}
		return string(out), -1, err
	}
	return string(out), 0, nil
}

// StartCommand runs a shell command on the remote host streaming stdout and
// stderr to the given writers, and returns the remote exit status.
func StartCommand(client *ssh.Client, cmd string, stdout, stderr io.Writer) (int, error) {
	session, err := client.NewSession()
	if err != nil {
		return -1, fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Run(cmd); err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			return exitErr.ExitStatus(), nil
		}
		return -1, err
	}
	return 0, nil
}

// FingerprintMD5 computes the legacy MD5 fingerprint of an SSH public key.
func FingerprintMD5(key ssh.PublicKey) string {
	sum := md5.Sum(key.Marshal()) //nolint:gosec
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, ":")
}
