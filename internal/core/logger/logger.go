// Package logger provides the structured logging engine for Gantry.
// Uses log/slog with stderr and optional file sinks, plus an append-only
// audit trail of build and packaging runs under the Gantry home.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Logger
// ─────────────────────────────────────────────────────────────────────────────

// Logger wraps slog.Logger with Gantry-specific utilities.
type Logger struct {
	*slog.Logger
	auditW io.Writer // append-only audit log writer (nil = disabled)
}

// Init initialises the global logger. Safe to call multiple times (idempotent after first call).
func Init(level, format, logFile, gantryHome string, debug bool) (*Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if debug {
		lvl = slog.LevelDebug
	}

	// Build multi-writer: always write to stderr, optionally to file
	writers := []io.Writer{os.Stderr}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0750); err == nil {
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
			if err == nil {
				writers = append(writers, f)
			}
		}
	}

	out := io.MultiWriter(writers...)

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: lvl, AddSource: debug}
	if format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	base := slog.New(handler)
	slog.SetDefault(base)

	// Audit log
	var auditW io.Writer
	if gantryHome != "" {
		if err := os.MkdirAll(gantryHome, 0750); err == nil {
			auditPath := filepath.Join(gantryHome, "audit.log")
			if af, err := os.OpenFile(auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640); err == nil {
				auditW = af
			}
		}
	}

	return &Logger{
		Logger: base,
		auditW: auditW,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Audit logging
// ─────────────────────────────────────────────────────────────────────────────

// AuditEntry represents a single audit log event.
type AuditEntry struct {
	Timestamp time.Time         `json:"ts"`
	Op        string            `json:"op"`
	User      string            `json:"user"`
	Project   string            `json:"project,omitempty"`
	Version   string            `json:"version,omitempty"`
	Result    string            `json:"result"` // success | failure
	Meta      map[string]string `json:"meta,omitempty"`
}

// Nop returns a logger that discards everything. Used by tests and by
// code paths that run before Init.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))}
}

// Audit writes an append-only audit log entry.
func (l *Logger) Audit(entry AuditEntry) {
	l.Info("audit",
		"op", entry.Op,
		"user", entry.User,
		"project", entry.Project,
		"version", entry.Version,
		"result", entry.Result,
	)
	if l.auditW == nil {
		return
	}
	line := fmt.Sprintf(`{"ts":%q,"op":%q,"user":%q,"project":%q,"version":%q,"result":%q}`+"\n",
		entry.Timestamp.UTC().Format(time.RFC3339),
		entry.Op, entry.User, entry.Project, entry.Version, entry.Result,
	)
	_, _ = l.auditW.Write([]byte(line))
}
