// Package errs provides structured, user-friendly errors with machine-parseable codes.
package errs

import (
	"errors"
	"fmt"
)

// ErrorCode is a machine-parseable error identifier.
type ErrorCode string

const (
	// General
	ErrUnknown    ErrorCode = "ERR-000"
	ErrInternal   ErrorCode = "ERR-001"
	ErrConfig     ErrorCode = "ERR-002"
	ErrValidation ErrorCode = "ERR-003"

	// Build request errors
	ErrInvalidRequest  ErrorCode = "ERR-REQ-001"
	ErrProjectNotFound ErrorCode = "ERR-PROJ-001"

	// Metadata staging errors
	ErrMetadataStage      ErrorCode = "ERR-STAGE-001"
	ErrMetadataRestore    ErrorCode = "ERR-RESTORE-001"
	ErrMissingDescriptor  ErrorCode = "ERR-DESC-001"
	ErrMetadataOutputPrep ErrorCode = "ERR-STAGE-002"

	// Compiler errors
	ErrCompileFailed  ErrorCode = "ERR-COMPILE-001"
	ErrCompileUnknown ErrorCode = "ERR-COMPILE-002"
	ErrCompileLaunch  ErrorCode = "ERR-COMPILE-003"

	// Packaging errors
	ErrPackToolMissing ErrorCode = "ERR-PACK-001"
	ErrPackSpec        ErrorCode = "ERR-PACK-002"
	ErrPackBuild       ErrorCode = "ERR-PACK-003"

	// Agent errors
	ErrAgentNotFound ErrorCode = "ERR-AGENT-001"
	ErrAgentConnect  ErrorCode = "ERR-AGENT-002"
	ErrAgentTimeout  ErrorCode = "ERR-AGENT-003"

	// Container runner errors
	ErrDockerConnect ErrorCode = "ERR-DOCKER-001"
	ErrDockerPull    ErrorCode = "ERR-DOCKER-002"
	ErrDockerRun     ErrorCode = "ERR-DOCKER-003"

	// State errors
	ErrStateRead  ErrorCode = "ERR-STATE-001"
	ErrStateWrite ErrorCode = "ERR-STATE-002"

	// Plugin errors
	ErrPluginLoad ErrorCode = "ERR-PLUGIN-001"
	ErrPluginHook ErrorCode = "ERR-PLUGIN-002"
)

// GantryError is the standard structured error type used across all Gantry packages.
type GantryError struct {
	Code     ErrorCode // Machine-parseable error code
	Op       string    // Operation chain, e.g., "build.stage.rename"
	Resource string    // Resource identifier (file path, project, agent name, etc.)
	Cause    error     // Wrapped upstream error
	Advice   string    // Human-readable remediation hint
}

func (e *GantryError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("[%s] %s (%s): %v", e.Code, e.Op, e.Resource, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Op, e.Cause)
}

func (e *GantryError) Unwrap() error {
	return e.Cause
}

// UserMessage returns the formatted user-facing error message with remediation advice.
func (e *GantryError) UserMessage() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Op)
	if e.Resource != "" {
		msg += fmt.Sprintf(" (resource: %s)", e.Resource)
	}
	if e.Advice != "" {
		msg += fmt.Sprintf("\n  → %s", e.Advice)
	}
	return msg
}

// New creates a new GantryError.
func New(code ErrorCode, op string, cause error) *GantryError {
	return &GantryError{Code: code, Op: op, Cause: cause}
}

// Newf creates a new GantryError with a formatted message as the cause.
func Newf(code ErrorCode, op, format string, args ...any) *GantryError {
	return &GantryError{Code: code, Op: op, Cause: fmt.Errorf(format, args...)}
}

// WithResource sets the resource identifier on a GantryError.
func (e *GantryError) WithResource(resource string) *GantryError {
	e.Resource = resource
	return e
}

// WithAdvice sets the human-readable remediation hint on a GantryError.
func (e *GantryError) WithAdvice(advice string) *GantryError {
	e.Advice = advice
	return e
}

// Wrap wraps an existing error as a GantryError at a new operation boundary.
func Wrap(err error, code ErrorCode, op string) *GantryError {
	if err == nil {
		return nil
	}
	return &GantryError{Code: code, Op: op, Cause: err}
}

// IsCode reports whether any error in err's tree carries the given code.
// Aggregates are searched exhaustively, so a restore failure appended to
// a compile failure is still found under its own code.
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	if ge, ok := err.(*GantryError); ok {
		if ge.Code == code {
			return true
		}
		return IsCode(ge.Cause, code)
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, sub := range x.Unwrap() {
			if IsCode(sub, code) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return IsCode(x.Unwrap(), code)
	}
	return false
}

// AsGantry extracts the *GantryError from err, or returns nil.
func AsGantry(err error) *GantryError {
	var ge *GantryError
	if errors.As(err, &ge) {
		return ge
	}
	return nil
}
