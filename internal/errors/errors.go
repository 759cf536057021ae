// Package errors provides structured error types for ab-av1 operations.
package errors

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrorKind represents the category of an error.
type ErrorKind int

const (
	// KindIO represents I/O errors.
	KindIO ErrorKind = iota
	// KindPrecondition represents invalid input detected before any process is spawned.
	KindPrecondition
	// KindProbe represents a probe field that could not be determined.
	KindProbe
	// KindCommand represents external command execution errors.
	KindCommand
	// KindParse represents tool output that lacked an expected record.
	KindParse
	// KindSearch represents a search that found no acceptable CRF.
	KindSearch
	// KindCache represents cache store failures.
	KindCache
	// KindConfig represents configuration validation errors.
	KindConfig
	// KindCancelled represents user-cancelled operations.
	KindCancelled
)

// String returns a string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "I/O error"
	case KindPrecondition:
		return "Invalid argument"
	case KindProbe:
		return "Probe error"
	case KindCommand:
		return "Command error"
	case KindParse:
		return "Parse error"
	case KindSearch:
		return "Search failed"
	case KindCache:
		return "Cache error"
	case KindConfig:
		return "Configuration error"
	case KindCancelled:
		return "Operation cancelled"
	default:
		return "Unknown error"
	}
}

// CommandErrorKind represents the type of command error.
type CommandErrorKind int

const (
	// CommandStart means the command failed to start.
	CommandStart CommandErrorKind = iota
	// CommandWait means waiting for the command failed.
	CommandWait
	// CommandFailed means the command exited non-zero or was killed by a signal.
	CommandFailed
)

// NoExitCode is stored in CommandError.ExitCode when the process was
// terminated by a signal.
const NoExitCode = -1

// CommandError represents an error from executing an external command.
type CommandError struct {
	Command    string
	Kind       CommandErrorKind
	ExitCode   int
	Stderr     string
	Underlying error
}

// ExitCodeString renders the exit code, or "None" for signal termination.
func (e *CommandError) ExitCodeString() string {
	if e.ExitCode == NoExitCode {
		return "None"
	}
	return fmt.Sprintf("%d", e.ExitCode)
}

func (e *CommandError) Error() string {
	switch e.Kind {
	case CommandStart:
		return fmt.Sprintf("failed to execute %s: %v", e.Command, e.Underlying)
	case CommandWait:
		return fmt.Sprintf("failed to wait for %s: %v", e.Command, e.Underlying)
	case CommandFailed:
		if e.Stderr != "" {
			return fmt.Sprintf("%s exit code %s\n---stderr---\n%s\n------------", e.Command, e.ExitCodeString(), e.Stderr)
		}
		return fmt.Sprintf("%s exit code %s", e.Command, e.ExitCodeString())
	default:
		return fmt.Sprintf("command %s error: %v", e.Command, e.Underlying)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Underlying
}

// CoreError is the main error type for ab-av1 operations.
type CoreError struct {
	Kind       ErrorKind
	Message    string
	Underlying error
}

func (e *CoreError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error {
	return e.Underlying
}

// Is reports whether target matches this error's kind.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewIOError creates a new I/O error.
func NewIOError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindIO, Message: message, Underlying: underlying}
}

// NewPreconditionError creates an error for invalid arguments.
func NewPreconditionError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindPrecondition, Message: message, Underlying: underlying}
}

// NewProbeError creates an error for a probe field that is unavailable.
func NewProbeError(field string, underlying error) *CoreError {
	return &CoreError{Kind: KindProbe, Message: fmt.Sprintf("probe failed to determine %s", field), Underlying: underlying}
}

// NewCommandStartError creates an error for when a command fails to start.
func NewCommandStartError(cmd string, err error) *CommandError {
	return &CommandError{Command: cmd, Kind: CommandStart, ExitCode: NoExitCode, Underlying: err}
}

// NewCommandWaitError creates an error for when waiting for a command fails.
func NewCommandWaitError(cmd string, err error) *CommandError {
	return &CommandError{Command: cmd, Kind: CommandWait, ExitCode: NoExitCode, Underlying: err}
}

// NewCommandFailedError creates an error for a command that exited unsuccessfully.
// Pass NoExitCode when the process was killed by a signal.
func NewCommandFailedError(cmd string, exitCode int, stderr string) *CommandError {
	return &CommandError{Command: cmd, Kind: CommandFailed, ExitCode: exitCode, Stderr: stderr}
}

// NewParseError creates an error for tool output missing an expected record.
func NewParseError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindParse, Message: message, Underlying: underlying}
}

// NewSearchError wraps a search failure.
func NewSearchError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindSearch, Message: message, Underlying: underlying}
}

// NewCacheError creates a cache error. Callers log these rather than return them.
func NewCacheError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindCache, Message: message, Underlying: underlying}
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindConfig, Message: message, Underlying: underlying}
}

// NewCancelledError creates an error for user-cancelled operations.
func NewCancelledError() *CoreError {
	return &CoreError{Kind: KindCancelled, Message: "operation was cancelled by the user"}
}

// IsKind checks if the error has the specified kind.
func IsKind(err error, kind ErrorKind) bool {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Kind == kind
	}
	return false
}

// IsCancelled checks if the error is a cancellation error.
func IsCancelled(err error) bool {
	return IsKind(err, KindCancelled)
}

// AsCommandError extracts a CommandError from an error chain.
func AsCommandError(err error) (*CommandError, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr, true
	}
	return nil, false
}

// WrapExecError converts the error returned by exec.Cmd.Wait into a CommandError.
func WrapExecError(cmd string, err error, stderr string) *CommandError {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			code = NoExitCode
		}
		return NewCommandFailedError(cmd, code, stderr)
	}
	return NewCommandWaitError(cmd, err)
}
