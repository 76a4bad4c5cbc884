package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/dotheat/internal/remote"
	"github.com/roach88/dotheat/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (load interrupted, server error)
	ExitCommandError = 2 // Command error (bad arguments, config, or database)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Error codes reported in CLI and HTTP error responses.
const (
	CodeCommandError      = "command_error"      // bad arguments or config
	CodeFailure           = "failure"            // anything else
	CodeStorage           = "storage_error"      // local cache unreadable or unwritable
	CodeRemoteUnavailable = "remote_unavailable" // counter service down or breaker open
	CodeInterrupted       = "interrupted"        // cancelled by signal
)

// ErrorCode classifies err for error output. The cause wins over the exit
// code, so a database that fails to open reports storage_error.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return CodeInterrupted
	case store.IsStorageError(err):
		return CodeStorage
	case errors.Is(err, remote.ErrUnavailable), remote.IsNetworkError(err):
		return CodeRemoteUnavailable
	case GetExitCode(err) == ExitCommandError:
		return CodeCommandError
	default:
		return CodeFailure
	}
}

// OutputFormatter writes command results as a JSON envelope or as text.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose output; defaults to Writer
	Verbose   bool
	SessionID string // included in JSON responses when set
}

// CLIResponse is the JSON envelope for CLI output.
type CLIResponse struct {
	Status    string    `json:"status"` // "ok" or "error"
	Data      any       `json:"data,omitempty"`
	Error     *CLIError `json:"error,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// CLIError is the error body of a response.
type CLIError struct {
	Code    string `json:"code"` // one of the Code constants
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Emit writes data. In JSON mode it is wrapped in an ok envelope; in text
// mode text renders it, or it is printed with fmt when text is nil.
func (f *OutputFormatter) Emit(data any, text func(io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:    "ok",
			Data:      data,
			SessionID: f.SessionID,
		})
	}
	if text != nil {
		text(f.Writer)
		return nil
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Fail writes err as an error response classified by ErrorCode.
func (f *OutputFormatter) Fail(err error) error {
	return f.Error(ErrorCode(err), err.Error(), nil)
}

// Error writes an error response with an explicit code.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:    "error",
			Error:     &CLIError{Code: code, Message: message, Details: details},
			SessionID: f.SessionID,
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a line only in verbose mode, to ErrWriter when set so
// JSON on Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
