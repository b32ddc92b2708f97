package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/WvvvWv/csvsplit/internal/core"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // A split failed
	ExitCommandError = 2 // Bad flags, unreadable manifest, bad configuration
)

// ExitError represents an error with a specific exit code.
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

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the JSON envelope for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // support code from core.MapError
	Message string      `json:"message"`           // technical message
	Action  string      `json:"action,omitempty"`  // what to do about it
	Details interface{} `json:"details,omitempty"` // additional context
}

// SplitLine is the one-line text form of a result.
func SplitLine(res core.SplitResult) string {
	if res.Success {
		return fmt.Sprintf("wrote %d shard(s) (strategy: %s)", res.FileCount, res.Strategy)
	}
	return "error: " + res.ErrorMessage()
}

// Result prints one split result in the configured format.
func (f *OutputFormatter) Result(res core.SplitResult) error {
	if f.Format != "json" {
		_, err := fmt.Fprintln(f.Writer, SplitLine(res))
		return err
	}
	if res.Success {
		return f.encode(CLIResponse{Status: "ok", Data: res})
	}
	return f.encode(CLIResponse{Status: "error", Error: cliError(res.ErrorMessage(), res)})
}

func (f *OutputFormatter) encode(v interface{}) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cliError(message string, details interface{}) *CLIError {
	msg := core.MapError(errors.New(message))
	return &CLIError{
		Code:    msg.Code,
		Message: message,
		Action:  msg.Action,
		Details: details,
	}
}
