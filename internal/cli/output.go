package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/punchcard/internal/gateway"
	"github.com/roach88/punchcard/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess       = 0 // Successful execution
	ExitFailure       = 1 // Domain rejection, failed scenarios
	ExitCommandError  = 2 // Command error (bad input, missing keypair, store not found, etc.)
	ExitIndeterminate = 3 // The action may or may not have been applied
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code
	Message string // Error message
	Err     error  // Underlying error (optional)

	// Reported is set when the error was already written through an
	// OutputFormatter, so main must not print it again.
	Reported bool
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
// Returns ExitCommandError (2) if the error is not an ExitError; those come
// from cobra itself (unknown flags, wrong argument counts).
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// IsReported reports whether err was already shown to the user.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// exitCodeFor maps a ledger error onto an exit code by its class.
func exitCodeFor(err error) int {
	switch ir.Classify(err) {
	case ir.ClassNone:
		return ExitSuccess
	case ir.ClassRejected:
		return ExitFailure
	case ir.ClassUnconfirmed:
		return ExitIndeterminate
	default:
		return ExitCommandError
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // ledger error code, e.g. "NOT_CLOCKED_IN"
	Class   string `json:"class,omitempty"`   // rejected | unconfirmed | invalid | internal
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// In text mode data is printed with fmt, so views implement fmt.Stringer.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// LedgerError reports a gateway error and returns the ExitError the
// command should return. The message is the caller-facing taxonomy text;
// the raw error is only shown with --verbose.
func (f *OutputFormatter) LedgerError(err error) error {
	code := string(ir.CodeOf(err))
	if code == "" {
		code = "INTERNAL"
	}
	msg := gateway.Message(err)
	exit := exitCodeFor(err)

	if f.Format == "json" {
		resp := CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Class:   ir.Classify(err).String(),
				Message: msg,
			},
		}
		var e *ir.Error
		if errors.As(err, &e) && !e.Address.IsZero() {
			resp.Error.Details = map[string]string{"address": e.Address.String()}
		}
		if encErr := json.NewEncoder(f.Writer).Encode(resp); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintln(f.Writer, errorLine(code, msg))
		f.VerboseLog("cause: %v", err)
	}
	return &ExitError{Code: exit, Message: msg, Err: err, Reported: true}
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
