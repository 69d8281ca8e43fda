package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/widetriple/internal/config"
	"github.com/roach88/widetriple/internal/ir"
	"github.com/roach88/widetriple/internal/ntriples"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Store failure, failed scenarios, index drift
	ExitCommandError = 2 // Bad arguments, unreadable config or input file
)

// Error codes reported in CLIError.Code.
const (
	CodeConfig        = "E_CONFIG"
	CodeInvalidTriple = "E_INVALID_TRIPLE"
	CodeSyntax        = "E_SYNTAX"
	CodeInput         = "E_INPUT"
	CodeStore         = "E_STORE"
	CodeDrift         = "E_INDEX_DRIFT"
	CodeTestFailed    = "E_TEST_FAILED"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code     int    // ExitFailure or ExitCommandError
	Message  string
	Err      error // optional
	Reported bool  // already written through an OutputFormatter
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

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error: ExitSuccess for nil,
// ExitFailure for anything that is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify maps an error to its CLI error code and exit code.
func classify(err error) (string, int) {
	var (
		cfgErr    *config.ConfigError
		syntaxErr *ntriples.SyntaxError
		parseErr  *ir.ParseError
	)
	switch {
	case errors.As(err, &cfgErr):
		return CodeConfig, ExitCommandError
	case errors.As(err, &syntaxErr):
		return CodeSyntax, ExitCommandError
	case errors.Is(err, ir.ErrInvalidTriple), errors.As(err, &parseErr):
		return CodeInvalidTriple, ExitCommandError
	default:
		return CodeStore, ExitFailure
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command's output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error member of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data. In text mode data is printed with fmt.Fprintln, so
// result types implement fmt.Stringer.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes an error report.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.GetErrWriter(), "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.GetErrWriter(), "Details: %v\n", details)
	}
	return nil
}

// Fail reports err under the code classify picks and returns the
// ExitError the command should return.
func (f *OutputFormatter) Fail(message string, err error) error {
	code, exit := classify(err)
	return f.Report(code, exit, message, err)
}

// Report writes err under code and returns it as a reported ExitError.
func (f *OutputFormatter) Report(code string, exit int, message string, err error) error {
	if werr := f.Error(code, fmt.Sprintf("%s: %v", message, err), nil); werr != nil {
		return werr
	}
	return &ExitError{Code: exit, Message: message, Err: err, Reported: true}
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}

// VerboseLog writes a diagnostic line when verbose mode is on.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
