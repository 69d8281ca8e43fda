package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/widetriple/internal/config"
	"github.com/roach88/widetriple/internal/ir"
	"github.com/roach88/widetriple/internal/ntriples"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(CountResult{Count: 42}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"count": float64(42)}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf, ErrWriter: &bytes.Buffer{}}

	require.NoError(t, formatter.Error(CodeStore, "backend unavailable", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeStore, resp.Error.Code)
	assert.Equal(t, "backend unavailable", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	details := map[string]string{"file": "data.nt", "line": "42"}
	require.NoError(t, formatter.Error(CodeSyntax, "syntax error", details))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_JSONKeepsAngleBrackets(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(WriteResult{Op: "inserted", Triple: "<http://example.org/s> <http://example.org/p> _:o ."}))
	assert.Contains(t, buf.String(), "<http://example.org/s>")
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(ClearResult{Rows: 7}))
	assert.Equal(t, "cleared 7 row(s)\n", buf.String())
}

func TestOutputFormatter_TextErrorGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: out, ErrWriter: errOut}

	require.NoError(t, formatter.Error(CodeConfig, "slice_size: invalid value", nil))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Error [E_CONFIG]")
	assert.Contains(t, errOut.String(), "slice_size: invalid value")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error(CodeSyntax, "bad statement", map[string]string{"line": "3"}))
	assert.Contains(t, buf.String(), "Error [E_SYNTAX]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			formatter.VerboseLog("Loading %s", "data.nt")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Loading data.nt")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"config", fmt.Errorf("cfg.yaml: %w", &config.ConfigError{Field: "slice_size", Message: "out of bound"}), CodeConfig, ExitCommandError},
		{"syntax", &ntriples.SyntaxError{Line: 2, Err: errors.New("missing '.'")}, CodeSyntax, ExitCommandError},
		{"invalid triple", fmt.Errorf("insert: %w", ir.ErrInvalidTriple), CodeInvalidTriple, ExitCommandError},
		{"parse", &ir.ParseError{}, CodeInvalidTriple, ExitCommandError},
		{"store", errors.New("database is locked"), CodeStore, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf}

			err := formatter.Fail("load", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.True(t, strings.HasPrefix(buf.String(), "Error ["+tt.wantCode+"]: load: "), buf.String())
			assert.ErrorIs(t, err, tt.err)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.True(t, exitErr.Reported)
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", WrapExitError(ExitFailure, "drift", errors.New("x")))))
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "bad flag", NewExitError(ExitCommandError, "bad flag").Error())
	assert.Equal(t, "load: boom", WrapExitError(ExitFailure, "load", errors.New("boom")).Error())
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    CodeDrift,
		Message: "1 index entries drifted",
		Details: []string{"stale ps: <http://example.org/p> -> <http://example.org/s>"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, CodeDrift, decoded.Code)
	assert.Equal(t, "1 index entries drifted", decoded.Message)
}
