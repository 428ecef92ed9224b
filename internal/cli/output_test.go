package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/punchcard/internal/ir"
	"github.com/roach88/punchcard/internal/pda"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("MALFORMED_SEED", "bad seed", map[string]string{"seed": "abc"})
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "MALFORMED_SEED", resp.Error.Code)
	assert.Equal(t, "bad seed", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("Record created")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Record created")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error("E001", "something failed", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E001]: something failed")
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
			errBuf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    buf,
				ErrWriter: errBuf,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Processing %s", "seed 7")

			assert.Empty(t, buf.String(), "diagnostics never go to stdout")
			if tt.wantLog {
				assert.Contains(t, errBuf.String(), "Processing seed 7")
			} else {
				assert.Empty(t, errBuf.String())
			}
		})
	}
}

func TestLedgerError_ExitCodes(t *testing.T) {
	addr := pda.MustDerive(ir.SeedFromInt64(3))
	tests := []struct {
		name      string
		err       error
		wantExit  int
		wantCode  string
		wantClass string
	}{
		{"rejected", ir.NewError(ir.CodeNotClockedIn, "x").WithAddress(addr), ExitFailure, "NOT_CLOCKED_IN", "rejected"},
		{"missing", ir.NewError(ir.CodeRecordNotFound, "x"), ExitFailure, "RECORD_NOT_FOUND", "rejected"},
		{"indeterminate", ir.WrapError(ir.CodeIndeterminate, "x", context.DeadlineExceeded), ExitIndeterminate, "INDETERMINATE", "unconfirmed"},
		{"unavailable", ir.NewError(ir.CodeChannelUnavailable, "x"), ExitIndeterminate, "CHANNEL_UNAVAILABLE", "unconfirmed"},
		{"invalid", ir.NewError(ir.CodeMalformedSeed, "x"), ExitCommandError, "MALFORMED_SEED", "invalid"},
		{"internal", errors.New("disk on fire"), ExitCommandError, "INTERNAL", "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "json", Writer: buf}

			err := f.LedgerError(fmt.Errorf("wrapped: %w", tt.err))
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.True(t, IsReported(err))

			cliErr := decodeError(t, buf.String())
			assert.Equal(t, tt.wantCode, cliErr.Code)
			assert.Equal(t, tt.wantClass, cliErr.Class)
			assert.NotEmpty(t, cliErr.Message)
		})
	}
}

func TestLedgerError_TextShowsTaxonomyMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf, ErrWriter: errBuf, Verbose: true}

	err := f.LedgerError(ir.NewError(ir.CodeAlreadyClockedIn, "cannot clock_in while on-shift"))
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [ALREADY_CLOCKED_IN]:")
	assert.Contains(t, buf.String(), "your action was invalid given current state: you are already clocked in")
	assert.Contains(t, errBuf.String(), "cannot clock_in while on-shift")
}

func TestExitError(t *testing.T) {
	inner := errors.New("boom")
	err := WrapExitError(ExitCommandError, "open database", inner)
	assert.Equal(t, "open database: boom", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.False(t, IsReported(err))

	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "failed")))
	assert.Equal(t, ExitCommandError, GetExitCode(errors.New("unknown flag")))
}
