// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for the CLI commands.
//
// Handlers always return errors and never exit; the caller decides how to
// display them.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/offline"
	"github.com/jeranaias/streamchat/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitNotFoundError = 7
	// ExitInterrupted follows the shell convention for SIGINT.
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports invalid command usage.
type UsageError struct {
	Reason string
	Usage  string
}

func (e *UsageError) Error() string {
	if e.Usage == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s\nUsage: %s", e.Reason, e.Usage)
}

// ErrMissingArgument builds a UsageError for a required argument.
func ErrMissingArgument(argName, usage string) error {
	return &UsageError{Reason: "missing " + argName, Usage: usage}
}

// ErrUnsupportedFormat builds a UsageError for an unknown output format.
func ErrUnsupportedFormat(format string, supported ...string) error {
	return &UsageError{Reason: fmt.Sprintf("unsupported format %q (supported: %v)", format, supported)}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as a JSON response in JSON mode.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		NewJSONErrorResponse(command, err).Write(w)
		return
	}
	fmt.Fprintf(w, "%s %v\n", ErrorStyle.Render("Error:"), err)
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	var validateErrs config.ValidateErrors
	switch {
	case errors.As(err, &usageErr):
		return ExitUsageError
	case errors.As(err, &validateErrs),
		errors.Is(err, offline.ErrNonLocalhost),
		errors.Is(err, offline.ErrInvalidURLScheme),
		errors.Is(err, offline.ErrInvalidURL):
		return ExitConfigError
	case errors.Is(err, storage.ErrNotFound):
		return ExitNotFoundError
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	}
	return ExitGeneralError
}
