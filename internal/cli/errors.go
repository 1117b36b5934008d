// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, display and exit codes for the subcommands.
//
// Handlers always return errors and never print-and-swallow them; main
// displays the error once and exits with GetExitCode.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jeranaias/widgetsync/internal/api"
	"github.com/jeranaias/widgetsync/internal/config"
	"github.com/jeranaias/widgetsync/internal/storage"
	"github.com/jeranaias/widgetsync/internal/widget"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a failed command action with context.
type CommandError struct {
	Command string // e.g. "config"
	Action  string // e.g. "set"
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError is bad user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s", e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	msg += ": " + e.Reason
	if e.Example != "" {
		msg += " (example: " + e.Example + ")"
	}
	return msg
}

// NewCommandError creates a CommandError.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// ErrMissingArgument reports a missing positional argument.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{Field: argName, Reason: "is required", Example: usage}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON in json mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		DisplayErrorJSON(w, err)
		return
	}
	fmt.Fprintf(w, "%s %s\n", RenderConditional(ErrorStyle, "[ERROR]"), err.Error())
}

// DisplayErrorJSON writes err as a JSON object.
func DisplayErrorJSON(w io.Writer, err error) {
	output := map[string]any{
		"success":   false,
		"error":     err.Error(),
		"exit_code": GetExitCode(err),
	}

	var cmdErr *CommandError
	var valErr *ValidationError
	var apiErr *api.APIError
	switch {
	case errors.As(err, &valErr):
		output["error_type"] = "validation_error"
		output["field"] = valErr.Field
	case errors.As(err, &apiErr):
		output["error_type"] = "api_error"
		output["status"] = apiErr.Status
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
	default:
		output["error_type"] = "generic_error"
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(output)
}

// GetExitCode maps an error onto a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var valErr *ValidationError
	var cfgErrs config.ValidateErrors
	var cfgErr config.ValidationError
	var netErr net.Error
	switch {
	case errors.As(err, &valErr), errors.Is(err, widget.ErrIncompleteLead):
		return ExitUsageError
	case errors.Is(err, api.ErrNotConfigured), errors.As(err, &cfgErrs), errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, api.ErrSessionExpired):
		return ExitAuthError
	case errors.Is(err, api.ErrNotFound), errors.Is(err, storage.ErrNoSession):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return ExitTimeoutError
		}
		return ExitNetworkError
	}
	return ExitGeneralError
}
