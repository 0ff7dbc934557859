package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/yllada/wiresock-manager/common"
)

// Exit codes.
const (
	ExitSuccess  = 0
	ExitGeneral  = 1
	ExitNotFound = 2
	ExitLaunch   = 3
	ExitConfig   = 4
	ExitBusy     = 5
	ExitUsage    = 64 // BSD convention
)

// ExitError is a user-facing error with an exit code and an optional hint.
type ExitError struct {
	Message string
	Hint    string
	// Details are extra lines shown under the message, such as client output.
	Details []string
	Cause   error
	Code    int
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// usageError reports bad arguments.
func usageError(format string, args ...interface{}) *ExitError {
	return &ExitError{Message: fmt.Sprintf(format, args...), Code: ExitUsage}
}

// classify maps an error from the core packages onto an ExitError.
func classify(err error) *ExitError {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}

	var launchErr *common.LaunchError
	switch {
	case errors.As(err, &launchErr):
		return &ExitError{
			Message: fmt.Sprintf("WireSock client for %q exited during startup (exit code %d)", launchErr.Profile, launchErr.ExitCode),
			Hint:    "Check the profile file and the client output above",
			Details: launchErr.Output,
			Code:    ExitLaunch,
		}

	case errors.Is(err, common.ErrProfileNotFound):
		return &ExitError{
			Message: err.Error(),
			Hint:    "Run 'wiresock-manager profiles list' to see available profiles",
			Code:    ExitNotFound,
		}

	case errors.Is(err, common.ErrBinaryNotFound):
		return &ExitError{
			Message: err.Error(),
			Hint:    "Install WireSock or set its location with 'wiresock-manager settings binary <path>'",
			Code:    ExitNotFound,
		}

	case errors.Is(err, common.ErrSpawn):
		return &ExitError{
			Message: err.Error(),
			Hint:    "Check that the client binary is executable",
			Code:    ExitLaunch,
		}

	case errors.Is(err, common.ErrDuplicateName),
		errors.Is(err, common.ErrInvalidName),
		errors.Is(err, common.ErrInvalidConfig):
		return &ExitError{Message: err.Error(), Code: ExitUsage}

	case errors.Is(err, common.ErrInstanceRunning):
		return &ExitError{
			Message: err.Error(),
			Hint:    "Close the other wiresock-manager (connect or run) before starting a new one",
			Code:    ExitBusy,
		}

	case errors.Is(err, common.ErrConfigLoad), errors.Is(err, common.ErrConfigSave):
		return &ExitError{
			Message: err.Error(),
			Hint:    "Check the files in the data directory ('wiresock-manager settings show')",
			Code:    ExitConfig,
		}

	case errors.Is(err, common.ErrCancelled), errors.Is(err, context.Canceled):
		return &ExitError{Message: "Cancelled", Code: ExitGeneral}
	}

	return &ExitError{Message: err.Error(), Code: ExitGeneral}
}
