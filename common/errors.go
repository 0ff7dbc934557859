// Package common provides shared constants, types, and utilities
// used across the WireSock Manager application.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for supervisor and profile operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Connection errors.
	ErrAlreadyConnected = errors.New("connection already active")
	ErrNotConnected     = errors.New("no active connection")
	ErrBinaryNotFound   = errors.New("client binary not found")
	ErrSpawn            = errors.New("failed to start client")
	ErrLaunchFailed     = errors.New("client exited during startup")
	ErrTimeout          = errors.New("operation timed out")
	ErrCancelled        = errors.New("operation cancelled")

	// Profile errors.
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidConfig   = errors.New("invalid configuration file")
	ErrDuplicateName   = errors.New("profile name already exists")
	ErrInvalidName     = errors.New("invalid profile name")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")

	// ErrInstanceRunning is returned when another instance holds the data
	// directory.
	ErrInstanceRunning = errors.New("another instance is already running")
)

// LaunchError reports a client that exited within the grace interval.
// It unwraps to ErrLaunchFailed.
type LaunchError struct {
	Profile  string
	ExitCode int
	// Output holds the last lines the client printed before exiting.
	Output []string
}

func (e *LaunchError) Error() string {
	msg := fmt.Sprintf("profile %q: %v (exit code %d)", e.Profile, ErrLaunchFailed, e.ExitCode)
	if len(e.Output) > 0 {
		msg += ": " + e.Output[len(e.Output)-1]
	}
	return msg
}

func (e *LaunchError) Unwrap() error {
	return ErrLaunchFailed
}

// Diagnostics returns the captured output as a single block of text.
func (e *LaunchError) Diagnostics() string {
	return strings.Join(e.Output, "\n")
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
