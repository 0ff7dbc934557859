// Package common provides shared constants, types, utilities, and interfaces
// used throughout the WireSock Manager application.
//
// This package holds the cross-cutting pieces every other package needs:
//
//   - Constants: timeouts, file names, and client defaults
//   - Errors: sentinel errors and LaunchError for the supervisor taxonomy
//   - Interfaces: the connection Phase and the Notifier/Logger abstractions
//   - Logger: leveled logging with file output and rotation
//   - Utils: file helpers and the output tail buffer
//
// # Usage
//
//	// Use logger
//	common.LogInfo("Connecting profile %s", name)
//
//	// Check errors
//	if errors.Is(err, common.ErrProfileNotFound) {
//	    // Handle missing profile
//	}
package common
