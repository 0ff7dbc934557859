// Package common provides shared constants, types, and utilities
// used across the WireSock Manager application.
package common

import "time"

// Application metadata.
const (
	// AppName is the display name of the application.
	AppName = "WireSock Manager"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "wiresock-manager"
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "WIRESOCK_MANAGER"
)

// File names used by the application.
const (
	SettingsFileName = "settings.yaml"
	ConfigFileName   = "config.yaml"
	HistoryFileName  = "history.db"
	LogFileName      = "wiresock-manager.log"
	LockFileName     = "wiresock-manager.lock"
	// ConfigsDirName holds the imported profile files.
	ConfigsDirName = "configs"
)

// Default timeouts and intervals.
const (
	// GraceInterval is how long a freshly spawned client must stay alive
	// before the connection counts as established.
	GraceInterval = 1 * time.Second
	// TerminationTimeout bounds the wait after a graceful stop request.
	TerminationTimeout = 5 * time.Second
	// KillTimeout bounds the wait after a forced kill.
	KillTimeout = 2 * time.Second
	// OutputDrainTimeout bounds how long the exit waiter waits for the
	// output reader after the process is gone.
	OutputDrainTimeout = 500 * time.Millisecond
)

// Output capture limits.
const (
	// OutputTailLines is the number of trailing client lines kept for diagnostics.
	OutputTailLines = 20
	// OutputLineLimit is the longest client line kept; longer lines are cut.
	OutputLineLimit = 4096
	// SubscriberBacklog is the number of queued output lines after which a slow
	// subscriber starts losing output lines. State events are never dropped.
	SubscriberBacklog = 1024
)

// Client invocation.
const (
	// DefaultWindowsBinary is where the WireSock installer puts the client.
	DefaultWindowsBinary = `C:\Program Files\WireSock Secure Connect\bin\wiresock-client.exe`
	// DefaultUnixBinary is looked up on PATH on other platforms.
	DefaultUnixBinary = "wiresock-client"
	// ProfileExtension is the only accepted profile file extension.
	ProfileExtension = ".conf"
)
