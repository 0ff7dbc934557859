// Package main provides the entry point for WireSock Manager, a terminal
// front-end that supervises the WireSock VPN client.
//
// Features:
//   - Profile management for multiple WireSock configurations
//   - Foreground connections with live client output
//   - Interactive terminal UI with live connection state
//   - Connection history and desktop notifications
//
// Usage:
//
//	wiresock-manager <command> [flags]
//
// Environment:
//
//	The WireSock client (wiresock-client) must be installed. Its location
//	can be changed with "wiresock-manager settings binary <path>".
package main

import (
	"os"

	"github.com/yllada/wiresock-manager/cli"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
// Default values are used for local development builds
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

func main() {
	os.Exit(cli.Main(cli.BuildInfo{
		Version: appVersion,
		Commit:  commitSHA,
		Date:    buildTime,
	}))
}
