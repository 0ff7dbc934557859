// Package procutil holds the platform-specific parts of launching and
// stopping the VPN client: hiding its console, grouping it with its
// children, and delivering stop signals.
package procutil

import "errors"

// ErrGracefulUnsupported is returned by Terminate on platforms without a
// graceful stop signal for windowless processes. Callers should escalate
// to Kill.
var ErrGracefulUnsupported = errors.New("graceful termination not supported")
