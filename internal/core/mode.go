// Package core is the orchestration layer.  It composes a transport,
// a daemon session and the monitor loop into a runnable mode and
// provides a builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  session  →  monitor  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete run of fahstat.  Each mode owns its lifecycle
// from connection establishment to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
