package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultHost is where the daemon's command port normally listens.
	DefaultHost = "localhost"

	// DefaultPort is the daemon's command port.
	DefaultPort = 36330

	// DefaultInitCommand asks the daemon for its configuration on every
	// connect.
	DefaultInitCommand = "options"

	// DefaultRetryRate is the minimum spacing between connect attempts.
	DefaultRetryRate = 5 * time.Second

	// DefaultConnectTimeout abandons a connect attempt that has not
	// completed.
	DefaultConnectTimeout = 60 * time.Second

	// DefaultIdleTimeout drops a connection that stopped delivering
	// messages.
	DefaultIdleTimeout = 10 * time.Second

	// DefaultTickInterval is the caller loop cadence.
	DefaultTickInterval = 100 * time.Millisecond

	// DefaultUpdateID is the subscription slot used for queue-info.
	DefaultUpdateID = 0

	// DefaultUpdateInterval is how often the daemon pushes queue-info.
	DefaultUpdateInterval = 2 * time.Second

	// DefaultDump is the record output format.
	DefaultDump = "json"

	// DefaultTCPKeepAlive is the TCP keepalive period on direct daemon
	// connections.
	DefaultTCPKeepAlive = 15 * time.Second

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultSSHConnTimeout bounds the SSH handshake.
	DefaultSSHConnTimeout = 30 * time.Second

	// DefaultSSHKeepAlive is the interval between gateway keepalive
	// probes.
	DefaultSSHKeepAlive = 15 * time.Second

	// DefaultTunnelAttempts is how many times tunnel establishment is
	// tried before a connect attempt is reported as failed.
	DefaultTunnelAttempts = 3
)
