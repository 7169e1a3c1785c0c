package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	ncerr "fahstat/internal/errors"
	"fahstat/internal/retry"
	"fahstat/tunnel"
	"fahstat/util"
)

// SSHDialer routes connections through an SSH tunnel.  The tunnel is
// connected lazily on the first Dial, re-established on a later Dial
// if the gateway dropped it, and torn down on Close.
//
// Establishment is retried with Backoff and guarded by Breaker so a
// dead gateway fails fast on session reconnects instead of running a
// full SSH handshake every few seconds.
type SSHDialer struct {
	Backoff *retry.Backoff
	Breaker *retry.Breaker

	tunnel tunnel.Tunnel
	logger *util.Logger
	mu     sync.Mutex
}

// NewSSHDialer creates a dialer that forwards connections through t.
// The tunnel is not connected until the first Dial.
func NewSSHDialer(t tunnel.Tunnel, attempts int, logger *util.Logger) *SSHDialer {
	if logger == nil {
		logger = util.Discard()
	}
	return &SSHDialer{
		Backoff: retry.ForTunnel(attempts),
		Breaker: &retry.Breaker{
			Threshold: 3,
			OnChange: func(from, to retry.State) {
				logger.Verbose("SSH gateway circuit %s → %s", from, to)
			},
		},
		tunnel: t,
		logger: logger,
	}
}

// connect establishes the SSH tunnel if it is not already alive.
func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.tunnel.IsAlive() {
		return nil
	}

	return d.Breaker.Call(func() error {
		return d.Backoff.Do(ctx, func(attempt int) error {
			d.logger.Verbose("establishing SSH tunnel %v (attempt %d)", d.tunnel, attempt)
			err := d.tunnel.Connect(ctx)
			if err == nil {
				return nil
			}
			if permanentTunnelError(err) {
				return retry.Permanent(err)
			}
			d.logger.Debug("SSH tunnel attempt %d: %v", attempt, err)
			return err
		})
	})
}

// permanentTunnelError reports failures that another attempt with the
// same configuration cannot fix.
func permanentTunnelError(err error) bool {
	if errors.Is(err, ncerr.ErrAuthFailed) || errors.Is(err, ncerr.ErrHostKeyMismatch) {
		return true
	}
	var se *ncerr.SSHError
	return errors.As(err, &se) && (se.Op == "auth" || se.Op == "hostkey")
}

// Dial connects to address through the SSH tunnel, establishing the
// tunnel first when needed.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, fmt.Errorf("tunnel: %w", err)
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the underlying SSH tunnel.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tunnel.Close()
}
