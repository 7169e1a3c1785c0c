// Package transport provides connection establishment and
// non-blocking data movement for the daemon session.  A [Dialer]
// opens the connection, directly over TCP or through an SSH gateway;
// a [Poller] then moves bytes without ever blocking the caller.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.  Implementations include
// a plain TCP dialer and an SSH-tunnelled dialer that routes traffic
// through an encrypted gateway.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}

// Poller performs single non-blocking transfers on an established
// connection.
//
// TryRead and TryWrite return [errors.ErrWouldBlock] when no progress
// is possible right now.  TryRead returns (0, nil) once the peer has
// closed its side of the stream.  Any other error is fatal for the
// connection.
type Poller interface {
	TryRead(p []byte) (int, error)
	TryWrite(p []byte) (int, error)
	Close() error
}

// NewPoller wraps conn.  Sockets exposing a raw descriptor are polled
// with direct non-blocking syscalls; anything else (SSH channels,
// in-memory pipes) is bridged by a pair of pump goroutines.
func NewPoller(conn net.Conn) Poller {
	if p, ok := newRawPoller(conn); ok {
		return p
	}
	return newPumpPoller(conn)
}
