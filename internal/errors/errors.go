// Package errors provides domain-specific error types for fahstat.
//
// These types carry structured context (operation, address, frame
// header, retryability) so the session can classify a failure once and
// surface only a status and a failure reason to its caller.
package errors

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrWouldBlock reports that a non-blocking transfer made no
	// progress.  It is never a failure.
	ErrWouldBlock      = errors.New("operation would block")
	ErrStreamClosed    = errors.New("stream closed by peer")
	ErrIdleTimeout     = errors.New("no message received within idle timeout")
	ErrConnectTimeout  = errors.New("connect timed out")
	ErrTunnelClosed    = errors.New("tunnel is closed")
	ErrNotConnected    = errors.New("not connected")
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrHostKeyMismatch = errors.New("host key mismatch")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // operation: "dial", "read", "write"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError describes a PyON frame that could not be decoded.
// The session logs it and skips the frame.
type ProtocolError struct {
	Version int    // header version, 0 when the header itself is bad
	Type    string // header message type, empty when the header is bad
	Line    string // offending header line, if the header is bad
	Raw     string // raw payload, if the payload is bad
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("invalid PyON line %s: %v", strconv.Quote(e.Line), e.Err)
	}
	return fmt.Sprintf("parsing PyON %d %s: %v: %s",
		e.Version, e.Type, e.Err, strconv.Quote(e.Raw))
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "dial"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable treats everything that is not a plain closed
// stream as retryable: refused, reset and timed-out connects all
// recover once the daemon comes back.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch Classify(err) {
	case KindRefused, KindReset, KindTimeout, KindWouldBlock:
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use fahstat/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
