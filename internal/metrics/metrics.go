// Package metrics provides lightweight, lock-free counters for tracking
// the activity of a daemon session.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a session.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	connectAttempts   atomic.Int64
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	bytesIn           atomic.Int64
	bytesOut          atomic.Int64
	messagesDecoded   atomic.Int64
	decodeErrors      atomic.Int64
	idleTimeouts      atomic.Int64
	errorsTotal       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastMessage  time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectAttempt records the start of a connect attempt.
func (c *Collector) ConnectAttempt() {
	if c == nil {
		return
	}
	c.connectAttempts.Add(1)
}

// ConnectAttempts returns the number of connect attempts made.
func (c *Collector) ConnectAttempts() int64 {
	if c == nil {
		return 0
	}
	return c.connectAttempts.Load()
}

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Protocol metrics ─────────────────────────────────────────────────

// MessageDecoded records a successfully decoded frame.
func (c *Collector) MessageDecoded() {
	if c == nil {
		return
	}
	c.messagesDecoded.Add(1)
	c.mu.Lock()
	c.lastMessage = time.Now()
	c.mu.Unlock()
}

// MessagesDecoded returns the number of decoded frames.
func (c *Collector) MessagesDecoded() int64 {
	if c == nil {
		return 0
	}
	return c.messagesDecoded.Load()
}

// DecodeError records a frame that was skipped because it could not
// be decoded.
func (c *Collector) DecodeError(msg string) {
	if c == nil {
		return
	}
	c.decodeErrors.Add(1)
	c.RecordError(msg)
}

// DecodeErrors returns the number of skipped frames.
func (c *Collector) DecodeErrors() int64 {
	if c == nil {
		return 0
	}
	return c.decodeErrors.Load()
}

// IdleTimeout records a connection dropped for lack of traffic.
func (c *Collector) IdleTimeout() {
	if c == nil {
		return
	}
	c.idleTimeouts.Add(1)
}

// IdleTimeouts returns the number of idle-timeout disconnects.
func (c *Collector) IdleTimeouts() int64 {
	if c == nil {
		return 0
	}
	return c.idleTimeouts.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectAttempts   int64  `json:"connect_attempts"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	BytesIn           int64  `json:"bytes_in"`
	BytesOut          int64  `json:"bytes_out"`
	MessagesDecoded   int64  `json:"messages_decoded"`
	DecodeErrors      int64  `json:"decode_errors"`
	IdleTimeouts      int64  `json:"idle_timeouts"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastMessage       string `json:"last_message,omitempty"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectAttempts:   c.connectAttempts.Load(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		BytesIn:           c.bytesIn.Load(),
		BytesOut:          c.bytesOut.Load(),
		MessagesDecoded:   c.messagesDecoded.Load(),
		DecodeErrors:      c.decodeErrors.Load(),
		IdleTimeouts:      c.idleTimeouts.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if !c.lastMessage.IsZero() {
		s.LastMessage = c.lastMessage.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
