// Package monitor is the caller loop around a daemon session: it
// drives Tick at a fixed cadence, subscribes to queue-info once the
// daemon reports its options, and hands every decoded message to a
// Sink.
package monitor

import (
	"context"
	"fmt"
	"time"

	"fahstat/internal/session"
	"fahstat/pyon"
	"fahstat/util"
)

// Session is the part of *session.Session the loop drives.
type Session interface {
	Tick()
	Drain() []pyon.Message
	QueueCommand(text string)
	Status() string
	State() session.State
	FailureReason() session.FailureReason
}

// Config tunes the loop.
type Config struct {
	// Tick is the loop cadence (default 100ms).
	Tick time.Duration

	// UpdateCommand is queued every time an "options" message arrives.
	// Empty disables the subscription.
	UpdateCommand string

	// Once stops the loop after the first message that is not
	// "options".
	Once bool
}

// Monitor runs the caller loop.
type Monitor struct {
	session Session
	sink    Sink
	cfg     Config
	logger  *util.Logger

	status string
}

// New returns a Monitor.  A nil logger discards output.
func New(s Session, sink Sink, cfg Config, logger *util.Logger) *Monitor {
	if cfg.Tick <= 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	if logger == nil {
		logger = util.Discard()
	}
	return &Monitor{session: s, sink: sink, cfg: cfg, logger: logger}
}

// Run ticks until ctx is cancelled, the sink fails, or (with Once) the
// first status message has been written.  Cancellation is not an
// error.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Tick)
	defer ticker.Stop()

	for {
		done, err := m.Step()
		if err != nil || done {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Step performs one loop iteration.  It reports whether the loop is
// finished.
func (m *Monitor) Step() (bool, error) {
	m.session.Tick()
	m.trackStatus()

	for _, msg := range m.session.Drain() {
		if msg.Type == "options" {
			if m.cfg.UpdateCommand != "" {
				m.session.QueueCommand(m.cfg.UpdateCommand)
			}
		}
		if err := m.sink.Write(msg); err != nil {
			return true, fmt.Errorf("writing %s message: %w", msg.Type, err)
		}
		if m.cfg.Once && msg.Type != "options" {
			return true, nil
		}
	}
	return false, nil
}

// trackStatus logs status transitions with the failure reason, if any.
func (m *Monitor) trackStatus() {
	status := m.session.Status()
	if status == m.status {
		return
	}
	prev := m.status
	m.status = status

	if reason := m.session.FailureReason(); prev != "" && reason != session.FailureNone {
		m.logger.Info("daemon %s (%s)", status, reason)
		return
	}
	m.logger.Info("daemon %s", status)
}
