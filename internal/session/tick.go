package session

import (
	"context"
	"net"
	"time"

	ncerr "fahstat/internal/errors"
)

// dial is an in-flight asynchronous connect.  The goroutine owns only
// the dialer call; its result is collected with a non-blocking receive.
type dial struct {
	cancel context.CancelFunc
	result chan dialResult
}

type dialResult struct {
	conn net.Conn
	err  error
}

// abandon cancels the dial and closes a connection that completes
// after nobody is waiting for it.
func (d *dial) abandon() {
	d.cancel()
	go func() {
		if r := <-d.result; r.conn != nil {
			r.conn.Close()
		}
	}()
}

// Tick advances the session by at most one step of each applicable
// operation: connect or connect-poll, write, read, frame drain and
// idle check.  It never blocks.
func (s *Session) Tick() {
	if s.closed {
		return
	}
	now := s.now()

	switch s.state {
	case StateDisconnected:
		if s.lastConnect.IsZero() || now.Sub(s.lastConnect) > s.retryDelay() {
			s.connect(now)
		}
		return
	case StateConnecting:
		if !s.pollDial(now) {
			return
		}
	}

	if !s.flush() {
		return
	}
	if !s.fill() {
		return
	}
	if !s.drainFrames(now) {
		return
	}
	s.checkIdle(now)
}

// retryDelay is the spacing required before the next attempt.
func (s *Session) retryDelay() time.Duration {
	return s.backoff.Delay(max(s.failures, 1))
}

// connect starts a fresh attempt: buffers and failure reason are reset,
// the bootstrap commands are queued ahead of anything queued while
// disconnected, and the dial is launched in the background.
func (s *Session) connect(now time.Time) {
	backlog := s.out

	s.failure = FailureNone
	s.in = s.in[:0]
	s.out = nil
	s.lastConnect = now
	s.lastMessage = time.Time{}

	if s.cfg.Password != "" {
		s.out = append(s.out, authCommand(s.cfg.Password)...)
		s.out = append(s.out, '\n')
	}
	for _, c := range s.initCommands {
		s.QueueCommand(c)
	}
	s.bootstrap = len(s.out)
	s.out = append(s.out, backlog...)

	s.metrics.ConnectAttempt()
	s.logger.Verbose("connecting to %s", s.addr)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ConnectTimeout)
	d := &dial{cancel: cancel, result: make(chan dialResult, 1)}
	dialer, addr := s.dialer, s.addr
	go func() {
		conn, err := dialer.Dial(ctx, "tcp", addr)
		d.result <- dialResult{conn: conn, err: err}
	}()

	s.pending = d
	s.state = StateConnecting
}

// pollDial reports whether the session is connected after checking the
// in-flight dial.
func (s *Session) pollDial(now time.Time) bool {
	d := s.pending
	select {
	case r := <-d.result:
		s.pending = nil
		d.cancel()
		if r.err != nil {
			s.failures++
			reason := classify(r.err)
			s.logger.Warn("connect to %s failed: %v", s.addr, r.err)
			s.metrics.RecordError(r.err.Error())
			s.disconnect(reason)
			return false
		}
		s.conn = s.newPoller(r.conn)
		s.state = StateConnected
		s.bootstrap = 0
		s.failures = 0
		s.metrics.ConnectionOpened()
		s.logger.Info("connected to %s", s.addr)
		return true
	default:
	}

	if now.Sub(s.lastConnect) >= s.cfg.ConnectTimeout {
		s.failures++
		s.logger.Warn("connect to %s: %v after %v", s.addr, ncerr.ErrConnectTimeout, s.cfg.ConnectTimeout)
		s.metrics.RecordError(ncerr.ErrConnectTimeout.Error())
		s.disconnect(FailureConnectTimeout)
	}
	return false
}

// checkIdle drops a connection that went silent after delivering at
// least one message.  No failure reason is recorded.
func (s *Session) checkIdle(now time.Time) {
	if s.cfg.IdleTimeout < 0 || s.lastMessage.IsZero() {
		return
	}
	if now.Sub(s.lastMessage) > s.cfg.IdleTimeout {
		s.logger.Warn("%s: %v", s.addr, ncerr.ErrIdleTimeout)
		s.metrics.IdleTimeout()
		s.disconnect(FailureNone)
	}
}

// lose handles a connection that failed while established.
func (s *Session) lose(reason FailureReason, err error) {
	s.logger.Warn("connection to %s lost: %v", s.addr, err)
	s.metrics.RecordError(err.Error())
	s.disconnect(reason)
}

// disconnect moves to StateDisconnected, releasing the socket or the
// pending dial and clearing both byte buffers.  An attempt that never
// connected has sent nothing, so commands queued behind the bootstrap
// are kept for the next attempt.
func (s *Session) disconnect(reason FailureReason) {
	var backlog []byte
	if s.state == StateConnecting && s.bootstrap <= len(s.out) {
		backlog = append(backlog, s.out[s.bootstrap:]...)
	}
	if s.pending != nil {
		s.pending.abandon()
		s.pending = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		s.metrics.ConnectionClosed()
	}
	s.state = StateDisconnected
	s.failure = reason
	s.in = s.in[:0]
	s.out = backlog
	s.bootstrap = 0
}

// classify maps a transport error onto a FailureReason.
func classify(err error) FailureReason {
	switch ncerr.Classify(err) {
	case ncerr.KindRefused:
		return FailureConnectRefused
	case ncerr.KindTimeout:
		return FailureConnectTimeout
	case ncerr.KindClosed:
		return FailureClosed
	default:
		return FailureOther
	}
}
