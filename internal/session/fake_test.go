package session

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ncerr "fahstat/internal/errors"
	"fahstat/internal/metrics"
	"fahstat/internal/transport"
)

// fakeClock is advanced by hand.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// fakeConn is a scripted connection.  It doubles as its own Poller.
type fakeConn struct {
	net.Conn // unused methods panic

	inbound  [][]byte // one chunk per TryRead
	eof      bool
	readErr  error
	written  bytes.Buffer
	writeCap int // bytes accepted before would-block; -1 unlimited
	writeErr error
	zeroSend bool
	closed   bool
}

func (c *fakeConn) feed(b []byte) { c.inbound = append(c.inbound, append([]byte(nil), b...)) }

func (c *fakeConn) TryRead(p []byte) (int, error) {
	if len(c.inbound) > 0 {
		n := copy(p, c.inbound[0])
		c.inbound[0] = c.inbound[0][n:]
		if len(c.inbound[0]) == 0 {
			c.inbound = c.inbound[1:]
		}
		return n, nil
	}
	if c.readErr != nil {
		return 0, c.readErr
	}
	if c.eof {
		return 0, nil
	}
	return 0, ncerr.ErrWouldBlock
}

func (c *fakeConn) TryWrite(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	if c.zeroSend {
		return 0, nil
	}
	n := len(p)
	if c.writeCap >= 0 {
		if c.writeCap == 0 {
			return 0, ncerr.ErrWouldBlock
		}
		n = min(n, c.writeCap)
		c.writeCap -= n
	}
	c.written.Write(p[:n])
	return n, nil
}

func (c *fakeConn) Close() error { c.closed = true; return nil }

// fakeDialer hands out fakeConns, fails with err, or blocks until the
// dial context ends.
type fakeDialer struct {
	mu    sync.Mutex
	dials int
	err   error
	block bool
	conns []*fakeConn

	prepare func(*fakeConn) // applied to each new conn
}

func (d *fakeDialer) Dial(ctx context.Context, _, _ string) (net.Conn, error) {
	d.mu.Lock()
	d.dials++
	err, block := d.err, d.block
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	c := &fakeConn{writeCap: -1}
	d.mu.Lock()
	if d.prepare != nil {
		d.prepare(c)
	}
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) Close() error { return nil }

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) set(err error, block bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err, d.block = err, block
}

type harness struct {
	s       *Session
	dialer  *fakeDialer
	clock   *fakeClock
	metrics *metrics.Collector
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	if cfg.Address == "" {
		cfg.Address = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 36330
	}
	h := &harness{
		dialer:  &fakeDialer{},
		clock:   &fakeClock{t: time.Unix(1_700_000_000, 0)},
		metrics: metrics.New(),
	}
	s, err := New(cfg, WithDialer(h.dialer), WithClock(h.clock.Now), WithMetrics(h.metrics))
	require.NoError(t, err)
	s.newPoller = func(c net.Conn) transport.Poller { return c.(*fakeConn) }
	h.s = s
	t.Cleanup(func() { s.Close() })
	return h
}

// tickUntil ticks until cond holds; dials complete on their own
// goroutine so a few real milliseconds may pass.
func (h *harness) tickUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s (state %s)", what, h.s.State())
		}
		h.s.Tick()
		time.Sleep(time.Millisecond)
	}
}

// connect drives the session to StateConnected and returns the conn.
func (h *harness) connect(t *testing.T) *fakeConn {
	t.Helper()
	h.tickUntil(t, "connect", func() bool { return h.s.State() == StateConnected })
	return h.dialer.last()
}
