package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	ncerr "fahstat/internal/errors"
	"fahstat/internal/retry"
)

// fakeTunnel fails Connect until failures is exhausted.
type fakeTunnel struct {
	failures int
	connErr  error
	connects int
	alive    bool
	dialed   []string
}

func (f *fakeTunnel) Connect(context.Context) error {
	f.connects++
	if f.failures > 0 {
		f.failures--
		return f.connErr
	}
	f.alive = true
	return nil
}

func (f *fakeTunnel) Dial(_ context.Context, _, address string) (net.Conn, error) {
	if !f.alive {
		return nil, ncerr.ErrNotConnected
	}
	f.dialed = append(f.dialed, address)
	a, b := net.Pipe()
	b.Close()
	return a, nil
}

func (f *fakeTunnel) Close() error { f.alive = false; return nil }
func (f *fakeTunnel) IsAlive() bool { return f.alive }

func fastDialer(ft *fakeTunnel, attempts int) *SSHDialer {
	d := NewSSHDialer(ft, attempts, nil)
	d.Backoff.Initial = time.Millisecond
	d.Backoff.Max = time.Millisecond
	d.Backoff.Jitter = false
	return d
}

func TestSSHDialer_RetriesTransientFailures(t *testing.T) {
	ft := &fakeTunnel{failures: 2, connErr: ncerr.Wrap("dial", "gw:22", errors.New("refused"))}
	d := fastDialer(ft, 3)

	conn, err := d.Dial(context.Background(), "tcp", "127.0.0.1:36330")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Close()
	if ft.connects != 3 {
		t.Errorf("connects = %d, want 3", ft.connects)
	}

	// A live tunnel is reused.
	conn, err = d.Dial(context.Background(), "tcp", "127.0.0.1:36330")
	if err != nil {
		t.Fatalf("second Dial: %v", err)
	}
	conn.Close()
	if ft.connects != 3 {
		t.Errorf("connects after reuse = %d, want 3", ft.connects)
	}
	if len(ft.dialed) != 2 {
		t.Errorf("dialed = %v", ft.dialed)
	}
}

func TestSSHDialer_ReconnectsDeadTunnel(t *testing.T) {
	ft := &fakeTunnel{}
	d := fastDialer(ft, 1)

	if _, err := d.Dial(context.Background(), "tcp", "d:1"); err != nil {
		t.Fatal(err)
	}
	ft.alive = false // gateway dropped us
	if _, err := d.Dial(context.Background(), "tcp", "d:1"); err != nil {
		t.Fatal(err)
	}
	if ft.connects != 2 {
		t.Errorf("connects = %d, want 2", ft.connects)
	}
}

func TestSSHDialer_AuthFailureIsPermanent(t *testing.T) {
	ft := &fakeTunnel{
		failures: 5,
		connErr:  ncerr.WrapSSH("auth", "gw", 22, ncerr.ErrAuthFailed),
	}
	d := fastDialer(ft, 5)

	_, err := d.Dial(context.Background(), "tcp", "d:1")
	if !ncerr.Is(err, ncerr.ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
	if ft.connects != 1 {
		t.Errorf("connects = %d, want 1 (no retry)", ft.connects)
	}
}

func TestSSHDialer_CircuitOpens(t *testing.T) {
	ft := &fakeTunnel{failures: 100, connErr: errors.New("handshake timeout")}
	d := fastDialer(ft, 1)
	d.Breaker = &retry.Breaker{Threshold: 2, Cooldown: time.Hour}

	for i := 0; i < 2; i++ {
		if _, err := d.Dial(context.Background(), "tcp", "d:1"); err == nil {
			t.Fatal("expected failure")
		}
	}
	before := ft.connects
	_, err := d.Dial(context.Background(), "tcp", "d:1")
	if !ncerr.Is(err, ncerr.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if ft.connects != before {
		t.Error("open circuit should not attempt a connect")
	}
}

func TestSSHDialer_Close(t *testing.T) {
	ft := &fakeTunnel{}
	d := fastDialer(ft, 1)
	if _, err := d.Dial(context.Background(), "tcp", "d:1"); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if ft.alive {
		t.Error("Close should tear the tunnel down")
	}
}
