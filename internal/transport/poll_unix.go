//go:build unix

package transport

import (
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	ncerr "fahstat/internal/errors"
)

// rawPoller issues one read(2)/write(2) per call on the descriptor the
// runtime already keeps in non-blocking mode.  The callback always
// reports done, so the runtime never parks us waiting for readiness.
type rawPoller struct {
	conn net.Conn
	raw  syscall.RawConn
}

func newRawPoller(conn net.Conn) (Poller, bool) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, false
	}
	return &rawPoller{conn: conn, raw: raw}, true
}

func (p *rawPoller) TryRead(b []byte) (int, error) {
	var (
		n     int
		opErr error
	)
	if err := p.raw.Read(func(fd uintptr) bool {
		n, opErr = unix.Read(int(fd), b)
		return true
	}); err != nil {
		return 0, err
	}
	return result("read", n, opErr)
}

func (p *rawPoller) TryWrite(b []byte) (int, error) {
	var (
		n     int
		opErr error
	)
	if err := p.raw.Write(func(fd uintptr) bool {
		n, opErr = unix.Write(int(fd), b)
		return true
	}); err != nil {
		return 0, err
	}
	return result("write", n, opErr)
}

func (p *rawPoller) Close() error { return p.conn.Close() }

func result(op string, n int, err error) (int, error) {
	switch {
	case err == nil:
		return n, nil
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR:
		return 0, ncerr.ErrWouldBlock
	default:
		return 0, os.NewSyscallError(op, err)
	}
}
