package transport

import (
	"errors"
	"io"
	"net"
	"sync"

	ncerr "fahstat/internal/errors"
	"fahstat/util"
)

// pumpPoller adapts a blocking net.Conn to the Poller contract.  A
// reader goroutine and a writer goroutine own the blocking calls; the
// poller side only ever performs non-blocking channel operations.
type pumpPoller struct {
	conn net.Conn

	reads   chan readResult
	pending []byte // unread tail of the last chunk
	readErr error  // sticky once the reader stops

	writes   chan []byte
	written  chan error
	inFlight bool
	writeErr error

	done      chan struct{}
	closeOnce sync.Once
}

type readResult struct {
	data []byte
	err  error
}

func newPumpPoller(conn net.Conn) *pumpPoller {
	p := &pumpPoller{
		conn:    conn,
		reads:   make(chan readResult, 4),
		writes:  make(chan []byte, 1),
		written: make(chan error, 1),
		done:    make(chan struct{}),
	}
	go p.readLoop()
	go p.writeLoop()
	return p
}

func (p *pumpPoller) readLoop() {
	for {
		buf := make([]byte, util.ReadChunkSize)
		n, err := p.conn.Read(buf)
		if n > 0 {
			select {
			case p.reads <- readResult{data: buf[:n]}:
			case <-p.done:
				return
			}
		}
		if err != nil {
			select {
			case p.reads <- readResult{err: err}:
			case <-p.done:
			}
			return
		}
	}
}

func (p *pumpPoller) writeLoop() {
	for {
		select {
		case b := <-p.writes:
			_, err := p.conn.Write(b)
			select {
			case p.written <- err:
			case <-p.done:
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *pumpPoller) TryRead(b []byte) (int, error) {
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		return n, nil
	}
	if p.readErr != nil {
		return 0, p.terminalRead()
	}

	select {
	case r := <-p.reads:
		if r.err != nil {
			p.readErr = r.err
			return 0, p.terminalRead()
		}
		n := copy(b, r.data)
		p.pending = r.data[n:]
		return n, nil
	default:
		return 0, ncerr.ErrWouldBlock
	}
}

// terminalRead maps the reader's final error: a clean EOF is the
// (0, nil) peer-closed signal.
func (p *pumpPoller) terminalRead() error {
	if errors.Is(p.readErr, io.EOF) {
		return nil
	}
	return p.readErr
}

// TryWrite hands a copy of b to the writer goroutine and reports it
// fully accepted.  Only one write is in flight at a time; its error,
// if any, surfaces on a later call.
func (p *pumpPoller) TryWrite(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	if p.inFlight {
		select {
		case err := <-p.written:
			p.inFlight = false
			if err != nil {
				p.writeErr = err
				return 0, err
			}
		default:
			return 0, ncerr.ErrWouldBlock
		}
	}
	if len(b) == 0 {
		return 0, nil
	}

	buf := make([]byte, len(b))
	copy(buf, b)
	p.writes <- buf
	p.inFlight = true
	return len(buf), nil
}

func (p *pumpPoller) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.conn.Close()
	})
	return err
}
