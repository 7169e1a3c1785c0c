package session

import (
	"errors"
	"fmt"
	"time"

	ncerr "fahstat/internal/errors"
	"fahstat/pyon"
	"fahstat/util"
)

// flush writes as much of the outbound buffer as the socket accepts.
// It returns false if the connection was lost.
func (s *Session) flush() bool {
	sent := 0
	for len(s.out) > 0 {
		n, err := s.conn.TryWrite(s.out)
		if n > 0 {
			s.out = s.out[n:]
			sent += n
		}
		if errors.Is(err, ncerr.ErrWouldBlock) {
			break
		}
		if err != nil || n == 0 {
			if sent > 0 {
				// Report the failure on the next tick, after the
				// progress made here has been accounted for.
				break
			}
			if err == nil {
				s.lose(FailureClosed, ncerr.ErrStreamClosed)
			} else {
				s.lose(classify(err), ncerr.Wrap("write", s.addr, err))
			}
			return false
		}
	}
	if len(s.out) == 0 {
		s.out = nil
	}
	s.metrics.BytesSent(int64(sent))
	return true
}

// fill reads until the socket would block.  A zero-length read with
// nothing read this pass means the peer closed the stream.  It returns
// false if the connection was lost.
func (s *Session) fill() bool {
	bp := util.GetBuf()
	defer util.PutBuf(bp)
	buf := *bp

	read := 0
	for {
		n, err := s.conn.TryRead(buf)
		if n > 0 {
			s.in = append(s.in, buf[:n]...)
			read += n
		}
		if errors.Is(err, ncerr.ErrWouldBlock) {
			break
		}
		if err != nil || n == 0 {
			if read > 0 {
				break
			}
			if err == nil {
				s.lose(FailureClosed, ncerr.ErrStreamClosed)
			} else {
				s.lose(classify(err), ncerr.Wrap("read", s.addr, err))
			}
			return false
		}
	}
	s.metrics.BytesReceived(int64(read))
	return true
}

// drainFrames extracts and decodes every complete frame buffered.
// Malformed headers and payloads are logged and skipped.  It returns
// false if the unframed remainder outgrew MaxBuffer.
func (s *Session) drainFrames(now time.Time) bool {
	off := 0
	for {
		frame, consumed, err := pyon.ExtractFrame(s.in[off:])
		if consumed == 0 && err == nil {
			break
		}
		off += consumed
		if err != nil {
			s.decodeError(err)
			continue
		}
		msg, err := frame.Decode()
		if err != nil {
			s.decodeError(err)
			continue
		}
		s.inbox.Add(msg)
		s.lastMessage = now
		s.metrics.MessageDecoded()
		s.logger.Debug("message: PyON %d %s", msg.Version, msg.Type)
	}
	// Compact in place; frame payloads were copied during decode.
	s.in = s.in[:copy(s.in, s.in[off:])]

	if len(s.in) > s.cfg.MaxBuffer {
		s.lose(FailureProtocol, fmt.Errorf("%d bytes buffered without a complete PyON frame", len(s.in)))
		return false
	}
	return true
}

func (s *Session) decodeError(err error) {
	s.logger.Error("%v", err)
	s.metrics.DecodeError(err.Error())
}
