package errors

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// Kind is the cross-platform classification of a transport error.
type Kind int

const (
	KindNone Kind = iota
	// KindWouldBlock means no progress right now; not an error.
	KindWouldBlock
	KindRefused
	KindReset
	KindTimeout
	KindClosed
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindWouldBlock:
		return "would-block"
	case KindRefused:
		return "refused"
	case KindReset:
		return "reset"
	case KindTimeout:
		return "timeout"
	case KindClosed:
		return "closed"
	default:
		return "other"
	}
}

// Classify maps err onto a [Kind].  Platform errno values are resolved
// by classifyErrno, which has one implementation per OS family.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrWouldBlock):
		return KindWouldBlock
	case errors.Is(err, ErrStreamClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed):
		return KindClosed
	case errors.Is(err, ErrConnectTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if k, ok := classifyErrno(errno); ok {
			return k
		}
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindOther
}
