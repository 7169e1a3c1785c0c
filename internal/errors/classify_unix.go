//go:build unix

package errors

import (
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"
)

func classifyErrno(errno syscall.Errno) (Kind, bool) {
	switch errno {
	case unix.EAGAIN, unix.EINTR, unix.EINPROGRESS:
		return KindWouldBlock, true
	case unix.ECONNREFUSED:
		return KindRefused, true
	case unix.ETIMEDOUT, unix.ENETDOWN, unix.ENETUNREACH, unix.EHOSTUNREACH:
		return KindTimeout, true
	case unix.ECONNRESET, unix.ECONNABORTED:
		return KindReset, true
	case unix.EPIPE:
		// macOS reports a refused connect as a broken pipe on the
		// first write.
		if runtime.GOOS == "darwin" {
			return KindRefused, true
		}
		return KindReset, true
	}
	return KindNone, false
}
