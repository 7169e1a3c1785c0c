//go:build windows

package errors

import "syscall"

// Winsock codes not exported by package syscall.
const (
	wsaEWouldBlock   syscall.Errno = 10035
	wsaENetDown      syscall.Errno = 10050
	wsaENetUnreach   syscall.Errno = 10051
	wsaETimedOut     syscall.Errno = 10060
	wsaEConnRefused  syscall.Errno = 10061
	wsaEHostUnreach  syscall.Errno = 10065
	wsaEInProgress   syscall.Errno = 10036
	errorConnRefused syscall.Errno = 1225 // ERROR_CONNECTION_REFUSED
)

func classifyErrno(errno syscall.Errno) (Kind, bool) {
	switch errno {
	case wsaEWouldBlock, wsaEInProgress:
		return KindWouldBlock, true
	case wsaEConnRefused, errorConnRefused:
		return KindRefused, true
	case wsaETimedOut, wsaENetDown, wsaENetUnreach, wsaEHostUnreach:
		return KindTimeout, true
	case syscall.WSAECONNRESET, syscall.WSAECONNABORTED:
		return KindReset, true
	}
	return KindNone, false
}
