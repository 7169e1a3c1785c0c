//go:build !unix && !windows

package errors

import "syscall"

func classifyErrno(syscall.Errno) (Kind, bool) { return KindNone, false }
