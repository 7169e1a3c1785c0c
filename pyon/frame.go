// Package pyon implements the framing and value encoding of the PyON
// status protocol spoken by the work-queue daemon.
//
// A frame on the wire looks like
//
//	\nPyON <version> <type>\n
//	<payload>
//	\n---\n
//
// where the payload is a Python-style literal.  The package never
// evaluates anything: payloads are decoded by a dedicated literal
// parser (see [ParseLiteral]).
package pyon

import (
	"bytes"
	"fmt"
	"strconv"

	ncerr "fahstat/internal/errors"
)

var (
	headerMarker = []byte("\nPyON ")
	frameEnd     = []byte("\n---\n")
)

// Message is one decoded frame.
type Message struct {
	Version int
	Type    string
	Payload any
}

// Frame is one complete, not yet decoded, frame.
type Frame struct {
	Version int
	Type    string
	Payload []byte
}

// ExtractFrame looks for the first complete frame in buf.
//
// It returns the frame, the number of bytes of buf consumed, and an
// error.  When no complete frame is buffered it returns consumed == 0
// and a nil error; the caller should wait for more data.  A malformed
// header yields a *errors.ProtocolError and a consumed count covering
// everything before the header's line break, so the next call resumes
// scanning after the bad header.
func ExtractFrame(buf []byte) (Frame, int, error) {
	start := bytes.Index(buf, headerMarker)
	if start == -1 {
		return Frame{}, 0, nil
	}
	eol := bytes.IndexByte(buf[start+1:], '\n')
	if eol == -1 {
		return Frame{}, 0, nil
	}
	eol += start + 1

	line := string(buf[start+1 : eol])
	tokens := splitHeader(line)
	if len(tokens) < 3 {
		return Frame{}, eol, &ncerr.ProtocolError{
			Line: line,
			Err:  fmt.Errorf("expected 3 header tokens, got %d", len(tokens)),
		}
	}
	version, err := strconv.Atoi(tokens[1])
	if err != nil {
		return Frame{}, eol, &ncerr.ProtocolError{Line: line, Err: fmt.Errorf("bad version: %w", err)}
	}

	end := bytes.Index(buf[start:], frameEnd)
	if end == -1 {
		return Frame{}, 0, nil
	}
	end += start

	var payload []byte
	if end > eol {
		payload = buf[eol+1 : end]
	}
	// The closing delimiter's trailing newline is left in the buffer so
	// it can serve as the leading newline of the next header.
	return Frame{Version: version, Type: tokens[2], Payload: payload}, end + len(frameEnd) - 1, nil
}

// splitHeader splits line on whitespace into at most three fields, the
// last one keeping the remainder of the line verbatim apart from its
// leading whitespace.
func splitHeader(line string) []string {
	var out []string
	rest := line
	for len(out) < 2 {
		rest = trimLeftSpace(rest)
		if rest == "" {
			return out
		}
		i := indexSpace(rest)
		if i == -1 {
			return append(out, rest)
		}
		out = append(out, rest[:i])
		rest = rest[i:]
	}
	rest = trimLeftSpace(rest)
	if rest != "" {
		out = append(out, rest)
	}
	return out
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\v', '\f', '\n':
		return true
	}
	return false
}

func indexSpace(s string) int {
	for i := 0; i < len(s); i++ {
		if isSpace(s[i]) {
			return i
		}
	}
	return -1
}

func trimLeftSpace(s string) string {
	for len(s) > 0 && isSpace(s[0]) {
		s = s[1:]
	}
	return s
}

// Decode parses a frame's payload into a [Message].
func (f Frame) Decode() (Message, error) {
	v, err := ParseLiteral(f.Payload)
	if err != nil {
		return Message{}, &ncerr.ProtocolError{
			Version: f.Version,
			Type:    f.Type,
			Raw:     string(f.Payload),
			Err:     err,
		}
	}
	return Message{Version: f.Version, Type: f.Type, Payload: v}, nil
}

// AppendFrame appends the wire form of a frame carrying v to dst.
func AppendFrame(dst []byte, version int, typ string, v any) ([]byte, error) {
	payload, err := FormatLiteral(v)
	if err != nil {
		return dst, err
	}
	dst = append(dst, "\nPyON "...)
	dst = strconv.AppendInt(dst, int64(version), 10)
	dst = append(dst, ' ')
	dst = append(dst, typ...)
	dst = append(dst, '\n')
	dst = append(dst, payload...)
	dst = append(dst, frameEnd...)
	return dst, nil
}
