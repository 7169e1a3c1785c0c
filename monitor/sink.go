package monitor

import (
	"encoding/json"
	"fmt"
	"io"

	"fahstat/pyon"
)

// Sink consumes decoded messages.
type Sink interface {
	Write(msg pyon.Message) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(pyon.Message) error

func (f SinkFunc) Write(msg pyon.Message) error { return f(msg) }

// NewSink returns the sink for a --dump format.
func NewSink(format string, w io.Writer) (Sink, error) {
	switch format {
	case "json":
		return NewJSONSink(w), nil
	case "pyon":
		return NewPyONSink(w), nil
	default:
		return nil, fmt.Errorf("unknown dump format %q", format)
	}
}

// JSONSink writes one JSON object per message and line.
type JSONSink struct {
	enc *json.Encoder
}

type jsonRecord struct {
	Version int    `json:"version"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// NewJSONSink returns a JSONSink writing to w.
func NewJSONSink(w io.Writer) *JSONSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONSink{enc: enc}
}

func (s *JSONSink) Write(msg pyon.Message) error {
	return s.enc.Encode(jsonRecord{Version: msg.Version, Type: msg.Type, Payload: msg.Payload})
}

// PyONSink re-encodes messages as PyON frames, the daemon's own wire
// form.
type PyONSink struct {
	w   io.Writer
	buf []byte
}

// NewPyONSink returns a PyONSink writing to w.
func NewPyONSink(w io.Writer) *PyONSink { return &PyONSink{w: w} }

func (s *PyONSink) Write(msg pyon.Message) error {
	var err error
	s.buf, err = pyon.AppendFrame(s.buf[:0], msg.Version, msg.Type, msg.Payload)
	if err != nil {
		return err
	}
	_, err = s.w.Write(s.buf)
	return err
}
