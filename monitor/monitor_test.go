package monitor

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fahstat/internal/session"
	"fahstat/pyon"
)

// scriptedSession delivers one batch of messages per Tick.
type scriptedSession struct {
	batches [][]pyon.Message
	ready   []pyon.Message
	queued  []string
	ticks   int
	status  string
	reason  session.FailureReason
}

func (s *scriptedSession) Tick() {
	s.ticks++
	if len(s.batches) > 0 {
		s.ready = append(s.ready, s.batches[0]...)
		s.batches = s.batches[1:]
	}
}

func (s *scriptedSession) Drain() []pyon.Message {
	out := s.ready
	s.ready = nil
	return out
}

func (s *scriptedSession) QueueCommand(text string) { s.queued = append(s.queued, text) }

func (s *scriptedSession) Status() string {
	if s.status == "" {
		return "Connecting"
	}
	return s.status
}

func (s *scriptedSession) State() session.State {
	if s.status == "Online" {
		return session.StateConnected
	}
	return session.StateDisconnected
}

func (s *scriptedSession) FailureReason() session.FailureReason { return s.reason }

type collector struct{ msgs []pyon.Message }

func (c *collector) Write(m pyon.Message) error { c.msgs = append(c.msgs, m); return nil }

func options() pyon.Message {
	return pyon.Message{Version: 1, Type: "options", Payload: map[string]any{"power": "full"}}
}

func units() pyon.Message {
	return pyon.Message{Version: 1, Type: "units", Payload: []any{map[string]any{"slot": "00", "state": "RUNNING"}}}
}

func TestStep_SubscribesOnOptions(t *testing.T) {
	s := &scriptedSession{batches: [][]pyon.Message{{options()}, {units()}}}
	sink := &collector{}
	m := New(s, sink, Config{UpdateCommand: "updates add 0 2 $queue-info"}, nil)

	done, err := m.Step()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, []string{"updates add 0 2 $queue-info"}, s.queued)

	_, err = m.Step()
	require.NoError(t, err)
	require.Len(t, sink.msgs, 2)
	assert.Equal(t, "units", sink.msgs[1].Type)

	// A later options message (e.g. after a reconnect) subscribes again.
	s.batches = [][]pyon.Message{{options()}}
	_, err = m.Step()
	require.NoError(t, err)
	assert.Len(t, s.queued, 2)
}

func TestStep_NoSubscription(t *testing.T) {
	s := &scriptedSession{batches: [][]pyon.Message{{options()}}}
	m := New(s, &collector{}, Config{}, nil)
	_, err := m.Step()
	require.NoError(t, err)
	assert.Empty(t, s.queued)
}

func TestStep_Once(t *testing.T) {
	s := &scriptedSession{batches: [][]pyon.Message{{options()}, {units(), units()}}}
	sink := &collector{}
	m := New(s, sink, Config{Once: true}, nil)

	done, err := m.Step()
	require.NoError(t, err)
	assert.False(t, done, "options alone does not finish")

	done, err = m.Step()
	require.NoError(t, err)
	assert.True(t, done)
	assert.Len(t, sink.msgs, 2, "stops right after the first status message")
}

func TestStep_SinkError(t *testing.T) {
	s := &scriptedSession{batches: [][]pyon.Message{{units()}}}
	boom := errors.New("disk full")
	m := New(s, SinkFunc(func(pyon.Message) error { return boom }), Config{}, nil)

	done, err := m.Step()
	assert.True(t, done)
	assert.ErrorIs(t, err, boom)
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := &scriptedSession{}
	m := New(s, &collector{}, Config{Tick: time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, m.Run(ctx))
	assert.Greater(t, s.ticks, 1)
}

func TestRun_Once(t *testing.T) {
	s := &scriptedSession{batches: [][]pyon.Message{{options()}, {}, {units()}}}
	sink := &collector{}
	m := New(s, sink, Config{Tick: time.Millisecond, Once: true}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Run(ctx))
	assert.Equal(t, 3, s.ticks)
	assert.Len(t, sink.msgs, 2)
}

func TestJSONSink(t *testing.T) {
	var out strings.Builder
	sink, err := NewSink("json", &out)
	require.NoError(t, err)

	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.NoError(t, sink.Write(pyon.Message{Version: 1, Type: "units", Payload: []any{
		map[string]any{"slot": "00", "project": int64(14304), "percentdone": "42.00%", "big": huge, "x": nil},
	}}))
	require.NoError(t, sink.Write(options()))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"version":1,"type":"units","payload":[{"slot":"00","project":14304,"percentdone":"42.00%","big":123456789012345678901234567890,"x":null}]}`, lines[0])
	assert.JSONEq(t, `{"version":1,"type":"options","payload":{"power":"full"}}`, lines[1])
}

func TestPyONSink_RoundTrip(t *testing.T) {
	var out strings.Builder
	sink, err := NewSink("pyon", &out)
	require.NoError(t, err)

	msg := units()
	require.NoError(t, sink.Write(msg))

	frame, n, err := pyon.ExtractFrame([]byte(out.String()))
	require.NoError(t, err)
	require.NotZero(t, n)
	got, err := frame.Decode()
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestNewSink_Unknown(t *testing.T) {
	_, err := NewSink("xml", &strings.Builder{})
	assert.Error(t, err)
}
