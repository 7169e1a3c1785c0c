// Package session implements the daemon control connection: a
// poll-driven state machine that connects, authenticates, queues
// commands, moves bytes without blocking, and decodes inbound PyON
// frames into messages.
//
// A Session is driven by a single caller goroutine that invokes
// [Session.Tick] at a fixed cadence.  Tick never blocks and never
// returns an error; progress is observed through [Session.Drain],
// [Session.Status] and [Session.FailureReason].  Session is not safe
// for concurrent use.
package session

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/eapache/queue"

	ncerr "fahstat/internal/errors"
	"fahstat/internal/metrics"
	"fahstat/internal/retry"
	"fahstat/internal/transport"
	"fahstat/pyon"
	"fahstat/util"
)

// Defaults applied to zero-valued Config fields.
const (
	DefaultRetryRate      = 5 * time.Second
	DefaultConnectTimeout = 60 * time.Second
	DefaultIdleTimeout    = 10 * time.Second
	DefaultMaxBuffer      = 64 << 20
)

// Config is the immutable per-session configuration.
type Config struct {
	Address  string
	Port     int
	Password string // sent as the first command when non-empty

	// RetryRate is the minimum spacing between connect attempts.  When
	// RetryMax is larger, the spacing doubles after each consecutive
	// failure up to RetryMax.
	RetryRate time.Duration
	RetryMax  time.Duration

	// ConnectTimeout abandons a dial that has not completed.
	ConnectTimeout time.Duration

	// IdleTimeout drops a connection that has delivered at least one
	// message but none for this long.  Negative disables it.
	IdleTimeout time.Duration

	// MaxBuffer bounds unframed inbound bytes; exceeding it drops the
	// connection as a protocol error.
	MaxBuffer int

	InitCommands []string
}

func (c *Config) validate() error {
	if c.Address == "" {
		return &ncerr.ConfigError{Field: "host", Message: "daemon address is required"}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ncerr.ConfigError{Field: "port", Value: c.Port, Message: "out of range 1-65535"}
	}
	if c.RetryRate < 0 || c.RetryMax < 0 || c.ConnectTimeout < 0 || c.MaxBuffer < 0 {
		return &ncerr.ConfigError{Field: "timing", Message: "durations and limits must not be negative"}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.RetryRate == 0 {
		c.RetryRate = DefaultRetryRate
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.MaxBuffer == 0 {
		c.MaxBuffer = DefaultMaxBuffer
	}
}

// Session is one persistent daemon connection.
type Session struct {
	cfg       Config
	addr      string
	dialer    transport.Dialer
	newPoller func(net.Conn) transport.Poller
	logger    *util.Logger
	metrics   *metrics.Collector
	now       func() time.Time
	backoff   *retry.Backoff

	state   State
	failure FailureReason
	conn    transport.Poller
	pending *dial

	out       []byte
	bootstrap int // leading bytes of out re-queued by every connect
	in        []byte
	inbox     *queue.Queue

	lastConnect  time.Time
	lastMessage  time.Time
	failures     int // consecutive attempts that never connected
	initCommands []string
	closed       bool
}

// Option customises a Session.
type Option func(*Session)

// WithDialer replaces the default TCP dialer, e.g. with an SSH tunnel.
func WithDialer(d transport.Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

// WithLogger sets the log sink.
func WithLogger(l *util.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New validates cfg and returns a disconnected Session.  Nothing is
// dialed until the first Tick.
func New(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	s := &Session{
		cfg:       cfg,
		addr:      util.FormatAddr(cfg.Address, cfg.Port),
		newPoller: transport.NewPoller,
		now:       time.Now,
		inbox:     queue.New(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.dialer == nil {
		s.dialer = &transport.TCPDialer{Timeout: cfg.ConnectTimeout}
	}
	if s.logger == nil {
		s.logger = util.Discard()
	}
	if cfg.RetryMax > cfg.RetryRate {
		s.backoff = retry.Exponential(cfg.RetryRate, cfg.RetryMax)
	} else {
		s.backoff = retry.Constant(cfg.RetryRate)
	}
	s.ConfigureInitCommands(cfg.InitCommands)
	return s, nil
}

// Addr returns the daemon address as host:port.
func (s *Session) Addr() string { return s.addr }

// ConfigureInitCommands replaces the commands sent on every connect.
// When already connected they are queued immediately as well.
func (s *Session) ConfigureInitCommands(cmds []string) {
	s.initCommands = append([]string(nil), cmds...)
	if s.state == StateConnected {
		for _, c := range s.initCommands {
			s.QueueCommand(c)
		}
	}
}

// QueueCommand appends text and a newline to the outbound buffer.  It
// is safe in any state; bytes wait until a connection exists.
func (s *Session) QueueCommand(text string) {
	s.logger.Debug("command: %s", text)
	s.out = append(s.out, text...)
	s.out = append(s.out, '\n')
}

// Drain returns the decoded messages received since the last call.
func (s *Session) Drain() []pyon.Message {
	n := s.inbox.Length()
	if n == 0 {
		return nil
	}
	msgs := make([]pyon.Message, 0, n)
	for s.inbox.Length() > 0 {
		msgs = append(msgs, s.inbox.Remove().(pyon.Message))
	}
	return msgs
}

// Status is "Online" while connected and "Connecting" otherwise.
func (s *Session) Status() string {
	if s.state == StateConnected {
		return "Online"
	}
	return "Connecting"
}

// State returns the lifecycle position.
func (s *Session) State() State { return s.state }

// FailureReason returns why the session last disconnected, or
// FailureNone while connecting or connected.
func (s *Session) FailureReason() FailureReason {
	if s.state != StateDisconnected {
		return FailureNone
	}
	return s.failure
}

// Close drops the connection, cancels any in-flight dial and stops
// further ticks from reconnecting.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.disconnect(FailureNone)
	return nil
}

// authCommand quotes password for the daemon's command tokenizer.
func authCommand(password string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return fmt.Sprintf(`auth "%s"`, r.Replace(password))
}
