package core

import (
	"context"
	"fmt"

	"fahstat/internal/metrics"
	"fahstat/internal/session"
	"fahstat/internal/transport"
	"fahstat/monitor"
	"fahstat/util"
)

// MonitorMode keeps a daemon session alive and writes every message
// it delivers to Sink, the default client mode.
type MonitorMode struct {
	Session session.Config
	Monitor monitor.Config
	Dialer  transport.Dialer
	Sink    monitor.Sink
	Logger  *util.Logger
	Metrics *metrics.Collector

	// LogStats prints a metrics snapshot when Run returns.
	LogStats bool
}

// Run drives the session until ctx is cancelled, the sink fails, or a
// one-shot run has its first status message.  The session and dialer
// are closed when Run returns.
func (m *MonitorMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	sess, err := session.New(m.Session,
		session.WithDialer(m.Dialer),
		session.WithLogger(m.Logger),
		session.WithMetrics(m.Metrics),
	)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	defer sess.Close()

	m.Logger.Verbose("monitoring %s", sess.Addr())

	err = monitor.New(sess, m.Sink, m.Monitor, m.Logger).Run(ctx)
	if m.LogStats {
		m.Logger.Verbose("stats: %s", m.Metrics.JSON())
	}
	return err
}
