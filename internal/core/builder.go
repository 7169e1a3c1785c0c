package core

import (
	"io"
	"os"

	"fahstat/config"
	"fahstat/internal/metrics"
	"fahstat/internal/session"
	"fahstat/internal/transport"
	"fahstat/monitor"
	"fahstat/tunnel"
	"fahstat/util"
)

// Build constructs the mode described by cfg.  cfg must already be
// validated and have its tunnel resolved.  Output goes to out, or
// os.Stdout when out is nil.
func Build(cfg *config.Config, logger *util.Logger, out io.Writer) (Mode, error) {
	if _, err := util.ResolveAddr(cfg.Host, cfg.Port, cfg.NoDNS); err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stdout
	}
	sink, err := monitor.NewSink(cfg.Dump, out)
	if err != nil {
		return nil, err
	}

	return &MonitorMode{
		Session:  sessionConfig(cfg),
		Monitor:  monitorConfig(cfg),
		Dialer:   buildDialer(cfg, logger),
		Sink:     sink,
		Logger:   logger,
		Metrics:  metrics.New(),
		LogStats: logger.Level() >= util.LogVerbose,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// sessionConfig maps the CLI configuration onto the session's.  The
// session treats a zero idle timeout as "use the default", so a
// disabled timeout becomes negative here.
func sessionConfig(cfg *config.Config) session.Config {
	idle := cfg.IdleTimeout
	if idle == 0 {
		idle = -1
	}
	return session.Config{
		Address:        cfg.Host,
		Port:           cfg.Port,
		Password:       cfg.Password,
		RetryRate:      cfg.RetryRate,
		RetryMax:       cfg.RetryMax,
		ConnectTimeout: cfg.ConnectTimeout,
		IdleTimeout:    idle,
		InitCommands:   cfg.InitCommands,
	}
}

func monitorConfig(cfg *config.Config) monitor.Config {
	return monitor.Config{
		Tick:          cfg.TickInterval,
		UpdateCommand: cfg.UpdateCommand(),
		Once:          cfg.Once,
	}
}

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		tun := tunnel.NewSSHTunnel(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   config.DefaultSSHConnTimeout,
			KeepAlive:     config.DefaultSSHKeepAlive,
		}, logger)
		return transport.NewSSHDialer(tun, config.DefaultTunnelAttempts, logger)
	}

	return &transport.TCPDialer{Timeout: cfg.ConnectTimeout, KeepAlive: config.DefaultTCPKeepAlive}
}
