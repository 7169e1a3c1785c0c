// Package config defines the runtime configuration for fahstat and
// provides helpers for parsing tunnel specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	ncerr "fahstat/internal/errors"
	"fahstat/util"
)

// Config holds every tuneable for a single fahstat run.
type Config struct {
	// ── Daemon ───────────────────────────────────────────────────────
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	Password       string   `toml:"password"`
	PasswordPrompt bool     `toml:"-"` // true → prompt interactively
	NoDNS          bool     `toml:"no_dns"`
	InitCommands   []string `toml:"init_commands"`

	// ── Session timing ───────────────────────────────────────────────
	RetryRate      time.Duration `toml:"retry_rate"`
	RetryMax       time.Duration `toml:"retry_max"` // 0 = constant RetryRate
	ConnectTimeout time.Duration `toml:"connect_timeout"`
	IdleTimeout    time.Duration `toml:"idle_timeout"`
	TickInterval   time.Duration `toml:"tick_interval"`

	// ── Queue-info subscription ──────────────────────────────────────
	UpdateID       int           `toml:"update_id"`
	UpdateInterval time.Duration `toml:"update_interval"`

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string `toml:"tunnel"` // raw user@host[:port]
	TunnelEnabled  bool   `toml:"-"`
	TunnelUser     string `toml:"-"`
	TunnelHost     string `toml:"-"`
	TunnelPort     int    `toml:"-"`
	SSHKeyPath     string `toml:"ssh_key"`
	SSHPassword    bool   `toml:"ssh_password"` // true → prompt interactively
	UseSSHAgent    bool   `toml:"ssh_agent"`
	StrictHostKey  bool   `toml:"strict_hostkey"`
	KnownHostsPath string `toml:"known_hosts"`

	// ── Output ───────────────────────────────────────────────────────
	Dump    string `toml:"dump"` // "json" or "pyon"
	Once    bool   `toml:"once"` // exit after the first queue-info message
	Verbose int    `toml:"verbose"`
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		InitCommands:   []string{DefaultInitCommand},
		RetryRate:      DefaultRetryRate,
		ConnectTimeout: DefaultConnectTimeout,
		IdleTimeout:    DefaultIdleTimeout,
		TickInterval:   DefaultTickInterval,
		UpdateID:       DefaultUpdateID,
		UpdateInterval: DefaultUpdateInterval,
		Dump:           DefaultDump,
		Verbose:        1,
	}
}

// Addr returns the daemon address as host:port.
func (c *Config) Addr() string {
	return util.FormatAddr(c.Host, c.Port)
}

// UpdateCommand is the subscription sent once the daemon has reported
// its options.
func (c *Config) UpdateCommand() string {
	secs := int((c.UpdateInterval + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("updates add %d %d $queue-info", c.UpdateID, secs)
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ResolveTunnel fills the Tunnel* fields from TunnelSpec.
func (c *Config) ResolveTunnel() error {
	if c.TunnelSpec == "" {
		c.TunnelEnabled = false
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &ncerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: err.Error()}
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &ncerr.ConfigError{
			Field:   "host",
			Message: "daemon host is required",
			Hint:    "pass a target such as localhost or 10.0.0.5:36330",
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ncerr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "out of range 1-65535",
			Hint:    fmt.Sprintf("the daemon listens on %d by default", DefaultPort),
		}
	}
	if c.RetryRate <= 0 {
		return &ncerr.ConfigError{Field: "retry-rate", Value: c.RetryRate, Message: "must be positive"}
	}
	if c.RetryMax != 0 && c.RetryMax < c.RetryRate {
		return &ncerr.ConfigError{
			Field:   "retry-max",
			Value:   c.RetryMax,
			Message: "must not be below --retry-rate",
			Hint:    "use 0 for a constant retry delay",
		}
	}
	if c.ConnectTimeout <= 0 {
		return &ncerr.ConfigError{Field: "connect-timeout", Value: c.ConnectTimeout, Message: "must be positive"}
	}
	if c.IdleTimeout < 0 {
		return &ncerr.ConfigError{
			Field:   "idle-timeout",
			Value:   c.IdleTimeout,
			Message: "must not be negative",
			Hint:    "use 0 to disable the idle timeout",
		}
	}
	if c.TickInterval <= 0 {
		return &ncerr.ConfigError{Field: "tick", Value: c.TickInterval, Message: "must be positive"}
	}
	if c.UpdateInterval <= 0 {
		return &ncerr.ConfigError{Field: "update-interval", Value: c.UpdateInterval, Message: "must be positive"}
	}
	switch c.Dump {
	case "json", "pyon":
	default:
		return &ncerr.ConfigError{Field: "dump", Value: c.Dump, Message: "unknown format", Hint: "use json or pyon"}
	}
	if c.Password != "" && c.PasswordPrompt {
		return &ncerr.ConfigError{Field: "password-prompt", Message: "--password and --password-prompt are mutually exclusive"}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}
	if c.NoDNS && c.TunnelEnabled {
		return &ncerr.ConfigError{
			Field:   "no-dns",
			Message: "not supported through SSH tunnels",
			Hint:    "the gateway resolves the daemon host",
		}
	}
	return nil
}
