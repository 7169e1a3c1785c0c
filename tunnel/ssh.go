package tunnel

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "fahstat/internal/errors"
	"fahstat/util"
)

// SSHConfig holds everything needed to dial an SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration

	// KeepAlive is the interval between keepalive@openssh.com probes.
	// A failed probe tears the client down so the next Dial reconnects.
	// Zero disables probing.
	KeepAlive time.Duration

	// Prompt reads passwords and key passphrases.  Nil uses the
	// controlling terminal.
	Prompt util.Prompter
}

func (c *SSHConfig) prompter() util.Prompter {
	if c.Prompt != nil {
		return c.Prompt
	}
	return util.TerminalPrompter
}

// Addr returns the gateway address.
func (c *SSHConfig) Addr() string {
	return util.FormatAddr(c.Host, c.Port)
}

// SSHTunnel implements [Tunnel] by opening an SSH connection and
// forwarding traffic with ssh.Client.DialContext.  Authentication
// methods are built on the first Connect and reused afterwards so a
// reconnect never prompts twice.
type SSHTunnel struct {
	config *SSHConfig
	logger *util.Logger

	mu     sync.RWMutex
	client *ssh.Client
	alive  bool
	auth   []ssh.AuthMethod
	done   chan struct{}
}

// NewSSHTunnel creates a tunnel that is ready to [Connect].
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = util.Discard()
	}
	return &SSHTunnel{config: cfg, logger: logger}
}

func (t *SSHTunnel) authMethods() ([]ssh.AuthMethod, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.auth != nil {
		return t.auth, nil
	}
	methods, err := BuildAuthMethods(t.config)
	if err != nil {
		return nil, err
	}
	t.auth = methods
	return methods, nil
}

// Connect dials the SSH gateway and completes the handshake.  Calling
// Connect on a live tunnel is a no-op.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	if t.IsAlive() {
		return nil
	}

	authMethods, err := t.authMethods()
	if err != nil {
		return ncerr.WrapSSH("auth", t.config.Host, t.config.Port, err)
	}

	hkCallback, err := hostKeyCallback(t.config)
	if err != nil {
		return ncerr.WrapSSH("hostkey", t.config.Host, t.config.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            t.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         t.config.ConnTimeout,
	}

	addr := t.config.Addr()
	t.logger.Debug("SSH: dialing %s as %s", addr, t.config.User)

	dialer := net.Dialer{Timeout: t.config.ConnTimeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return ncerr.Wrap("dial", addr, err)
	}

	// The handshake itself has no context; bound it with a deadline.
	if dl, ok := ctx.Deadline(); ok {
		tcpConn.SetDeadline(dl) //nolint:errcheck
	} else {
		tcpConn.SetDeadline(time.Now().Add(t.config.ConnTimeout)) //nolint:errcheck
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if err != nil {
		tcpConn.Close()
		return ncerr.WrapSSH("handshake", t.config.Host, t.config.Port, err)
	}
	tcpConn.SetDeadline(time.Time{}) //nolint:errcheck

	client := ssh.NewClient(sshConn, chans, reqs)
	done := make(chan struct{})

	t.mu.Lock()
	t.client = client
	t.alive = true
	t.done = done
	t.mu.Unlock()

	go t.monitor(client, done)
	if t.config.KeepAlive > 0 {
		go t.keepAlive(client, done)
	}

	t.logger.Verbose("SSH tunnel established to %s", addr)
	return nil
}

// Dial forwards a connection through the tunnel.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.RLock()
	client := t.client
	alive := t.alive
	t.mu.RUnlock()

	if !alive || client == nil {
		return nil, ncerr.ErrNotConnected
	}

	t.logger.Debug("tunnel: dialing %s %s", network, address)
	conn, err := client.DialContext(ctx, network, address)
	if err != nil {
		return nil, ncerr.Wrap("tunnel dial", address, err)
	}
	return conn, nil
}

// Close shuts down the SSH connection.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alive = false
	if t.client != nil {
		err := t.client.Close()
		t.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the tunnel is still connected.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

// markDead flips the alive flag if client is still the current one.
func (t *SSHTunnel) markDead(client *ssh.Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == client {
		t.alive = false
		t.client = nil
	}
}

// monitor blocks until the SSH connection closes and flips the alive flag.
func (t *SSHTunnel) monitor(client *ssh.Client, done chan struct{}) {
	err := client.Wait()
	close(done)
	t.markDead(client)

	if err != nil {
		t.logger.Debug("SSH tunnel closed: %v", err)
	} else {
		t.logger.Debug("SSH tunnel closed")
	}
}

// keepAlive probes the gateway until the connection ends.  A gateway
// that stops answering is closed so that monitor marks the tunnel dead.
func (t *SSHTunnel) keepAlive(client *ssh.Client, done chan struct{}) {
	tick := time.NewTicker(t.config.KeepAlive)
	defer tick.Stop()

	for {
		select {
		case <-done:
			return
		case <-tick.C:
			if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				t.logger.Warn("SSH keepalive to %s failed: %v", t.config.Addr(), err)
				client.Close()
				return
			}
		}
	}
}

// String describes the gateway for log lines.
func (t *SSHTunnel) String() string {
	return fmt.Sprintf("ssh://%s@%s", t.config.User, t.config.Addr())
}
