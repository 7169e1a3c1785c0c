package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnv_Host(t *testing.T) {
	t.Setenv("FAHSTAT_HOST", "test.example.com")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Host != "test.example.com" {
		t.Errorf("Host = %q, want %q", cfg.Host, "test.example.com")
	}
}

func TestLoadFromEnv_Port(t *testing.T) {
	t.Setenv("FAHSTAT_PORT", "36331")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Port != 36331 {
		t.Errorf("Port = %d, want 36331", cfg.Port)
	}
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	tests := []struct {
		key    string
		values []string
		get    func(*Config) bool
	}{
		{"FAHSTAT_NO_DNS", []string{"1", "true", "yes", "TRUE", "Yes"}, func(c *Config) bool { return c.NoDNS }},
		{"FAHSTAT_SSH_AGENT", []string{"1", "true"}, func(c *Config) bool { return c.UseSSHAgent }},
		{"FAHSTAT_STRICT_HOSTKEY", []string{"yes"}, func(c *Config) bool { return c.StrictHostKey }},
	}

	for _, tt := range tests {
		for _, v := range tt.values {
			t.Run(tt.key+"="+v, func(t *testing.T) {
				t.Setenv(tt.key, v)
				cfg := &Config{}
				LoadFromEnv(cfg)
				if !tt.get(cfg) {
					t.Errorf("%s=%s did not set the field", tt.key, v)
				}
			})
		}
	}
}

func TestLoadFromEnv_Durations(t *testing.T) {
	t.Setenv("FAHSTAT_RETRY_RATE", "10")
	t.Setenv("FAHSTAT_RETRY_MAX", "2m")
	t.Setenv("FAHSTAT_IDLE_TIMEOUT", "1500ms")
	t.Setenv("FAHSTAT_CONNECT_TIMEOUT", "garbage")

	cfg := &Config{ConnectTimeout: time.Minute}
	LoadFromEnv(cfg)

	if cfg.RetryRate != 10*time.Second {
		t.Errorf("RetryRate = %v, want 10s", cfg.RetryRate)
	}
	if cfg.RetryMax != 2*time.Minute {
		t.Errorf("RetryMax = %v, want 2m", cfg.RetryMax)
	}
	if cfg.IdleTimeout != 1500*time.Millisecond {
		t.Errorf("IdleTimeout = %v, want 1.5s", cfg.IdleTimeout)
	}
	if cfg.ConnectTimeout != time.Minute {
		t.Errorf("ConnectTimeout = %v, invalid input should be ignored", cfg.ConnectTimeout)
	}
}

func TestLoadFromEnv_InitCommands(t *testing.T) {
	t.Setenv("FAHSTAT_INIT_COMMANDS", "options; ;info ")
	cfg := &Config{}
	LoadFromEnv(cfg)
	want := []string{"options", "info"}
	if !reflect.DeepEqual(cfg.InitCommands, want) {
		t.Errorf("InitCommands = %q, want %q", cfg.InitCommands, want)
	}
}

func TestLoadFromEnv_SSHFields(t *testing.T) {
	t.Setenv("FAHSTAT_TUNNEL", "admin@bastion:2222")
	t.Setenv("FAHSTAT_SSH_KEY", "/home/user/.ssh/id_rsa")
	t.Setenv("FAHSTAT_SSH_PASSWORD", "true")
	t.Setenv("FAHSTAT_KNOWN_HOSTS", "/custom/known_hosts")

	cfg := &Config{}
	LoadFromEnv(cfg)

	if cfg.TunnelSpec != "admin@bastion:2222" {
		t.Errorf("TunnelSpec = %q", cfg.TunnelSpec)
	}
	if cfg.SSHKeyPath != "/home/user/.ssh/id_rsa" {
		t.Errorf("SSHKeyPath = %q", cfg.SSHKeyPath)
	}
	if !cfg.SSHPassword {
		t.Error("SSHPassword should be true")
	}
	if cfg.KnownHostsPath != "/custom/known_hosts" {
		t.Errorf("KnownHostsPath = %q", cfg.KnownHostsPath)
	}
}

func TestLoadFromEnv_NoOverrideWhenEmpty(t *testing.T) {
	for _, kv := range os.Environ() {
		if k, _, _ := strings.Cut(kv, "="); strings.HasPrefix(k, "FAHSTAT_") {
			t.Setenv(k, "")
		}
	}

	cfg := &Config{Host: "preset", Port: 1234, Password: "secret"}
	LoadFromEnv(cfg)

	if cfg.Host != "preset" {
		t.Errorf("Host was overridden: %q", cfg.Host)
	}
	if cfg.Port != 1234 {
		t.Errorf("Port was overridden: %d", cfg.Port)
	}
	if cfg.Password != "secret" {
		t.Errorf("Password was overridden: %q", cfg.Password)
	}
}

func TestLoadFromEnv_InvalidIntIgnored(t *testing.T) {
	t.Setenv("FAHSTAT_PORT", "not-a-number")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Port != 0 {
		t.Errorf("Port should be 0 for invalid input, got %d", cfg.Port)
	}
}

func TestLoadFromEnv_DumpLowercased(t *testing.T) {
	t.Setenv("FAHSTAT_DUMP", "PyON")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Dump != "pyon" {
		t.Errorf("Dump = %q, want pyon", cfg.Dump)
	}
}

// ── LoadFile ─────────────────────────────────────────────────────────

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fahstat.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
host = "folding.lan"
port = 36331
password = "hunter2"
init_commands = ["options", "info"]
retry_rate = "3s"
idle_timeout = "30s"
update_interval = "5s"
tunnel = "ops@bastion"
dump = "pyon"
`)
	cfg := Default()
	if err := LoadFile(path, cfg); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Host != "folding.lan" || cfg.Port != 36331 || cfg.Password != "hunter2" {
		t.Errorf("daemon fields = %q %d %q", cfg.Host, cfg.Port, cfg.Password)
	}
	if !reflect.DeepEqual(cfg.InitCommands, []string{"options", "info"}) {
		t.Errorf("InitCommands = %q", cfg.InitCommands)
	}
	if cfg.RetryRate != 3*time.Second || cfg.IdleTimeout != 30*time.Second || cfg.UpdateInterval != 5*time.Second {
		t.Errorf("durations = %v %v %v", cfg.RetryRate, cfg.IdleTimeout, cfg.UpdateInterval)
	}
	if cfg.TunnelSpec != "ops@bastion" || cfg.Dump != "pyon" {
		t.Errorf("TunnelSpec = %q, Dump = %q", cfg.TunnelSpec, cfg.Dump)
	}
	// Untouched keys keep their defaults.
	if cfg.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("ConnectTimeout = %v, want default", cfg.ConnectTimeout)
	}
}

func TestLoadFile_UnknownKey(t *testing.T) {
	path := writeFile(t, "host = \"x\"\nprot = 1\n")
	err := LoadFile(path, Default())
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "prot") {
		t.Errorf("error %q should name the unknown key", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"), Default()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFile_BadSyntax(t *testing.T) {
	path := writeFile(t, "host = \n")
	if err := LoadFile(path, Default()); err == nil {
		t.Fatal("expected parse error")
	}
}
