package config

// loader.go - configuration loading from files and environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables
//   3. TOML config file
//   4. Defaults   (defaults.go)

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// LoadFile overlays the TOML file at path onto cfg.  Keys that do not
// map onto a Config field are rejected so typos surface early.
func LoadFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the FAHSTAT_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Durations accept Go
// duration syntax ("5s") or a bare number of seconds.

// EnvConfigPath names the variable holding the config file path.
const EnvConfigPath = "FAHSTAT_CONFIG"

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("FAHSTAT_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("FAHSTAT_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := os.Getenv("FAHSTAT_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if envBool("FAHSTAT_NO_DNS") {
		cfg.NoDNS = true
	}
	if v := os.Getenv("FAHSTAT_INIT_COMMANDS"); v != "" {
		cfg.InitCommands = splitCommands(v)
	}

	// Session timing
	if v, ok := envDuration("FAHSTAT_RETRY_RATE"); ok {
		cfg.RetryRate = v
	}
	if v, ok := envDuration("FAHSTAT_RETRY_MAX"); ok {
		cfg.RetryMax = v
	}
	if v, ok := envDuration("FAHSTAT_CONNECT_TIMEOUT"); ok {
		cfg.ConnectTimeout = v
	}
	if v, ok := envDuration("FAHSTAT_IDLE_TIMEOUT"); ok {
		cfg.IdleTimeout = v
	}
	if v, ok := envDuration("FAHSTAT_UPDATE_INTERVAL"); ok {
		cfg.UpdateInterval = v
	}

	// SSH tunnel
	if v := os.Getenv("FAHSTAT_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("FAHSTAT_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("FAHSTAT_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("FAHSTAT_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("FAHSTAT_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("FAHSTAT_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := os.Getenv("FAHSTAT_DUMP"); v != "" {
		cfg.Dump = strings.ToLower(v)
	}
	if v := envInt("FAHSTAT_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) (time.Duration, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, true
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

// splitCommands splits a ';'-separated command list, dropping blanks.
func splitCommands(v string) []string {
	var out []string
	for _, c := range strings.Split(v, ";") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
