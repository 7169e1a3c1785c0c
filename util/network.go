package util

import (
	"fmt"
	"net"
	"strconv"
)

// ResolveAddr builds a host:port string, validating that the host is a
// numeric IP when noDNS is true.
func ResolveAddr(host string, port int, noDNS bool) (string, error) {
	if noDNS {
		if net.ParseIP(host) == nil {
			return "", fmt.Errorf("cannot parse %q as an IP address (DNS disabled with -n)", host)
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// SplitTarget parses "host", "host:port" or "[v6]:port".  A missing
// port yields defaultPort.
func SplitTarget(target string, defaultPort int) (string, int, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// No port component: the whole target is the host.
		if ip := net.ParseIP(target); ip != nil || !containsColon(target) {
			return target, defaultPort, nil
		}
		return "", 0, fmt.Errorf("invalid target %q: %w", target, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q in target %q", portStr, target)
	}
	return host, port, nil
}

func containsColon(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return true
		}
	}
	return false
}
