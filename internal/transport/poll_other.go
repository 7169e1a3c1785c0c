//go:build !unix

package transport

import "net"

// Descriptor-level polling is only implemented for unix; elsewhere
// every connection goes through the pump.
func newRawPoller(net.Conn) (Poller, bool) { return nil, false }
