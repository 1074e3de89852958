package proxy

import (
	"net"
	"net/netip"
	"time"
)

// ConnectOpts is an endpoint's connection configuration. It is built once
// and only read afterwards.
type ConnectOpts struct {
	// TCPTimeout bounds remote resolution plus the outbound connect. Zero
	// disables it.
	TCPTimeout time.Duration

	// UDPTimeout is carried for the endpoint but unused by the TCP relay.
	UDPTimeout time.Duration

	FastOpen bool
	ZeroCopy bool

	// SendThrough is the local address outbound sockets bind to, if valid.
	SendThrough netip.AddrPort

	KeepAlive net.KeepAliveConfig
}
