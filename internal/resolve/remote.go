package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// RemoteAddr is an unresolved remote endpoint: either an IP literal or a
// host name plus port, together with the Resolver used to look it up.
//
// RemoteAddr is immutable and is resolved once per proxied connection.
type RemoteAddr struct {
	host     string
	port     uint16
	literal  netip.Addr
	resolver *Resolver
}

// ParseRemoteAddr parses a "host:port" descriptor. IPv6 literals must be
// bracketed. A nil resolver means Default().
func ParseRemoteAddr(s string, resolver *Resolver) (RemoteAddr, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return RemoteAddr{}, fmt.Errorf("invalid remote address %q: %w", s, err)
	}
	if host == "" {
		return RemoteAddr{}, fmt.Errorf("invalid remote address %q: missing host", s)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return RemoteAddr{}, fmt.Errorf("invalid remote address %q: bad port", s)
	}
	return NewRemoteAddr(host, uint16(port), resolver), nil
}

// NewRemoteAddr builds a RemoteAddr from its parts.
func NewRemoteAddr(host string, port uint16, resolver *Resolver) RemoteAddr {
	if resolver == nil {
		resolver = Default()
	}
	a := RemoteAddr{host: host, port: port, resolver: resolver}
	if ip, err := netip.ParseAddr(host); err == nil {
		a.literal = ip.Unmap()
	}
	return a
}

// IsLiteral reports whether the address resolves without a DNS query.
func (a RemoteAddr) IsLiteral() bool {
	return a.literal.IsValid()
}

// Host returns the host part.
func (a RemoteAddr) Host() string {
	return a.host
}

// Port returns the port part.
func (a RemoteAddr) Port() uint16 {
	return a.port
}

func (a RemoteAddr) String() string {
	return net.JoinHostPort(a.host, strconv.Itoa(int(a.port)))
}

var errZeroRemote = errors.New("empty remote address")

// Resolve produces the socket address to connect to. Failures are reported
// as *ResolutionError.
func (a RemoteAddr) Resolve(ctx context.Context) (netip.AddrPort, error) {
	if a.literal.IsValid() {
		return netip.AddrPortFrom(a.literal, a.port), nil
	}
	if a.resolver == nil {
		return netip.AddrPort{}, &ResolutionError{Host: a.host, Err: errZeroRemote}
	}
	ip, err := a.resolver.Lookup(ctx, a.host)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return netip.AddrPortFrom(ip, a.port), nil
}
