package dialer

import (
	"net"
	"net/netip"

	"go.uber.org/zap"
)

type Config struct {
	// Through, if valid, is the local address the outbound socket binds to
	// before connecting. Its family decides the socket family.
	Through netip.AddrPort

	// FastOpen requests TCP Fast Open. It is a hint: unsupported platforms
	// use a standard connect.
	FastOpen bool

	KeepAlive net.KeepAliveConfig

	Logger *zap.Logger
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
