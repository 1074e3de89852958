package dialer

import (
	"context"
	"net"
	"net/netip"

	"go.uber.org/zap"
)

// StandardConnect performs a plain connect, optionally bound to the
// configured through address.
type StandardConnect struct {
	cfg Config
	log *zap.Logger
}

func (s *StandardConnect) Connect(ctx context.Context, remote netip.AddrPort) (*net.TCPConn, error) {
	return connect(ctx, s.cfg, s.log, remote, nil)
}
