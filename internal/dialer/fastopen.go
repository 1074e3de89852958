package dialer

import (
	"context"
	"net"
	"net/netip"
	"syscall"

	"go.uber.org/zap"
)

// FastOpenConnect connects with TCP Fast Open enabled on the socket, so the
// SYN carries the first payload written to the returned connection.
//
// If the kernel refuses the option the connect proceeds as a standard one.
// With Fast Open the handshake completes on the first write, so a refused
// connection may only surface on the first I/O instead of from Connect.
type FastOpenConnect struct {
	cfg Config
	log *zap.Logger
}

func (f *FastOpenConnect) Connect(ctx context.Context, remote netip.AddrPort) (*net.TCPConn, error) {
	return connect(ctx, f.cfg, f.log, remote, f.control)
}

func (f *FastOpenConnect) control(_, _ string, c syscall.RawConn) error {
	return c.Control(func(fd uintptr) {
		if err := setFastOpenConnect(fd); err != nil {
			f.log.Warn("failed to setsockopt", zap.String("opt", "fastopen"), zap.Error(err))
		}
	})
}
