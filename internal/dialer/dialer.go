package dialer

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"go.uber.org/zap"
)

// Connector connects to a resolved remote address.
type Connector interface {
	Connect(ctx context.Context, remote netip.AddrPort) (*net.TCPConn, error)
}

// New returns the Connector variant for cfg. FastOpenConnect is only chosen
// when cfg.FastOpen is set and the platform supports it.
func New(cfg Config) Connector {
	if cfg.FastOpen && FastOpenSupported {
		return &FastOpenConnect{cfg: cfg, log: cfg.logger()}
	}
	return &StandardConnect{cfg: cfg, log: cfg.logger()}
}

type controlFunc func(network, address string, c syscall.RawConn) error

// connect dials remote, binding to cfg.Through first if it is set. extra,
// if non-nil, runs on the raw socket before connect.
func connect(ctx context.Context, cfg Config, log *zap.Logger, remote netip.AddrPort, extra controlFunc) (*net.TCPConn, error) {
	remote = netip.AddrPortFrom(remote.Addr().Unmap(), remote.Port())
	family := remote

	d := net.Dialer{KeepAliveConfig: cfg.KeepAlive}
	var controls []controlFunc

	if cfg.Through.IsValid() {
		through := netip.AddrPortFrom(cfg.Through.Addr().Unmap(), cfg.Through.Port())
		if through.Addr().Is4() != remote.Addr().Is4() {
			return nil, &BindError{Addr: through, Err: fmt.Errorf("%w: through %s, remote %s", ErrFamilyMismatch, through, remote)}
		}
		family = through
		d.LocalAddr = net.TCPAddrFromAddrPort(through)
		controls = append(controls, reuseControl(log))
	}
	if extra != nil {
		controls = append(controls, extra)
	}
	if len(controls) > 0 {
		d.Control = func(network, address string, c syscall.RawConn) error {
			for _, f := range controls {
				if err := f(network, address, c); err != nil {
					return err
				}
			}
			return nil
		}
	}

	network := "tcp4"
	if !family.Addr().Is4() {
		network = "tcp6"
	}

	c, err := d.DialContext(ctx, network, remote.String())
	if err != nil {
		if isBindFailure(err) {
			return nil, &BindError{Addr: cfg.Through, Err: err}
		}
		return nil, &ConnectError{Addr: remote, Err: err}
	}

	tc, ok := c.(*net.TCPConn)
	if !ok {
		_ = c.Close()
		return nil, &ConnectError{Addr: remote, Err: fmt.Errorf("unexpected connection type %T", c)}
	}
	return tc, nil
}

// reuseControl sets SO_REUSEADDR and SO_REUSEPORT. Failures are logged and
// never abort the connect.
func reuseControl(log *zap.Logger) controlFunc {
	return func(_, _ string, c syscall.RawConn) error {
		return c.Control(func(fd uintptr) {
			if err := setReuseAddr(fd); err != nil {
				log.Warn("failed to setsockopt", zap.String("opt", "reuseaddr"), zap.Error(err))
			}
			if err := setReusePort(fd); err != nil {
				log.Warn("failed to setsockopt", zap.String("opt", "reuseport"), zap.Error(err))
			}
		})
	}
}
