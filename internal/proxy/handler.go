package proxy

import (
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/die-net/realm/internal/conn"
	"github.com/die-net/realm/internal/dialer"
	"github.com/die-net/realm/internal/relay"
	"github.com/die-net/realm/internal/resolve"
)

// Handler proxies inbound connections to a single remote.
type Handler struct {
	remote    resolve.RemoteAddr
	opts      ConnectOpts
	connector dialer.Connector
	engine    relay.Engine
	log       *zap.Logger
}

// NewHandler picks the connector and relay engine for opts once; every
// connection handled afterwards uses the same pair.
func NewHandler(remote resolve.RemoteAddr, opts ConnectOpts, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		remote: remote,
		opts:   opts,
		connector: dialer.New(dialer.Config{
			Through:   opts.SendThrough,
			FastOpen:  opts.FastOpen,
			KeepAlive: opts.KeepAlive,
			Logger:    log,
		}),
		engine: relay.New(opts.ZeroCopy, log),
		log:    log,
	}
}

// Proxy relays inbound to the remote until both directions finish.
//
// inbound is closed when Proxy returns, on every path. Errors are one of
// *resolve.ResolutionError, *dialer.BindError, *dialer.ConnectError or
// *relay.TransferError.
func (h *Handler) Proxy(ctx context.Context, inbound *net.TCPConn) (relay.Result, error) {
	defer inbound.Close()

	outbound, err := h.dial(ctx)
	if err != nil {
		return relay.Result{}, err
	}

	if err := conn.SetNoDelay(inbound); err != nil {
		h.log.Warn("failed to setsockopt", zap.String("opt", "nodelay"), zap.String("side", "inbound"), zap.Error(err))
	}
	if err := conn.SetNoDelay(outbound); err != nil {
		h.log.Warn("failed to setsockopt", zap.String("opt", "nodelay"), zap.String("side", "outbound"), zap.Error(err))
	}

	return h.engine.Relay(ctx, inbound, outbound)
}

func (h *Handler) dial(ctx context.Context) (*net.TCPConn, error) {
	if h.opts.TCPTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.TCPTimeout)
		defer cancel()
	}

	addr, err := h.remote.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	h.log.Debug("remote resolved", zap.Stringer("remote", h.remote), zap.Stringer("addr", addr))

	return h.connector.Connect(ctx, addr)
}
