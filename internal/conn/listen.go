package conn

import (
	"context"
	"fmt"
	"net"
)

// ListenTCP listens on the given network/address and returns a listener that
// applies keepAliveConfig to accepted TCP connections.
func ListenTCP(ctx context.Context, network, addr string, keepAliveConfig net.KeepAliveConfig) (*KeepAliveListener, error) {
	lc := net.ListenConfig{KeepAliveConfig: keepAliveConfig}

	ln, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, addr, err)
	}

	tl, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return nil, fmt.Errorf("listen %s %s: not a tcp listener", network, addr)
	}

	return &KeepAliveListener{TCPListener: tl, KeepAliveConfig: keepAliveConfig}, nil
}

// KeepAliveListener wraps a *net.TCPListener and applies KeepAliveConfig to
// every accepted connection.
type KeepAliveListener struct {
	*net.TCPListener
	net.KeepAliveConfig
}

// Accept implements net.Listener.
func (l *KeepAliveListener) Accept() (net.Conn, error) {
	return l.AcceptTCP()
}

// AcceptTCP accepts the next connection and applies KeepAliveConfig to it.
// Failing to set keepalive does not reject the connection.
func (l *KeepAliveListener) AcceptTCP() (*net.TCPConn, error) {
	tc, err := l.TCPListener.AcceptTCP()
	if err != nil {
		return nil, err
	}

	_ = ApplyKeepAlive(tc, l.KeepAliveConfig)

	return tc, nil
}
