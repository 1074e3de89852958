package proxy

import (
	"context"
	"io"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/die-net/realm/internal/conn"
	"github.com/die-net/realm/internal/dialer"
	"github.com/die-net/realm/internal/relay"
	"github.com/die-net/realm/internal/resolve"
	"github.com/die-net/realm/internal/testutil"
)

// startPongServer accepts one connection, expects "PING" followed by EOF,
// and answers "PONG".
func startPongServer(t *testing.T, ctx context.Context) (net.Listener, func()) {
	return testutil.StartSingleAcceptServer(t, ctx, func(c *net.TCPConn) {
		got, err := io.ReadAll(c)
		if err != nil || string(got) != "PING" {
			return
		}
		_, _ = c.Write([]byte("PONG"))
		_ = c.CloseWrite()
	})
}

func mustRemote(t *testing.T, addr string) resolve.RemoteAddr {
	t.Helper()
	r, err := resolve.ParseRemoteAddr(addr, nil)
	require.NoError(t, err)
	return r
}

func TestProxyPingPong(t *testing.T) {
	tests := []struct {
		name string
		opts ConnectOpts
	}{
		{name: "buffered"},
		{name: "buffered through", opts: ConnectOpts{SendThrough: netip.MustParseAddrPort("127.0.0.1:0")}},
		{name: "zero copy", opts: ConnectOpts{ZeroCopy: true}},
		{name: "zero copy through", opts: ConnectOpts{ZeroCopy: true, SendThrough: netip.MustParseAddrPort("127.0.0.1:0")}},
		{name: "fast open", opts: ConnectOpts{FastOpen: true, TCPTimeout: 5 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			remoteLn, waitRemote := startPongServer(t, ctx)
			h := NewHandler(mustRemote(t, remoteLn.Addr().String()), tt.opts, zaptest.NewLogger(t))

			peer, inbound := testutil.TCPPair(t)
			go func() {
				_, _ = peer.Write([]byte("PING"))
				_ = peer.CloseWrite()
			}()

			res, err := h.Proxy(ctx, inbound)
			require.NoError(t, err)
			assert.Equal(t, relay.Result{InToOut: 4, OutToIn: 4}, res)

			got, err := io.ReadAll(peer)
			require.NoError(t, err)
			assert.Equal(t, "PONG", string(got))

			waitRemote()
		})
	}
}

func TestProxyConnectRefusedThenRecovers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log := zaptest.NewLogger(t)

	refused := NewHandler(mustRemote(t, testutil.ClosedTCPAddr(t)), ConnectOpts{}, log)
	peer, inbound := testutil.TCPPair(t)

	_, err := refused.Proxy(ctx, inbound)
	var ce *dialer.ConnectError
	require.ErrorAs(t, err, &ce)

	// The inbound connection was released: the peer sees EOF.
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = peer.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	remoteLn, waitRemote := startPongServer(t, ctx)
	ok := NewHandler(mustRemote(t, remoteLn.Addr().String()), ConnectOpts{}, log)
	peer, inbound = testutil.TCPPair(t)
	go func() {
		_, _ = peer.Write([]byte("PING"))
		_ = peer.CloseWrite()
	}()

	res, err := ok.Proxy(ctx, inbound)
	require.NoError(t, err)
	assert.Equal(t, relay.Result{InToOut: 4, OutToIn: 4}, res)
	waitRemote()
}

func TestProxyResolutionError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h := NewHandler(mustRemote(t, "relay-test.invalid:80"), ConnectOpts{TCPTimeout: time.Second}, zaptest.NewLogger(t))
	_, inbound := testutil.TCPPair(t)

	_, err := h.Proxy(ctx, inbound)
	var re *resolve.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "relay-test.invalid", re.Host)
}

func TestProxyBindError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := ConnectOpts{SendThrough: netip.MustParseAddrPort("[::1]:0")}
	h := NewHandler(mustRemote(t, "127.0.0.1:9"), opts, zaptest.NewLogger(t))
	_, inbound := testutil.TCPPair(t)

	_, err := h.Proxy(ctx, inbound)
	var be *dialer.BindError
	require.ErrorAs(t, err, &be)
	assert.ErrorIs(t, err, dialer.ErrFamilyMismatch)
}

func TestServerConcurrentConnections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	ln, err := conn.ListenTCP(ctx, "tcp", "127.0.0.1:0", net.KeepAliveConfig{Enable: true})
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	srv := NewServer(ctx, NewHandler(mustRemote(t, echoLn.Addr().String()), ConnectOpts{TCPTimeout: 2 * time.Second}, log), log)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Go(func() {
			c, err := net.DialTimeout("tcp", ln.Addr().String(), 2*time.Second)
			if !assert.NoError(t, err) {
				return
			}
			defer c.Close()
			_ = c.SetDeadline(time.Now().Add(5 * time.Second))

			msg := []byte("hello from client " + string(rune('a'+i)))
			_, err = c.Write(msg)
			if !assert.NoError(t, err) {
				return
			}
			got := make([]byte, len(msg))
			_, err = io.ReadFull(c, got)
			assert.NoError(t, err)
			assert.Equal(t, msg, got)
		})
	}
	wg.Wait()

	cancel()
	require.NoError(t, ln.Close())
	require.NoError(t, <-served)
	srv.Wait()
}
