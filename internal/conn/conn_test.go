package conn

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenTCPAcceptTCP(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ln, err := ListenTCP(ctx, "tcp", "127.0.0.1:0", net.KeepAliveConfig{Enable: true, Idle: 30 * time.Second})
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	d := net.Dialer{}
	c, err := d.DialContext(ctx, "tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	sc, ok := <-accepted
	require.True(t, ok, "accept failed")
	defer sc.Close()

	_, isTCP := sc.(*net.TCPConn)
	assert.True(t, isTCP)
}

func TestListenTCPBadAddress(t *testing.T) {
	_, err := ListenTCP(context.Background(), "tcp", "127.0.0.1:notaport", net.KeepAliveConfig{})
	require.Error(t, err)
}

func TestSetNoDelay(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err == nil {
			_ = c.Close()
		}
	}()

	c, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	assert.NoError(t, SetNoDelay(c))
	assert.NoError(t, ApplyKeepAlive(c, net.KeepAliveConfig{Enable: false}))
}

func TestTuningNonTCP(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	assert.ErrorIs(t, SetNoDelay(a), errNotTCP)
	assert.ErrorIs(t, ApplyKeepAlive(a, net.KeepAliveConfig{}), errNotTCP)
}
