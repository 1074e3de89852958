//go:build linux

package relay

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"

	"github.com/die-net/realm/internal/testutil"
)

// opaqueStream hides SyscallConn so the splice engine cannot reach the
// descriptor.
type opaqueStream struct {
	net.Conn
	tc *net.TCPConn
}

func (o opaqueStream) CloseWrite() error {
	return o.tc.CloseWrite()
}

func TestSpliceDegradesWithoutDescriptor(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h := newHarness(t)
	peerGot := sendAndDrain(h.peer, []byte("through a wrapper"))
	remoteGot := sendAndDrain(h.remote, []byte("and back"))

	engine := New(true, zaptest.NewLogger(t))
	res, err := engine.Relay(ctx, opaqueStream{Conn: h.inbound, tc: h.inbound}, h.outbound)
	require.NoError(t, err)

	assert.Equal(t, "through a wrapper", string(<-remoteGot))
	assert.Equal(t, "and back", string(<-peerGot))
	assert.Equal(t, Result{InToOut: 17, OutToIn: 8}, res)
}

func TestIsSpliceUnsupported(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{err: unix.EINVAL, want: true},
		{err: unix.ENOSYS, want: true},
		{err: unix.EOPNOTSUPP, want: true},
		{err: fmt.Errorf("splice: %w", unix.EINVAL), want: true},
		{err: unix.ECONNRESET, want: false},
		{err: unix.EPIPE, want: false},
		{err: net.ErrClosed, want: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isSpliceUnsupported(tt.err), "%v", tt.err)
	}
}

func TestNewPipeCapacity(t *testing.T) {
	p, err := newPipe()
	require.NoError(t, err)
	defer p.close()

	assert.Positive(t, p.size)
	assert.LessOrEqual(t, p.size, pipeSize)
}

func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	require.NoError(t, err)
	return len(entries)
}

func TestRelayReleasesDescriptors(t *testing.T) {
	run := func(engine Engine, fail bool) {
		peer, inbound := testutil.TCPPair(t)
		outbound, remote := testutil.TCPPair(t)

		if fail {
			_ = remote.SetLinger(0)
			_ = remote.Close()
		} else {
			_ = sendAndDrain(remote, []byte("PONG"))
		}
		drained := sendAndDrain(peer, []byte("PING"))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = engine.Relay(ctx, inbound, outbound)
		<-drained

		_ = peer.Close()
		_ = remote.Close()
	}

	for _, ec := range engines(t) {
		t.Run(ec.name, func(t *testing.T) {
			// Warm up lazily created runtime descriptors such as the poller.
			run(ec.engine, false)
			baseline := openFDs(t)

			for i := range 6 {
				run(ec.engine, i%2 == 1)
				assert.Equal(t, baseline, openFDs(t), "iteration %d", i)
			}
		})
	}
}
