package relay

import (
	"context"
	"io"
)

// BufferedRelay copies each direction through a pooled user-space buffer.
type BufferedRelay struct{}

func (BufferedRelay) Relay(ctx context.Context, inbound, outbound Stream) (Result, error) {
	return bidirectional(ctx, inbound, outbound, copyBuffer)
}

// copyBuffer is a plain read/write loop rather than io.Copy, which would hand
// *net.TCPConn pairs to the kernel's splice path on Linux.
func copyBuffer(dst, src Stream, written *uint64) error {
	bp := getBuffer()
	defer putBuffer(bp)
	buf := *bp

	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			*written += uint64(nw)
			if werr != nil {
				return werr
			}
			if nw != nr {
				return io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			_ = dst.CloseWrite()
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
