//go:build linux

package relay

import (
	"context"
	"errors"
	"io"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// SpliceSupported is true where SpliceRelay can move bytes in the kernel.
const SpliceSupported = true

// pipeSize matches the usual Linux default pipe capacity.
const pipeSize = 64 << 10

const spliceFlags = unix.SPLICE_F_MOVE | unix.SPLICE_F_NONBLOCK

// SpliceRelay moves each direction socket -> pipe -> socket with splice(2),
// without copying payload into user space. A direction whose streams cannot
// be spliced continues with the buffered loop.
type SpliceRelay struct {
	log *zap.Logger
}

func newSpliceRelay(log *zap.Logger) Engine {
	return &SpliceRelay{log: log}
}

func (s *SpliceRelay) Relay(ctx context.Context, inbound, outbound Stream) (Result, error) {
	return bidirectional(ctx, inbound, outbound, s.copyDir)
}

func (s *SpliceRelay) copyDir(dst, src Stream, written *uint64) error {
	srcRC, err := rawConn(src)
	if err != nil {
		s.log.Debug("splice unavailable, copying", zap.Error(err))
		return copyBuffer(dst, src, written)
	}
	dstRC, err := rawConn(dst)
	if err != nil {
		s.log.Debug("splice unavailable, copying", zap.Error(err))
		return copyBuffer(dst, src, written)
	}

	p, err := newPipe()
	if err != nil {
		s.log.Debug("splice pipe unavailable, copying", zap.Error(err))
		return copyBuffer(dst, src, written)
	}
	defer p.close()

	for {
		n, err := spliceIn(srcRC, p.w, p.size)
		if err != nil {
			if isSpliceUnsupported(err) {
				s.log.Debug("splice rejected, copying", zap.Error(err))
				return copyBuffer(dst, src, written)
			}
			return err
		}
		if n == 0 {
			_ = dst.CloseWrite()
			return nil
		}

		for n > 0 {
			m, err := spliceOut(p.r, dstRC, n)
			*written += uint64(m)
			n -= m
			if err != nil {
				if isSpliceUnsupported(err) {
					s.log.Debug("splice rejected, copying", zap.Error(err))
					if err := drainPipe(p.r, dst, n, written); err != nil {
						return err
					}
					return copyBuffer(dst, src, written)
				}
				return err
			}
		}
	}
}

func rawConn(s Stream) (syscall.RawConn, error) {
	sc, ok := s.(syscall.Conn)
	if !ok {
		return nil, errors.ErrUnsupported
	}
	return sc.SyscallConn()
}

func isSpliceUnsupported(err error) bool {
	return errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EOPNOTSUPP)
}

type pipe struct {
	r, w int
	size int
}

func newPipe() (*pipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return nil, err
	}
	p := &pipe{r: fds[0], w: fds[1], size: pipeSize}

	// Resizing is best-effort; use whatever capacity the kernel granted.
	_, _ = unix.FcntlInt(uintptr(p.w), unix.F_SETPIPE_SZ, pipeSize)
	if sz, err := unix.FcntlInt(uintptr(p.w), unix.F_GETPIPE_SZ, 0); err == nil && sz > 0 {
		p.size = min(sz, pipeSize)
	}
	return p, nil
}

func (p *pipe) close() {
	_ = unix.Close(p.r)
	_ = unix.Close(p.w)
}

// spliceIn moves up to limit bytes from the socket into the empty pipe. It
// waits for readability on EAGAIN and returns 0 at EOF.
func spliceIn(rc syscall.RawConn, pw, limit int) (int, error) {
	var (
		n    int64
		serr error
	)
	err := rc.Read(func(fd uintptr) bool {
		for {
			n, serr = unix.Splice(int(fd), nil, pw, nil, limit, spliceFlags)
			if serr != unix.EINTR {
				break
			}
		}
		return serr != unix.EAGAIN
	})
	if err != nil {
		return 0, err
	}
	if serr != nil {
		return 0, serr
	}
	return int(n), nil
}

// spliceOut moves up to limit bytes from the non-empty pipe to the socket,
// waiting for writability on EAGAIN.
func spliceOut(pr int, rc syscall.RawConn, limit int) (int, error) {
	var (
		n    int64
		serr error
	)
	err := rc.Write(func(fd uintptr) bool {
		for {
			n, serr = unix.Splice(pr, nil, int(fd), nil, limit, spliceFlags)
			if serr != unix.EINTR {
				break
			}
		}
		return serr != unix.EAGAIN
	})
	if err != nil {
		return 0, err
	}
	if serr != nil {
		return 0, serr
	}
	if n == 0 {
		return 0, io.ErrNoProgress
	}
	return int(n), nil
}

// drainPipe writes the n bytes still buffered in the pipe to dst.
func drainPipe(pr int, dst Stream, n int, written *uint64) error {
	bp := getBuffer()
	defer putBuffer(bp)
	buf := *bp

	for n > 0 {
		nr, err := unix.Read(pr, buf[:min(n, len(buf))])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if nr == 0 {
			return io.ErrUnexpectedEOF
		}
		nw, err := dst.Write(buf[:nr])
		*written += uint64(nw)
		if err != nil {
			return err
		}
		n -= nr
	}
	return nil
}
