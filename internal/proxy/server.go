package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TCPListener is the subset of *net.TCPListener that Server needs.
type TCPListener interface {
	AcceptTCP() (*net.TCPConn, error)
	Addr() net.Addr
}

type Server struct {
	ctx     context.Context
	handler *Handler
	log     *zap.Logger
	wg      sync.WaitGroup
}

// NewServer returns a Server that proxies with h. Canceling ctx aborts
// in-flight relays.
func NewServer(ctx context.Context, h *Handler, log *zap.Logger) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{ctx: ctx, handler: h, log: log}
}

// Serve accepts connections on ln until it is closed. It returns nil if ln
// was closed after the server's context ended.
func (s *Server) Serve(ln TCPListener) error {
	log := s.log.With(zap.Stringer("listen", ln.Addr()))

	var backoff time.Duration
	for {
		c, err := ln.AcceptTCP()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				if s.ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}

			// Likely descriptor exhaustion; keep serving once it clears.
			backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
			log.Warn("accept failed", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-time.After(backoff):
				continue
			case <-s.ctx.Done():
				return nil
			}
		}
		backoff = 0

		s.wg.Go(func() {
			s.handle(log, c)
		})
	}
}

// Wait blocks until every accepted connection has been released.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) handle(log *zap.Logger, c *net.TCPConn) {
	peer := c.RemoteAddr().String()

	res, err := s.handler.Proxy(s.ctx, c)
	if err != nil {
		log.Warn("tcp relay failed", zap.String("peer", peer), zap.Error(err))
		return
	}
	log.Info("tcp relay finished",
		zap.String("peer", peer),
		zap.Uint64("sent", res.InToOut),
		zap.Uint64("received", res.OutToIn),
	)
}
