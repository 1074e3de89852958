package relay

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Stream is one half of a relay: a full-duplex connection whose write side
// can be shut down on its own.
type Stream interface {
	net.Conn
	CloseWrite() error
}

// Result holds the bytes written downstream in each direction.
type Result struct {
	InToOut uint64
	OutToIn uint64
}

// Engine relays between an inbound and an outbound stream. Both streams are
// closed when Relay returns.
type Engine interface {
	Relay(ctx context.Context, inbound, outbound Stream) (Result, error)
}

// New returns the engine for a connection. zeroCopy selects SpliceRelay
// when SpliceSupported; otherwise BufferedRelay is used.
func New(zeroCopy bool, log *zap.Logger) Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if zeroCopy && SpliceSupported {
		return newSpliceRelay(log)
	}
	return &BufferedRelay{}
}

// copyFunc moves src to dst until EOF, half-closing dst at EOF and adding
// every byte written to dst to *written.
type copyFunc func(dst, src Stream, written *uint64) error

func bidirectional(ctx context.Context, inbound, outbound Stream, copyDir copyFunc) (Result, error) {
	g, gctx := errgroup.WithContext(ctx)

	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = inbound.Close()
			_ = outbound.Close()
		})
	}
	defer closeBoth()

	// Closing both streams unblocks the surviving direction when the other
	// fails or ctx is canceled.
	stop := context.AfterFunc(gctx, closeBoth)
	defer stop()

	wrap := func(dir Direction, err error) error {
		if err == nil {
			return nil
		}
		if cerr := ctx.Err(); cerr != nil && errors.Is(err, net.ErrClosed) {
			err = cerr
		}
		return &TransferError{Direction: dir, Err: err}
	}

	var res Result
	g.Go(func() error {
		return wrap(InboundToOutbound, copyDir(outbound, inbound, &res.InToOut))
	})
	g.Go(func() error {
		return wrap(OutboundToInbound, copyDir(inbound, outbound, &res.OutToIn))
	})

	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return res, nil
}
