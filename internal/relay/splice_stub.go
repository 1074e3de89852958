//go:build !linux

package relay

import "go.uber.org/zap"

// SpliceSupported is true where SpliceRelay can move bytes in the kernel.
const SpliceSupported = false

func newSpliceRelay(_ *zap.Logger) Engine {
	return &BufferedRelay{}
}
