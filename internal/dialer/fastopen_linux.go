//go:build linux

package dialer

import "golang.org/x/sys/unix"

// FastOpenSupported is true on platforms with client-side TCP Fast Open.
const FastOpenSupported = true

func setFastOpenConnect(fd uintptr) error {
	return unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_FASTOPEN_CONNECT, 1)
}
