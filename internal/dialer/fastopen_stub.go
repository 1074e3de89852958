//go:build !linux

package dialer

import "errors"

// FastOpenSupported is true on platforms with client-side TCP Fast Open.
const FastOpenSupported = false

func setFastOpenConnect(_ uintptr) error {
	return errors.ErrUnsupported
}
