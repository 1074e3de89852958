package dialer

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
)

// ErrFamilyMismatch is returned when the bind-through address and the remote
// address belong to different address families.
var ErrFamilyMismatch = errors.New("address family mismatch")

// BindError reports that the outbound socket could not be bound to the
// configured local address.
type BindError struct {
	Addr netip.AddrPort
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// ConnectError reports that the outbound connect failed or timed out.
type ConnectError struct {
	Addr netip.AddrPort
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

func isBindFailure(err error) bool {
	var se *os.SyscallError
	return errors.As(err, &se) && se.Syscall == "bind"
}
