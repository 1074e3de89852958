package conn

import (
	"errors"
	"net"
)

var errNotTCP = errors.New("not a tcp connection")

// SetNoDelay disables Nagle's algorithm on c.
//
// The result is advisory: callers log a failure and keep relaying.
func SetNoDelay(c net.Conn) error {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return errNotTCP
	}
	return tc.SetNoDelay(true)
}

// ApplyKeepAlive applies ka to c if c is a TCP connection.
func ApplyKeepAlive(c net.Conn, ka net.KeepAliveConfig) error {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return errNotTCP
	}
	return tc.SetKeepAliveConfig(ka)
}
