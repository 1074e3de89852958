// Package proxy relays accepted TCP connections to a remote endpoint.
//
// A Handler owns one endpoint's read-only configuration and, per inbound
// connection, resolves the remote, connects out, tunes both sockets and runs
// the relay engine chosen for the endpoint. Server runs a Handler for every
// connection accepted on a listener, each in its own goroutine.
package proxy
