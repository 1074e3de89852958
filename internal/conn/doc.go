// Package conn holds the TCP socket plumbing shared by the relay: listeners
// that apply keepalive to accepted connections and the advisory per-socket
// tuning (NODELAY, keepalive) applied to both halves of a relay.
package conn
