// Package dialer builds outbound relay connections.
//
// A Connector turns a resolved remote address into a connected TCP stream.
// Two variants exist: StandardConnect and, where the platform supports it,
// FastOpenConnect. New picks one once from the configuration and the
// FastOpenSupported capability.
package dialer
