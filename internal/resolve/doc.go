// Package resolve turns remote endpoint descriptors into socket addresses at
// connection time.
//
// A RemoteAddr is either an IP literal, which resolves without any query, or
// a host name that is looked up through a Resolver. The Resolver either
// queries a configured list of DNS servers over UDP and/or TCP, or falls
// back to the system resolver when no servers are configured. Answers are
// cached for their TTL and concurrent identical lookups share one query.
package resolve
