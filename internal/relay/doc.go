// Package relay moves bytes between the two halves of a proxied TCP
// connection until both directions have finished.
//
// Two engines implement the same contract: BufferedRelay copies through a
// user-space buffer and works everywhere; SpliceRelay moves bytes through a
// kernel pipe with splice(2) on Linux. Both half-close the destination when a
// source reaches EOF, abort the whole relay on the first error, close both
// streams before returning, and report byte counts only on success.
package relay
