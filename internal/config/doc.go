// Package config loads relay endpoints and global options from a YAML (or
// JSON) file, merges command-line overrides, and derives the per-endpoint
// ConnectOpts, resolver configuration and logger.
package config
