// Package preflight checks that the host can run fileseer before any
// indexing starts: the data directory must be writable and unlocked,
// the disk and file descriptor budget must be sane, and the configured
// embedding provider must be reachable. The doctor command runs the
// whole suite; failures in required checks should stop the caller.
package preflight
