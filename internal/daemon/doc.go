// Package daemon coordinates the long-running fieldline process.
//
// It wires configuration, the pipeline store, and the workflow manager into
// a single lifecycle with flock-based locking to prevent multiple instances
// against one data directory. Individual workflow steps live in their
// respective packages; the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
