// Package main hosts the fieldline CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into pipeline
// store operations, extraction run management, session handling, and
// configuration scaffolding, and carries the daemon entrypoint. It
// centralizes configuration resolution so subcommands can focus on user
// experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
