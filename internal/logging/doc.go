// Package logging builds slog loggers with console and JSON handlers and
// provides standardized attribute keys and context-derived fields shared
// across the daemon and CLI.
package logging
