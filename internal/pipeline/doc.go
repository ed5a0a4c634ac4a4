// Package pipeline owns the property lifecycle: the status state machine,
// the SQLite-backed store, the atomic claim protocol that hands exclusive
// ownership of one property to one worker, and the extraction run records
// that batch portal lookups against a shared session.
package pipeline
