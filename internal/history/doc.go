// Package history keeps a small SQLite journal of sidecar lifecycle
// transitions (checked, spawned, terminated, ...) grouped by supervisor run.
//
// The journal is diagnostic only. The supervisor never reads it to make
// decisions, and a journal that cannot be opened or written must not stop
// the application from starting.
package history
