// Package sidecar owns the child processes the desktop shell launches.
//
// A Process wraps one spawned executable with discarded standard streams and
// its own process group. A Registry holds at most one Process per service
// name and terminates every recorded Process exactly once when the
// application exits, whichever exit path gets there first.
package sidecar
