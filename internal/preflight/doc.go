// Package preflight provides readiness checks for the sidecar endpoints,
// executables, and directories the desktop supervisor depends on.
//
// The CLI "pdcdesk status" command renders these results. Each service
// check is gated by its config toggle; disabled services report as such
// instead of failing.
package preflight
