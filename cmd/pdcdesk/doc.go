// Package main hosts the pdcdesk CLI, the process that stands in for the
// desktop shell around the local sidecar services.
//
// "pdcdesk run" performs the startup sequence (probe, seed, spawn, wait for
// the backend) and keeps the sidecars alive until interrupted. The remaining
// commands inspect or prepare that environment without spawning anything.
package main
