// Package logging assembles the structured slog loggers used by the desktop
// supervisor.
//
// It owns the console and JSON handlers, level and output plumbing, and a few
// attribute helpers so every component tags its lines the same way
// (component, service, run_id, event_type). Per-run log files are pruned with
// CleanupOldLogs.
package logging
