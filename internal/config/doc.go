// Package config loads, normalizes, and validates the desktop supervisor's
// TOML configuration.
//
// Every field has a default matching the packaged application, so a missing
// config file is the common case. Paths under the home directory are kept in
// their "~" form until a caller actually needs them; this lets the supervisor
// skip work (and errors) for sidecars that are already running.
package config
