// Package config loads, normalizes, and validates batchflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours BATCHFLOW_* environment overrides.
// The Config type centralizes every knob the daemon and CLI need: where the
// run store lives, how stage calls are retried, how wide a map stage may fan
// out, and where quarantine notices are published.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
