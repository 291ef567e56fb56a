// Package config loads, normalizes, and validates clipmill configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CLIPMILL_TTS_ENDPOINT and CLIPMILL_NTFY_TOPIC. The Config type centralizes
// every knob the pipeline and CLI need, from the item store location to the
// worker pool width each stage runs with.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
