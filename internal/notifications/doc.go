// Package notifications delivers run events via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Only run-level outcomes are sent; per-item
// progress stays in the logs.
package notifications
