// Package logging provides the module's log/slog construction and the
// shared attribute helpers and field names used across components.
package logging
