// Package config loads and validates copydesk configuration from TOML.
// Load applies defaults, expands paths, and validates; callers receive a
// ready-to-use Config or an error naming the offending key.
package config
