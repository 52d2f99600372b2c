package testsupport

import (
	"path/filepath"
	"testing"

	"copydesk/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithRequiredState overrides the publish required state on the test config.
func WithRequiredState(state string) ConfigOption {
	return func(c *config.Config) {
		c.Workflow.RequiredState = state
	}
}

// WithPublishTrigger overrides the publish trigger on the test config.
func WithPublishTrigger(trigger string) ConfigOption {
	return func(c *config.Config) {
		c.Workflow.PublishTrigger = trigger
	}
}
