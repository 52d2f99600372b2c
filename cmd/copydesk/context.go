package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"copydesk/internal/cms"
	"copydesk/internal/config"
	"copydesk/internal/logging"
	"copydesk/internal/store"
	"copydesk/internal/workflow"
)

// commandContext carries lazily initialized shared state across commands.
type commandContext struct {
	configFlag *string
	userFlag   *string
	rolesFlag  *[]string

	cfg      *config.Config
	cfgPath  string
	logger   *slog.Logger
	store    *store.Store
	lock     *flock.Flock
	registry *workflow.Registry
}

func newCommandContext(configFlag, userFlag *string, rolesFlag *[]string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		userFlag:   userFlag,
		rolesFlag:  rolesFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, path, _, err := config.Load(*c.configFlag)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.cfgPath = path
	c.registry = workflow.DefaultRegistryFor(cfg.Workflow.LocalContentWorkflow)
	return cfg, nil
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	c.logger = logger
	return logger, nil
}

// openStore opens the content database under an exclusive file lock so two
// copydesk processes cannot mutate the same store concurrently.
func (c *commandContext) openStore() (*store.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "copydesk.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another copydesk process holds the store at %s", cfg.Paths.DataDir)
	}

	st, err := store.Open(cfg, c.registry)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	c.lock = lock
	c.store = st
	return st, nil
}

func (c *commandContext) close() {
	if c.store != nil {
		_ = c.store.Close()
		c.store = nil
	}
	if c.lock != nil {
		_ = c.lock.Unlock()
		c.lock = nil
	}
}

// identity builds the acting identity from the --user/--role flags, falling
// back to the invoking OS user.
func (c *commandContext) identity() cms.Identity {
	user := strings.TrimSpace(*c.userFlag)
	if user == "" {
		user = os.Getenv("USER")
	}
	if user == "" {
		user = "copydesk"
	}
	roles := make([]string, 0, len(*c.rolesFlag))
	for _, role := range *c.rolesFlag {
		if trimmed := strings.TrimSpace(role); trimmed != "" {
			roles = append(roles, trimmed)
		}
	}
	return cms.Identity{User: user, Roles: roles}
}
