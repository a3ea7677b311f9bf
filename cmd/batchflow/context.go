package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"batchflow/internal/api"
	"batchflow/internal/config"
	"batchflow/internal/logging"
	"batchflow/internal/runaccess"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// cliLogger writes workflow logs to stderr when --verbose is set.
func (c *commandContext) cliLogger(cmd *cobra.Command) *slog.Logger {
	if c.verbose == nil || !*c.verbose {
		return logging.NewNop()
	}
	level := "info"
	if cfg := c.configValue(); cfg != nil && cfg.Logging.Level == "debug" {
		level = "debug"
	}
	logger, err := logging.NewWithWriter(cmd.ErrOrStderr(), logging.Options{Level: level, Format: "console"})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) withAccess(cmd *cobra.Command, fn func(runaccess.Access) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	session, err := runaccess.Open(cfg, c.cliLogger(cmd))
	if err != nil {
		return err
	}
	defer session.Close()
	return wrapAccessError(fn(session.Access), cfg)
}

func wrapAccessError(err error, cfg *config.Config) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, api.ErrDaemonUnavailable) {
		return fmt.Errorf("daemon holds the lock but its api at %s is unreachable: %w", cfg.Paths.APIBind, err)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
