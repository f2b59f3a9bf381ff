package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/to-wer/media-renamer/internal/config"
	"github.com/to-wer/media-renamer/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
	logCloser  io.Closer

	appOnce sync.Once
	app     *app
	appErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads, validates and applies the configuration once.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("failed to load config: %w", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = fmt.Errorf("invalid config: %w", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = fmt.Errorf("failed to create directories: %w", err)
			return
		}

		closer, err := logging.Setup(logging.Options{
			Level:      cfg.Logging.Level,
			Format:     cfg.Logging.Format,
			File:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		})
		if err != nil {
			c.configErr = fmt.Errorf("failed to set up logging: %w", err)
			return
		}
		c.logCloser = closer
		c.config = cfg
		slog.Debug("Configuration loaded", "config", path)
	})
	return c.config, c.configErr
}

// withApp builds the application components on first use and hands them to fn.
func (c *commandContext) withApp(fn func(*app) error) error {
	c.appOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.appErr = err
			return
		}
		c.app, c.appErr = newApp(cfg)
	})
	if c.appErr != nil {
		return c.appErr
	}
	return fn(c.app)
}

func (c *commandContext) close() {
	if c.app != nil {
		if err := c.app.Close(); err != nil {
			slog.Warn("Failed to close application", "error", err)
		}
	}
	if c.logCloser != nil {
		_ = c.logCloser.Close()
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
