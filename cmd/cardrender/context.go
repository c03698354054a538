package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"cardrender/internal/catalog"
	"cardrender/internal/config"
	"cardrender/internal/logging"
	"cardrender/internal/notifications"
	"cardrender/internal/pipeline"
	"cardrender/internal/scene/softscene"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
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

// log returns the process logger, falling back to a no-op logger when the
// configured sinks cannot be opened.
func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue())
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

// newOrchestrator wires the catalog, scene host and notifier for cfg, with
// adjust applied to the render config before validation.
func (c *commandContext) newOrchestrator(ctx context.Context, adjust func(*pipeline.RenderConfig) error) (*pipeline.Orchestrator, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	renderCfg, err := pipeline.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	if adjust != nil {
		if err := adjust(&renderCfg); err != nil {
			return nil, err
		}
	}

	cat, err := catalog.Load(ctx, cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	layout, err := softscene.LoadLayout(cfg.Scene.Layout)
	if err != nil {
		return nil, err
	}
	logger := c.log()
	host, err := softscene.New(layout, softscene.Options{AssetDir: cfg.Scene.AssetDir, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("scene host: %w", err)
	}

	return pipeline.New(pipeline.Options{
		Host:     host,
		Catalog:  cat,
		Config:   renderCfg,
		Notifier: notifications.NewService(cfg, logger),
		Logger:   logger,
	})
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
