package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	if err := c.normalizeScene(); err != nil {
		return err
	}
	c.normalizeRender()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RenderDir) == "" {
		c.Paths.RenderDir = defaultRenderDir
	}
	if c.Paths.RenderDir, err = expandPath(c.Paths.RenderDir); err != nil {
		return fmt.Errorf("paths.render_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ManifestPath) == "" {
		c.Paths.ManifestPath = defaultManifestPath
	}
	if c.Paths.ManifestPath, err = expandPath(c.Paths.ManifestPath); err != nil {
		return fmt.Errorf("paths.manifest_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCatalog() error {
	c.Catalog.Source = strings.ToLower(strings.TrimSpace(c.Catalog.Source))
	if c.Catalog.Source == "" {
		c.Catalog.Source = defaultCatalogSource
	}
	if c.Catalog.DSN == "" {
		if value, ok := os.LookupEnv("CARDRENDER_CATALOG_DSN"); ok {
			c.Catalog.DSN = strings.TrimSpace(value)
		}
	}
	c.Catalog.Query = strings.TrimSpace(c.Catalog.Query)
	if c.Catalog.Query == "" {
		c.Catalog.Query = defaultCatalogQuery
	}
	c.Catalog.IDField = strings.TrimSpace(c.Catalog.IDField)
	if c.Catalog.IDField == "" {
		c.Catalog.IDField = defaultCatalogIDField
	}
	fields := c.Catalog.Fields[:0]
	for _, field := range c.Catalog.Fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			fields = append(fields, trimmed)
		}
	}
	c.Catalog.Fields = fields

	// A sqlite DSN is a file path and follows the same expansion rules.
	var err error
	switch c.Catalog.Source {
	case SourceFile:
		if c.Catalog.Path, err = expandPath(strings.TrimSpace(c.Catalog.Path)); err != nil {
			return fmt.Errorf("catalog.path: %w", err)
		}
	case SourceSQLite:
		if c.Catalog.DSN == "" {
			c.Catalog.DSN = strings.TrimSpace(c.Catalog.Path)
		}
		if c.Catalog.DSN, err = expandPath(c.Catalog.DSN); err != nil {
			return fmt.Errorf("catalog.dsn: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeScene() error {
	var err error
	if c.Scene.Layout, err = expandPath(strings.TrimSpace(c.Scene.Layout)); err != nil {
		return fmt.Errorf("scene.layout: %w", err)
	}
	if c.Scene.AssetDir, err = expandPath(strings.TrimSpace(c.Scene.AssetDir)); err != nil {
		return fmt.Errorf("scene.asset_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRender() {
	format := strings.ToLower(strings.TrimSpace(c.Render.ImageFormat))
	switch format {
	case "":
		format = defaultImageFormat
	case "jpg":
		format = "jpeg"
	case "tif":
		format = "tiff"
	}
	c.Render.ImageFormat = format
	if c.Render.DrainTimeout == 0 {
		c.Render.DrainTimeout = defaultDrainTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.MQTTBroker = strings.TrimSpace(c.Notifications.MQTTBroker)
	if c.Notifications.MQTTBroker == "" {
		if value, ok := os.LookupEnv("MQTT_URL"); ok {
			c.Notifications.MQTTBroker = strings.TrimSpace(value)
		}
	}
	c.Notifications.MQTTTopic = strings.TrimSpace(c.Notifications.MQTTTopic)
	if c.Notifications.MQTTTopic == "" {
		c.Notifications.MQTTTopic = defaultMQTTTopic
	}
	c.Notifications.MQTTClientID = strings.TrimSpace(c.Notifications.MQTTClientID)
	if c.Notifications.MQTTClientID == "" {
		c.Notifications.MQTTClientID = defaultMQTTClientID
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
