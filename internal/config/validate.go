package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRender() error {
	r := c.Render
	if err := ensurePositiveMap(map[string]int{
		"render.capture_width":  r.CaptureWidth,
		"render.capture_height": r.CaptureHeight,
		"render.export_width":   r.ExportWidth,
		"render.export_height":  r.ExportHeight,
		"render.src_width":      r.SourceWidth,
		"render.src_height":     r.SourceHeight,
		"render.drain_timeout":  r.DrainTimeout,
	}); err != nil {
		return err
	}
	if r.SourceX < 0 || r.SourceY < 0 ||
		r.SourceX+r.SourceWidth > r.CaptureWidth || r.SourceY+r.SourceHeight > r.CaptureHeight {
		return fmt.Errorf("render.src_x/src_y/src_width/src_height: rectangle must fit inside the %dx%d capture", r.CaptureWidth, r.CaptureHeight)
	}
	if r.DestX < 0 || r.DestY < 0 || r.DestX >= r.ExportWidth || r.DestY >= r.ExportHeight {
		return fmt.Errorf("render.dst_x/dst_y: point must lie inside the %dx%d export image", r.ExportWidth, r.ExportHeight)
	}
	if r.Workers < 0 {
		return errors.New("render.workers must be >= 0 (0 means unbounded)")
	}
	if r.CropTolerance < 0 || r.CropTolerance > 1 {
		return errors.New("render.crop_tolerance must be between 0 and 1")
	}
	switch r.ImageFormat {
	case "png", "jpeg", "bmp", "tiff":
	default:
		return fmt.Errorf("render.image_format: unsupported value %q (want png, jpeg, bmp or tiff)", r.ImageFormat)
	}
	return nil
}

func (c *Config) validateCatalog() error {
	switch c.Catalog.Source {
	case SourceFile:
		if strings.TrimSpace(c.Catalog.Path) == "" {
			return errors.New("catalog.path must be set when catalog.source is \"file\"")
		}
	case SourceSQLite, SourcePostgres:
		if strings.TrimSpace(c.Catalog.DSN) == "" {
			return fmt.Errorf("catalog.dsn must be set when catalog.source is %q", c.Catalog.Source)
		}
	default:
		return fmt.Errorf("catalog.source: unsupported value %q (want file, sqlite or postgres)", c.Catalog.Source)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be >= 0")
	}
	if c.Notifications.MQTTBroker != "" && c.Notifications.MQTTTopic == "" {
		return errors.New("notifications.mqtt_topic must be set when notifications.mqtt_broker is configured")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
