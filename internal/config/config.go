package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains output and log locations.
type Paths struct {
	RenderDir    string `toml:"render_dir"`
	ManifestPath string `toml:"manifest_path"`
	LogDir       string `toml:"log_dir"`
}

// Render contains the capture geometry and batch toggles consumed by the
// export pipeline.
type Render struct {
	CaptureWidth  int `toml:"capture_width"`
	CaptureHeight int `toml:"capture_height"`
	ExportWidth   int `toml:"export_width"`
	ExportHeight  int `toml:"export_height"`

	SourceX      int `toml:"src_x"`
	SourceY      int `toml:"src_y"`
	SourceWidth  int `toml:"src_width"`
	SourceHeight int `toml:"src_height"`

	DestX int `toml:"dst_x"`
	DestY int `toml:"dst_y"`

	RangeStart    int  `toml:"range_start"`
	RangeEnd      int  `toml:"range_end"`
	Crop          bool `toml:"crop"`
	OnlyFullCards bool `toml:"only_full_cards"`

	ImageFormat   string  `toml:"image_format"`
	Workers       int     `toml:"workers"`
	DrainTimeout  int     `toml:"drain_timeout"`
	CropTolerance float64 `toml:"crop_tolerance"`
}

// Catalog describes where card metadata is loaded from.
type Catalog struct {
	Source  string   `toml:"source"`
	Path    string   `toml:"path"`
	DSN     string   `toml:"dsn"`
	Query   string   `toml:"query"`
	IDField string   `toml:"id_field"`
	Fields  []string `toml:"fields"`
}

// Scene contains settings for the software scene host.
type Scene struct {
	Layout   string `toml:"layout"`
	AssetDir string `toml:"asset_dir"`
}

// Notifications contains configuration for batch completion notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	MQTTBroker     string `toml:"mqtt_broker"`
	MQTTTopic      string `toml:"mqtt_topic"`
	MQTTClientID   string `toml:"mqtt_client_id"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for cardrender.
//
// Configuration sections by subsystem:
//   - Paths: render output directory, manifest file, log directory
//   - Render: capture/export geometry, card range, crop and format options
//   - Catalog: card metadata source (file, sqlite, postgres)
//   - Scene: layout and assets for the software scene host
//   - Notifications: ntfy and MQTT completion notifications
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Render        Render        `toml:"render"`
	Catalog       Catalog       `toml:"catalog"`
	Scene         Scene         `toml:"scene"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cardrender.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the render output, manifest and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.RenderDir, c.Paths.LogDir}
	if dir := filepath.Dir(c.Paths.ManifestPath); dir != "" && dir != "." {
		dirs = append(dirs, dir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DrainTimeout returns the bounded wait for outstanding image workers.
func (c *Config) DrainTimeout() time.Duration {
	return time.Duration(c.Render.DrainTimeout) * time.Second
}

// NotificationTimeout returns the HTTP/MQTT request timeout for notifications.
func (c *Config) NotificationTimeout() time.Duration {
	timeout := time.Duration(c.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		return time.Duration(defaultRequestTimeout) * time.Second
	}
	return timeout
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the config as TOML, used by `config show`.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
