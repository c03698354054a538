package config

const (
	defaultConfigPath     = "~/.config/cardrender/config.toml"
	defaultRenderDir      = "RenderResults"
	defaultManifestPath   = "RenderSummary.csv"
	defaultLogDir         = "~/.local/share/cardrender/logs"
	defaultCaptureWidth   = 1920
	defaultCaptureHeight  = 1080
	defaultExportWidth    = 542
	defaultExportHeight   = 814
	defaultSourceX        = 690
	defaultSourceY        = 133
	defaultSourceWidth    = 542
	defaultSourceHeight   = 814
	defaultRangeStart     = 0
	defaultRangeEnd       = 4
	defaultImageFormat    = "png"
	defaultDrainTimeout   = 120
	defaultCropTolerance  = 0.05
	defaultCatalogSource  = SourceFile
	defaultCatalogPath    = "cards.yaml"
	defaultCatalogQuery   = "SELECT * FROM cards"
	defaultCatalogIDField = "id"
	defaultRequestTimeout = 10
	defaultMQTTTopic      = "cardrender/batches"
	defaultMQTTClientID   = "cardrender"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Catalog source kinds.
const (
	SourceFile     = "file"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RenderDir:    defaultRenderDir,
			ManifestPath: defaultManifestPath,
			LogDir:       defaultLogDir,
		},
		Render: Render{
			CaptureWidth:  defaultCaptureWidth,
			CaptureHeight: defaultCaptureHeight,
			ExportWidth:   defaultExportWidth,
			ExportHeight:  defaultExportHeight,
			SourceX:       defaultSourceX,
			SourceY:       defaultSourceY,
			SourceWidth:   defaultSourceWidth,
			SourceHeight:  defaultSourceHeight,
			RangeStart:    defaultRangeStart,
			RangeEnd:      defaultRangeEnd,
			ImageFormat:   defaultImageFormat,
			DrainTimeout:  defaultDrainTimeout,
			CropTolerance: defaultCropTolerance,
		},
		Catalog: Catalog{
			Source:  defaultCatalogSource,
			Path:    defaultCatalogPath,
			Query:   defaultCatalogQuery,
			IDField: defaultCatalogIDField,
		},
		Notifications: Notifications{
			RequestTimeout: defaultRequestTimeout,
			MQTTTopic:      defaultMQTTTopic,
			MQTTClientID:   defaultMQTTClientID,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
