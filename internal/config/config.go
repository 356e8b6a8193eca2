package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Config is the full annotationd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Auth      AuthConfig      `koanf:"auth"`
	Convert   ConvertConfig   `koanf:"convert"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	ReadTimeout     Duration `koanf:"read_timeout"`
	WriteTimeout    Duration `koanf:"write_timeout"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`

	// MaxUploadBytes caps PDF upload size.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// UploadDir holds the original uploaded PDFs.
	UploadDir string `koanf:"upload_dir"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Provider is "file" (embedded, default) or "couchbase".
	Provider string `koanf:"provider"`

	File      FileStoreConfig `koanf:"file"`
	Couchbase CouchbaseConfig `koanf:"couchbase"`
}

// FileStoreConfig configures the embedded JSON file store.
type FileStoreConfig struct {
	Path string `koanf:"path"`
}

// CouchbaseConfig configures the Couchbase backend.
type CouchbaseConfig struct {
	ConnectionString string `koanf:"connection_string"`
	Username         string `koanf:"username"`
	Password         Secret `koanf:"password"`
	Bucket           string `koanf:"bucket"`
	Scope            string `koanf:"scope"`
	Collection       string `koanf:"collection"`
}

// AuthConfig configures accounts and sessions.
type AuthConfig struct {
	BcryptCost int      `koanf:"bcrypt_cost"`
	TokenTTL   Duration `koanf:"token_ttl"`
}

// ConvertConfig configures PDF page rendering.
type ConvertConfig struct {
	CacheDir       string  `koanf:"cache_dir"`
	DPI            float64 `koanf:"dpi"`
	MaxPages       int     `koanf:"max_pages"`
	ThumbnailWidth int     `koanf:"thumbnail_width"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// TelemetryConfig configures tracing and metrics.
type TelemetryConfig struct {
	ServiceName string `koanf:"service_name"`

	// MetricsEnabled exposes Prometheus metrics on /metrics.
	MetricsEnabled bool `koanf:"metrics_enabled"`
}

// DataDir is the default root for all locally stored data.
const DataDir = "data"

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = Duration(60 * time.Second)
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 100 << 20 // 100MB
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = filepath.Join(DataDir, "uploads")
	}

	if cfg.Store.Provider == "" {
		cfg.Store.Provider = "file"
	}
	if cfg.Store.File.Path == "" {
		cfg.Store.File.Path = filepath.Join(DataDir, "store")
	}
	if cfg.Store.Couchbase.Scope == "" {
		cfg.Store.Couchbase.Scope = "_default"
	}
	if cfg.Store.Couchbase.Collection == "" {
		cfg.Store.Couchbase.Collection = "_default"
	}

	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = 10
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = Duration(24 * time.Hour)
	}

	if cfg.Convert.CacheDir == "" {
		cfg.Convert.CacheDir = filepath.Join(DataDir, "pages")
	}
	if cfg.Convert.DPI == 0 {
		cfg.Convert.DPI = 150
	}
	if cfg.Convert.MaxPages == 0 {
		cfg.Convert.MaxPages = 200
	}
	if cfg.Convert.ThumbnailWidth == 0 {
		cfg.Convert.ThumbnailWidth = 320
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "annotationd"
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	switch c.Store.Provider {
	case "file":
		if c.Store.File.Path == "" {
			return fmt.Errorf("store.file.path is required")
		}
	case "couchbase":
		if c.Store.Couchbase.ConnectionString == "" {
			return fmt.Errorf("store.couchbase.connection_string is required")
		}
		if c.Store.Couchbase.Bucket == "" {
			return fmt.Errorf("store.couchbase.bucket is required")
		}
	default:
		return fmt.Errorf("unknown store.provider: %q", c.Store.Provider)
	}

	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost out of range: %d", c.Auth.BcryptCost)
	}

	if c.Convert.DPI < 36 || c.Convert.DPI > 600 {
		return fmt.Errorf("convert.dpi out of range: %g", c.Convert.DPI)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown logging.format: %q", c.Logging.Format)
	}

	return nil
}
