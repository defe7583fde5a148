// Package config provides unified configuration loading for pdfdeck.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the pdfdeck API.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Render        RenderConfig        `yaml:"render"`
	AI            AIConfig            `yaml:"ai"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// StorageConfig holds upload storage settings. UploadDir is the durable
// home of raw PDFs; it is the only state that survives a restart.
type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"`
}

// RenderConfig holds page rasterization settings.
type RenderConfig struct {
	ThumbnailDPI     int `yaml:"thumbnail_dpi"`
	ThumbnailQuality int `yaml:"thumbnail_quality"`
	PageImageDPI     int `yaml:"page_image_dpi"`
	PageImageQuality int `yaml:"page_image_quality"`
	CropDPI          int `yaml:"crop_dpi"`
}

// AIConfig holds AI provider gateway settings.
type AIConfig struct {
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	BatchConcurrency int           `yaml:"batch_concurrency"`
	MaxTokens        int           `yaml:"max_tokens"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8000,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     5 * time.Minute,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Storage: StorageConfig{
			UploadDir: "./temp_pdfs",
		},
		Render: RenderConfig{
			ThumbnailDPI:     72,
			ThumbnailQuality: 80,
			PageImageDPI:     200,
			PageImageQuality: 95,
			CropDPI:          144,
		},
		AI: AIConfig{
			RequestTimeout:   120 * time.Second,
			BatchConcurrency: 5,
			MaxTokens:        4096,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "pdfdeck-api",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Storage.UploadDir == "" {
		return fmt.Errorf("upload_dir must not be empty")
	}

	if c.Render.ThumbnailQuality < 1 || c.Render.ThumbnailQuality > 100 {
		return fmt.Errorf("thumbnail_quality must be between 1 and 100")
	}

	if c.Render.PageImageQuality < 1 || c.Render.PageImageQuality > 100 {
		return fmt.Errorf("page_image_quality must be between 1 and 100")
	}

	if c.AI.BatchConcurrency < 1 {
		return fmt.Errorf("batch_concurrency must be at least 1")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.Storage.UploadDir = v
	}

	if v := os.Getenv("AI_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AI.RequestTimeout = d
		}
	}

	if v := os.Getenv("BATCH_CONCURRENCY"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			cfg.AI.BatchConcurrency = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
