// Package config loads pagelift configuration from a TOML file with
// environment variable overrides for deployment settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Limits   LimitsConfig   `toml:"limits"`
	Storage  StorageConfig  `toml:"storage"`
	Engines  EnginesConfig  `toml:"engines"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr           string  `toml:"addr"`
	APIKey         string  `toml:"api_key"`
	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`
}

// PipelineConfig configures orchestration behaviour.
type PipelineConfig struct {
	DefaultEngine          string `toml:"default_engine"`
	Workers                int    `toml:"workers"`
	RetryAttempts          int    `toml:"retry_attempts"`
	RetryBackoffMS         int    `toml:"retry_backoff_ms"`
	DocumentTimeoutSeconds int    `toml:"document_timeout_seconds"`
}

// RetryBackoff returns the backoff as a duration.
func (c PipelineConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}

// DocumentTimeout returns the per-document deadline as a duration.
func (c PipelineConfig) DocumentTimeout() time.Duration {
	return time.Duration(c.DocumentTimeoutSeconds) * time.Second
}

// LimitsConfig bounds accepted input.
type LimitsConfig struct {
	MaxUploadBytes    int64 `toml:"max_upload_bytes"`
	MaxPDFPages       int   `toml:"max_pdf_pages"`
	MaxImageDimension int   `toml:"max_image_dimension"`
}

// StorageConfig configures artifact and journal persistence.
type StorageConfig struct {
	ArtifactDir          string `toml:"artifact_dir"`
	DataDir              string `toml:"data_dir"`
	RetentionHours       int    `toml:"retention_hours"`
	SweepIntervalMinutes int    `toml:"sweep_interval_minutes"`
}

// Retention returns the artifact retention window; zero disables sweeping.
func (c StorageConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// SweepInterval returns how often the retention sweeper runs.
func (c StorageConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// EnginesConfig configures the extraction engines.
type EnginesConfig struct {
	Lighton   LightonConfig   `toml:"lighton"`
	Tesseract TesseractConfig `toml:"tesseract"`
}

// LightonConfig configures the vLLM-backed engine.
type LightonConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the per-request inference timeout.
func (c LightonConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TesseractConfig configures the local CGO engine.
type TesseractConfig struct {
	Languages []string `toml:"languages"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			RateLimitRPS:   5,
			RateLimitBurst: 10,
		},
		Pipeline: PipelineConfig{
			DefaultEngine:          "lighton",
			Workers:                4,
			RetryAttempts:          3,
			RetryBackoffMS:         500,
			DocumentTimeoutSeconds: 300,
		},
		Limits: LimitsConfig{
			MaxUploadBytes:    20 << 20,
			MaxPDFPages:       50,
			MaxImageDimension: 10000,
		},
		Storage: StorageConfig{
			ArtifactDir:          "data/artifacts",
			DataDir:              "data",
			RetentionHours:       72,
			SweepIntervalMinutes: 60,
		},
		Engines: EnginesConfig{
			Lighton: LightonConfig{
				BaseURL:        "http://localhost:8000/v1",
				Model:          "lightonai/LightOnOCR-1B",
				TimeoutSeconds: 300,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, layered over the defaults, then
// applies environment overrides. An empty path uses defaults plus
// environment only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv lets deployment settings override the file without editing it.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("PAGELIFT_ADDR", &cfg.Server.Addr)
	setString("PAGELIFT_API_KEY", &cfg.Server.APIKey)
	setString("PAGELIFT_DEFAULT_ENGINE", &cfg.Pipeline.DefaultEngine)
	setInt("PAGELIFT_WORKERS", &cfg.Pipeline.Workers)
	setString("PAGELIFT_ARTIFACT_DIR", &cfg.Storage.ArtifactDir)
	setString("PAGELIFT_DATA_DIR", &cfg.Storage.DataDir)
	setString("PAGELIFT_LIGHTON_BASE_URL", &cfg.Engines.Lighton.BaseURL)
	setString("PAGELIFT_LIGHTON_API_KEY", &cfg.Engines.Lighton.APIKey)
	setString("PAGELIFT_LIGHTON_MODEL", &cfg.Engines.Lighton.Model)
	setString("PAGELIFT_LOG_LEVEL", &cfg.Logging.Level)
}
