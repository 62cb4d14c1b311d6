package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore, e.g. MODERATOR_ORACLE__API_KEY.
const EnvPrefix = "MODERATOR_"

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Oracle    OracleConfig    `koanf:"oracle"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Storage   StorageConfig   `koanf:"storage"`
	Auth      AuthConfig      `koanf:"auth"`
	Importer  ImporterConfig  `koanf:"importer"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RequestsPerSecond limits inbound API requests; 0 disables the limiter.
	RequestsPerSecond float64  `koanf:"requests_per_second"`
	Burst             int      `koanf:"burst"`
	AllowedOrigins    []string `koanf:"allowed_origins"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

// SlogLevel returns the configured level, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

type OracleConfig struct {
	Provider          string        `koanf:"provider"` // gemini, openai
	Model             string        `koanf:"model"`
	APIKey            string        `koanf:"api_key"`
	BaseURL           string        `koanf:"base_url"` // Custom API endpoint
	MaxAttempts       int           `koanf:"max_attempts"`
	AttemptTimeout    time.Duration `koanf:"attempt_timeout"`
	BackoffMin        time.Duration `koanf:"backoff_min"`
	BackoffMax        time.Duration `koanf:"backoff_max"`
	RequestsPerSecond float64       `koanf:"requests_per_second"` // 0 disables rate limiting
	Burst             int           `koanf:"burst"`
}

type PipelineConfig struct {
	MaxInputTokens int           `koanf:"max_input_tokens"` // 0 = unlimited
	Strategy       string        `koanf:"strategy"`         // prefer_severity, prefer_action, flag_only
	PersistTimeout time.Duration `koanf:"persist_timeout"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, postgres, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
	// Database is the generic database configuration for postgres
	Database DatabaseConfig `koanf:"database"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

type AuthConfig struct {
	APIKeys []APIKeyConfig `koanf:"api_keys"`
}

type APIKeyConfig struct {
	KeyHash     string `koanf:"key_hash"`
	Description string `koanf:"description"`
}

type ImporterConfig struct {
	BaseURL     string        `koanf:"base_url"` // Comments endpoint, {base_url}/{shortcode}/comments
	AccessToken string        `koanf:"access_token"`
	MaxItems    int           `koanf:"max_items"`
	Concurrency int           `koanf:"concurrency"`
	Timeout     time.Duration `koanf:"timeout"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var defaults = map[string]any{
	"server.port":              8080,
	"server.request_timeout":   "2m",
	"server.allowed_origins":   []string{"*"},
	"log.level":                "info",
	"oracle.provider":          "gemini",
	"oracle.model":             "gemini-2.5-flash-lite",
	"oracle.max_attempts":      5,
	"oracle.attempt_timeout":   "30s",
	"oracle.backoff_min":       "500ms",
	"oracle.backoff_max":       "8s",
	"pipeline.strategy":        "prefer_severity",
	"pipeline.persist_timeout": "5s",
	"storage.type":             "sqlite",
	"storage.sqlite.path":      "./data/moderator.db",
	"importer.max_items":       7,
	"importer.concurrency":     1,
	"importer.timeout":         "30s",
	"telemetry.service_name":   "harassment-moderator",
}

// Default returns the built-in defaults without reading a file or the
// environment.
func Default() *Config {
	k := koanf.New(".")
	for key, value := range defaults {
		k.Set(key, value)
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		panic(fmt.Sprintf("config: malformed defaults: %v", err))
	}
	return &cfg
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (if it exists), applies MODERATOR_ environment overrides
// and fills defaults. An empty path selects DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Oracle.APIKey = substituteEnvVars(cfg.Oracle.APIKey)
	cfg.Storage.Database.DSN = substituteEnvVars(cfg.Storage.Database.DSN)
	cfg.Importer.AccessToken = substituteEnvVars(cfg.Importer.AccessToken)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Oracle.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("oracle.provider: unsupported provider %q", c.Oracle.Provider)
	}
	if c.Oracle.MaxAttempts < 1 {
		return fmt.Errorf("oracle.max_attempts: must be at least 1, got %d", c.Oracle.MaxAttempts)
	}
	switch c.Storage.Type {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("storage.type: unsupported type %q", c.Storage.Type)
	}
	if c.Storage.Type == "postgres" && c.Storage.Database.DSN == "" {
		return fmt.Errorf("storage.database.dsn: required for postgres")
	}
	switch c.Pipeline.Strategy {
	case "", "prefer_severity", "prefer_action", "flag_only":
	default:
		return fmt.Errorf("pipeline.strategy: unsupported strategy %q", c.Pipeline.Strategy)
	}
	if c.Importer.MaxItems < 1 {
		return fmt.Errorf("importer.max_items: must be at least 1, got %d", c.Importer.MaxItems)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
