// Package config provides unified configuration loading for the assistant.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// GeneralCategory must always be configured; it is the last-resort search scope.
const GeneralCategory = "general"

// Config holds all configuration for the assistant.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Knowledge     KnowledgeConfig     `yaml:"knowledge"`
	Synonyms      SynonymsConfig      `yaml:"synonyms"`
	Linguistic    LinguisticConfig    `yaml:"linguistic"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Cache         CacheConfig         `yaml:"cache"`
	Database      DatabaseConfig      `yaml:"database"`
	Audit         AuditConfig         `yaml:"audit"`
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
	CORSOrigins      []string      `yaml:"cors_origins"`
}

// KnowledgeConfig locates the per-category rule files.
type KnowledgeConfig struct {
	Dir         string            `yaml:"dir"`
	Categories  []string          `yaml:"categories"`
	Files       map[string]string `yaml:"files"`
	ExampleData bool              `yaml:"example_data"`
}

// SynonymsConfig locates the synonym dictionary. An empty path disables expansion.
type SynonymsConfig struct {
	Path string `yaml:"path"`
}

// LinguisticConfig holds settings for the optional lemmatization service.
type LinguisticConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RetrievalConfig holds scoring knobs that operators may tune.
type RetrievalConfig struct {
	// MinConfidence is the retrieval threshold of the general category.
	MinConfidence      float64            `yaml:"min_confidence"`
	Thresholds         map[string]float64 `yaml:"thresholds"`
	FallbackConfidence float64            `yaml:"fallback_confidence"`
	GeneralMargin      float64            `yaml:"general_margin"`
	CategoryShare      float64            `yaml:"category_share"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Driver        string        `yaml:"driver"` // memory or redis
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"max_entries"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	KeyPrefix     string        `yaml:"key_prefix"`
	Redis         RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// DatabaseConfig holds audit database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// AuditConfig controls the query audit trail.
type AuditConfig struct {
	Enabled      bool          `yaml:"enabled"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		cfg.resolvePaths(path)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

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
			Port:             8001,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     15 * time.Second,
			IdleTimeout:      60 * time.Second,
			GracefulShutdown: 10 * time.Second,
			CORSOrigins:      []string{"http://localhost:8000"},
		},
		Knowledge: KnowledgeConfig{
			Dir:         "data/knowledge",
			Categories:  []string{"books", "computers", "cubicles", GeneralCategory},
			ExampleData: true,
		},
		Synonyms: SynonymsConfig{
			Path: "data/synonyms/synonyms.json",
		},
		Linguistic: LinguisticConfig{
			Enabled: false,
			Model:   "es_core_news_sm",
			Timeout: 2 * time.Second,
		},
		Retrieval: RetrievalConfig{
			MinConfidence: 0.3,
			Thresholds: map[string]float64{
				"books":     0.4,
				"computers": 0.4,
				"cubicles":  0.35,
			},
			FallbackConfidence: 0.25,
			GeneralMargin:      0.1,
			CategoryShare:      0.5,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Driver:        "memory",
			TTL:           10 * time.Minute,
			MaxEntries:    1000,
			SweepInterval: time.Minute,
			KeyPrefix:     "answer:",
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "biblio:",
			},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path: "data/biblio-audit.db",
			},
			Postgres: PostgresConfig{
				MaxOpenConns: 10,
				MaxIdleConns: 2,
			},
		},
		Audit: AuditConfig{
			Enabled:      false,
			WriteTimeout: 2 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "biblio-assistant",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}
	if c.Audit.Enabled && c.DatabaseDSN() == "" {
		return fmt.Errorf("audit enabled but no %s database configured", c.Database.Driver)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Observability.LogFormat != "json" && c.Observability.LogFormat != "console" {
		return fmt.Errorf("invalid log format: %s", c.Observability.LogFormat)
	}

	if c.Linguistic.Enabled {
		if c.Linguistic.Endpoint == "" {
			return fmt.Errorf("linguistic service enabled without endpoint")
		}
		if c.Linguistic.Timeout <= 0 {
			return fmt.Errorf("linguistic timeout must be positive")
		}
	}

	if len(c.Knowledge.Categories) == 0 {
		return fmt.Errorf("at least one knowledge category is required")
	}
	hasGeneral := false
	for _, name := range c.Knowledge.Categories {
		if name == GeneralCategory {
			hasGeneral = true
		}
	}
	if !hasGeneral {
		return fmt.Errorf("knowledge categories must include %q", GeneralCategory)
	}

	if err := unitInterval("min_confidence", c.Retrieval.MinConfidence); err != nil {
		return err
	}
	if err := unitInterval("fallback_confidence", c.Retrieval.FallbackConfidence); err != nil {
		return err
	}
	if err := unitInterval("general_margin", c.Retrieval.GeneralMargin); err != nil {
		return err
	}
	if err := unitInterval("category_share", c.Retrieval.CategoryShare); err != nil {
		return err
	}
	for name, v := range c.Retrieval.Thresholds {
		if err := unitInterval("threshold "+name, v); err != nil {
			return err
		}
	}

	return nil
}

func unitInterval(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be between 0 and 1: %v", name, v)
	}
	return nil
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// DatabaseDriverName maps the configured driver to its database/sql name.
func (c *Config) DatabaseDriverName() string {
	if c.Database.Driver == "sqlite" {
		return "sqlite3"
	}
	return c.Database.Driver
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) resolvePaths(configPath string) {
	if c.Knowledge.Dir != "" {
		c.Knowledge.Dir = ResolveRelativePath(configPath, c.Knowledge.Dir)
	}
	if c.Synonyms.Path != "" {
		c.Synonyms.Path = ResolveRelativePath(configPath, c.Synonyms.Path)
	}
	if c.Database.SQLite.Path != "" && c.Database.SQLite.Path != ":memory:" {
		c.Database.SQLite.Path = ResolveRelativePath(configPath, c.Database.SQLite.Path)
	}
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}

	if v := os.Getenv("KNOWLEDGE_DIR"); v != "" {
		cfg.Knowledge.Dir = v
	}

	if v, ok := os.LookupEnv("SYNONYMS_PATH"); ok {
		cfg.Synonyms.Path = v
	}

	if v := os.Getenv("LINGUISTIC_ENDPOINT"); v != "" {
		cfg.Linguistic.Endpoint = v
		cfg.Linguistic.Enabled = true
	}

	if v := os.Getenv("MIN_CONFIDENCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MIN_CONFIDENCE: %w", err)
		}
		cfg.Retrieval.MinConfidence = f
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
		cfg.Audit.Enabled = true
	}

	if v := os.Getenv("AUDIT_ENABLED"); v != "" {
		cfg.Audit.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.URL = v
	}

	if v := os.Getenv("CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
