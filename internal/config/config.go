package config

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	// Database
	DatabaseDriver  string `yaml:"database_driver"` // "pgx" or "sqlite"
	DatabaseURL     string `yaml:"database_url"`
	DatabaseReadURL string `yaml:"database_read_url"` // Optional read replica
	MaxConns        int32  `yaml:"max_conns"`
	MinConns        int32  `yaml:"min_conns"`
	TablePrefix     string `yaml:"table_prefix"`
	// Folder tree
	Delimiter     string `yaml:"delimiter"` // Separates path segments in virtual folder ids
	DefaultLocale string `yaml:"default_locale"`
	// Logging
	LogLevel    string `yaml:"log_level"`
	LogDir      string `yaml:"log_dir"` // Empty = stdout only
	MaxLogFiles int    `yaml:"max_log_files"`
}

// Load reads the configuration from the environment. When FOLDERTREE_CONFIG
// names a YAML file, its values are applied first and environment variables
// override them.
func Load() (*Config, error) {
	cfg := defaults(getEnv("ENVIRONMENT", "dev"))

	if path := os.Getenv("FOLDERTREE_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.DatabaseDriver = getEnv("DATABASE_DRIVER", cfg.DatabaseDriver)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DatabaseReadURL = getEnv("DATABASE_READ_URL", cfg.DatabaseReadURL)
	cfg.MaxConns = int32(getEnvInt("DB_MAX_CONNS", int(cfg.MaxConns)))
	cfg.MinConns = int32(getEnvInt("DB_MIN_CONNS", int(cfg.MinConns)))
	cfg.TablePrefix = getTablePrefix(cfg.Environment, cfg.TablePrefix)
	cfg.Delimiter = getEnv("FOLDER_DELIMITER", cfg.Delimiter)
	cfg.DefaultLocale = getEnv("DEFAULT_LOCALE", cfg.DefaultLocale)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)
	cfg.MaxLogFiles = getEnvInt("MAX_LOG_FILES", cfg.MaxLogFiles)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults(env string) *Config {
	logLevel := "info"
	if env == "dev" {
		logLevel = "debug"
	}
	return &Config{
		Environment:    env,
		DatabaseDriver: "pgx",
		MaxConns:       25,
		MinConns:       5,
		Delimiter:      "/",
		DefaultLocale:  "en",
		LogLevel:       logLevel,
		MaxLogFiles:    10,
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Locale parses DefaultLocale, falling back to English
func (c *Config) Locale() language.Tag {
	tag, err := language.Parse(c.DefaultLocale)
	if err != nil {
		return language.English
	}
	return tag
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env, configured string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}
	if configured != "" {
		return configured
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
