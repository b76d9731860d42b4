// Package config provides configuration for the fieldtables engine and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// Archive storage types.
const (
	ArchiveLocal = "local"
	ArchiveS3    = "s3"
)

// Config holds the engine configuration.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Creator is recorded as savepoint_creator on rows inserted without one
	Creator string `json:"creator" yaml:"creator"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Archive storage configuration
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Color rule configuration
	Rules RulesConfig `json:"rules" yaml:"rules"`
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	// Path is the database file; defaults to <data_dir>/fieldtables.db
	Path string `json:"path" yaml:"path"`

	// BusyTimeoutMS is how long a connection waits on a locked database
	BusyTimeoutMS int `json:"busy_timeout_ms" yaml:"busy_timeout_ms"`

	// ReaderPoolSize is the number of concurrent read connections
	ReaderPoolSize int `json:"reader_pool_size" yaml:"reader_pool_size"`
}

// BusyTimeout returns BusyTimeoutMS as a duration.
func (d DatabaseConfig) BusyTimeout() time.Duration {
	return time.Duration(d.BusyTimeoutMS) * time.Millisecond
}

// ArchiveConfig holds archive storage configuration.
type ArchiveConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`

	// Prefix namespaces archive object keys within the bucket
	Prefix string `json:"prefix" yaml:"prefix"`
}

// RulesConfig holds color rule configuration.
type RulesConfig struct {
	// AdminColumns lists the metadata columns rules may reference
	AdminColumns []string `json:"admin_columns" yaml:"admin_columns"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/fieldtables",
		Creator: "fieldtables",
		Database: DatabaseConfig{
			BusyTimeoutMS:  5000,
			ReaderPoolSize: 4,
		},
		Archive: ArchiveConfig{
			Type: ArchiveLocal,
		},
		Rules: RulesConfig{
			AdminColumns: types.AdminColumnNames(),
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/fieldtables"
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.DataDir, "fieldtables.db")
	}
	if c.Archive.Path == "" {
		c.Archive.Path = filepath.Join(c.DataDir, "archive")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return ftErrors.NewConfigError("data_dir is required")
	}
	if c.Database.BusyTimeoutMS < 0 {
		return ftErrors.NewConfigError(fmt.Sprintf("database.busy_timeout_ms must not be negative, got %d", c.Database.BusyTimeoutMS))
	}
	if c.Database.ReaderPoolSize < 1 || c.Database.ReaderPoolSize > 64 {
		return ftErrors.NewConfigError(fmt.Sprintf("database.reader_pool_size must be between 1 and 64, got %d", c.Database.ReaderPoolSize))
	}

	switch c.Archive.Type {
	case ArchiveLocal:
	case ArchiveS3:
		if c.Archive.S3.Bucket == "" {
			return ftErrors.NewConfigError("archive.s3.bucket is required when archive type is s3")
		}
	default:
		return ftErrors.NewConfigError(fmt.Sprintf("invalid archive type: %s (must be local or s3)", c.Archive.Type))
	}

	for _, name := range c.Rules.AdminColumns {
		if !types.IsAdminColumn(name) {
			return ftErrors.NewConfigError(fmt.Sprintf("rules.admin_columns: %s is not a metadata column", name))
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the FIELDTABLES_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("FIELDTABLES_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FIELDTABLES_CREATOR"); v != "" {
		cfg.Creator = v
	}

	// Database configuration
	if v := os.Getenv("FIELDTABLES_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FIELDTABLES_DATABASE_BUSY_TIMEOUT_MS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Database.BusyTimeoutMS)
	}
	if v := os.Getenv("FIELDTABLES_DATABASE_READER_POOL_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Database.ReaderPoolSize)
	}

	// Archive configuration
	if v := os.Getenv("FIELDTABLES_ARCHIVE_TYPE"); v != "" {
		cfg.Archive.Type = v
	}
	if v := os.Getenv("FIELDTABLES_ARCHIVE_PATH"); v != "" {
		cfg.Archive.Path = v
	}
	if v := os.Getenv("FIELDTABLES_S3_BUCKET"); v != "" {
		cfg.Archive.S3.Bucket = v
	}
	if v := os.Getenv("FIELDTABLES_S3_REGION"); v != "" {
		cfg.Archive.S3.Region = v
	}
	if v := os.Getenv("FIELDTABLES_S3_ENDPOINT"); v != "" {
		cfg.Archive.S3.Endpoint = v
	}
	if v := os.Getenv("FIELDTABLES_S3_PREFIX"); v != "" {
		cfg.Archive.S3.Prefix = v
	}
	if v := os.Getenv("FIELDTABLES_S3_USE_PATH_STYLE"); v != "" {
		cfg.Archive.S3.UsePathStyle = v == "true" || v == "1"
	}

	// Rules configuration
	if v := os.Getenv("FIELDTABLES_RULES_ADMIN_COLUMNS"); v != "" {
		var cols []string
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cols = append(cols, c)
			}
		}
		cfg.Rules.AdminColumns = cols
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, filepath.Dir(c.Database.Path)}
	if c.Archive.Type == ArchiveLocal {
		dirs = append(dirs, c.Archive.Path)
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
