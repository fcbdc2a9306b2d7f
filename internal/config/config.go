// Package config loads server configuration from an optional YAML file with
// environment variable overrides. Environment always wins so containerized
// deployments can run without a config file at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	ListenAddr string           `yaml:"listen_addr"`
	LogLevel   string           `yaml:"log_level"`
	Storage    StorageConfig    `yaml:"storage"`
	Blob       BlobConfig       `yaml:"blob"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // memory|sqlite|postgres
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig selects and configures the blob backend.
type BlobConfig struct {
	Driver      string `yaml:"driver"` // fs|s3|memory
	FSRoot      string `yaml:"fs_root"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// SummarizerConfig configures the summarization pipeline.
type SummarizerConfig struct {
	Endpoint    string `yaml:"endpoint"` // empty selects the local extractive fallback
	QueueSize   int    `yaml:"queue_size"`
	Concurrency int    `yaml:"concurrency"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: "neurolearn.db",
		},
		Blob: BlobConfig{
			Driver: "fs",
			FSRoot: "./blobdata",
		},
		Summarizer: SummarizerConfig{
			QueueSize:   32,
			Concurrency: 4,
		},
	}
}

// Load reads the YAML file at path (when non-empty) over the defaults, then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.ListenAddr, "NEUROLEARN_LISTEN_ADDR")
	setString(&c.LogLevel, "NEUROLEARN_LOG_LEVEL")
	setString(&c.Storage.Driver, "NEUROLEARN_STORAGE_DRIVER")
	setString(&c.Storage.SQLitePath, "NEUROLEARN_SQLITE_PATH")
	setString(&c.Storage.PostgresDSN, "NEUROLEARN_POSTGRES_DSN")
	setString(&c.Blob.Driver, "NEUROLEARN_BLOB_DRIVER")
	setString(&c.Blob.FSRoot, "NEUROLEARN_BLOB_FS_ROOT")
	setString(&c.Blob.S3Bucket, "NEUROLEARN_BLOB_S3_BUCKET")
	setString(&c.Blob.S3Region, "NEUROLEARN_BLOB_S3_REGION")
	setString(&c.Blob.S3Endpoint, "NEUROLEARN_BLOB_S3_ENDPOINT")
	setBool(&c.Blob.S3PathStyle, "NEUROLEARN_BLOB_S3_PATH_STYLE")
	setString(&c.Summarizer.Endpoint, "NEUROLEARN_SUMMARIZER_ENDPOINT")
	setInt(&c.Summarizer.QueueSize, "NEUROLEARN_SUMMARIZER_QUEUE_SIZE")
	setInt(&c.Summarizer.Concurrency, "NEUROLEARN_SUMMARIZER_CONCURRENCY")
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "fs", "s3", "memory":
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.Blob.Driver == "s3" && c.Blob.S3Bucket == "" {
		return fmt.Errorf("blob driver s3 requires a bucket")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// BuildLogger constructs the process logger at the configured level.
func (c Config) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func setString(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, env string) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}

func setInt(dst *int, env string) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
