package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.Storage.Driver != "sqlite" || cfg.Blob.Driver != "fs" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
listen_addr: ":9090"
log_level: debug
storage:
  driver: memory
blob:
  driver: memory
summarizer:
  endpoint: http://summarizer:8000/v1/summarize
  queue_size: 64
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9090" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Storage.Driver != "memory" || cfg.Blob.Driver != "memory" {
		t.Fatalf("driver override lost: %+v", cfg)
	}
	if cfg.Summarizer.QueueSize != 64 || cfg.Summarizer.Endpoint == "" {
		t.Fatalf("summarizer settings lost: %+v", cfg.Summarizer)
	}
	if cfg.Summarizer.Concurrency != 4 {
		t.Fatalf("unset field should keep default, got %d", cfg.Summarizer.Concurrency)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: \":9090\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("NEUROLEARN_LISTEN_ADDR", ":7070")
	t.Setenv("NEUROLEARN_STORAGE_DRIVER", "memory")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Fatalf("env override lost: %q", cfg.ListenAddr)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("env override lost: %q", cfg.Storage.Driver)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"storage driver": func(c *Config) { c.Storage.Driver = "oracle" },
		"blob driver":    func(c *Config) { c.Blob.Driver = "tape" },
		"s3 sans bucket": func(c *Config) { c.Blob.Driver = "s3"; c.Blob.S3Bucket = "" },
		"log level":      func(c *Config) { c.LogLevel = "shout" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := cfg.validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBuildLogger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"
	logger, err := cfg.BuildLogger()
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info should be disabled at warn level")
	}
}
