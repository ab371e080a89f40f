package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strmatch.yaml")
	doc := `
release: "48.0"
storage:
  driver: memory
  resolver_cache_size: 16
blob:
  driver: memory
search:
  parallelism: 4
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("STRMATCH_RELEASE", "49.0")
	t.Setenv("STRMATCH_HTTP_ADDR", "127.0.0.1:9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Release != "49.0" {
		t.Fatalf("env must override file release, got %q", cfg.Release)
	}
	if cfg.Storage.Driver != StorageMemory || cfg.Storage.ResolverCacheSize != 16 {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9999" || cfg.Search.Parallelism != 4 {
		t.Fatalf("unexpected http/search %+v %+v", cfg.HTTP, cfg.Search)
	}
	if cfg.Blob.FSRoot != "./blobdata" {
		t.Fatalf("defaults must survive partial files, got %q", cfg.Blob.FSRoot)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  drvier: memory\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown storage", func(c *Config) { c.Storage.Driver = "mysql" }, "unknown driver"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = StoragePostgres }, "postgres_dsn"},
		{"s3 without bucket", func(c *Config) { c.Blob.Driver = BlobS3 }, "bucket"},
		{"unknown blob", func(c *Config) { c.Blob.Driver = "gcs" }, "unknown driver"},
		{"negative parallelism", func(c *Config) { c.Search.Parallelism = -1 }, "parallelism"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestApplyEnvPathStyleAndNumbers(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"STRMATCH_BLOB_S3_PATH_STYLE": "TRUE",
		"STRMATCH_RESOLVER_CACHE":     "not-a-number",
		"STRMATCH_SEARCH_PARALLELISM": " 3 ",
	}
	cfg.ApplyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	if !cfg.Blob.S3.PathStyle {
		t.Fatalf("expected path style")
	}
	if cfg.Storage.ResolverCacheSize != 0 || cfg.Search.Parallelism != 3 {
		t.Fatalf("unexpected numbers %+v %+v", cfg.Storage, cfg.Search)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Log{Level: "warn", Format: "json"}.Logger(&buf)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"k":"v"`) {
		t.Fatalf("unexpected log output %q", buf.String())
	}
	if _, err := (Log{Level: "info", Format: "xml"}).Logger(&buf); err == nil {
		t.Fatalf("expected unknown format error")
	}
}
