// Package config loads strmatch settings from an optional YAML file overlaid
// by STRMATCH_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root settings document.
type Config struct {
	Release string  `yaml:"release"`
	Storage Storage `yaml:"storage"`
	Blob    Blob    `yaml:"blob"`
	HTTP    HTTP    `yaml:"http"`
	Search  Search  `yaml:"search"`
	Log     Log     `yaml:"log"`
}

// Storage selects the reference catalog backend.
type Storage struct {
	Driver            string `yaml:"driver"`
	SQLitePath        string `yaml:"sqlite_path"`
	PostgresDSN       string `yaml:"postgres_dsn"`
	ResolverCacheSize int    `yaml:"resolver_cache_size"`
}

// Blob selects where export artifacts are written.
type Blob struct {
	Driver string `yaml:"driver"`
	FSRoot string `yaml:"fs_root"`
	S3     S3     `yaml:"s3"`
}

// S3 holds S3 / MinIO settings. Credentials come from the default AWS chain.
type S3 struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// HTTP configures the API server.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Search tunes the search service.
type Search struct {
	Parallelism int `yaml:"parallelism"`
	ExportQueue int `yaml:"export_queue"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Blob drivers.
const (
	BlobFilesystem = "fs"
	BlobS3         = "s3"
	BlobMemory     = "memory"
)

// Default returns the settings used when neither file nor environment override them.
func Default() Config {
	return Config{
		Storage: Storage{Driver: StorageSQLite, SQLitePath: "strmatch.db"},
		Blob:    Blob{Driver: BlobFilesystem, FSRoot: "./blobdata", S3: S3{Region: "us-east-1"}},
		HTTP:    HTTP{Addr: ":8080"},
		Search:  Search{ExportQueue: 32},
		Log:     Log{Level: "info", Format: "text"},
	}
}

// Load reads path (when non-empty) over the defaults, then applies the
// process environment and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(raw, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment variables:
//
//	STRMATCH_RELEASE: dataset release tag echoed in search metadata
//	STRMATCH_STORAGE_DRIVER: memory|sqlite|postgres
//	STRMATCH_SQLITE_PATH, STRMATCH_POSTGRES_DSN, STRMATCH_RESOLVER_CACHE
//	STRMATCH_BLOB_DRIVER: fs|s3|memory
//	STRMATCH_BLOB_FS_ROOT
//	STRMATCH_BLOB_S3_BUCKET, STRMATCH_BLOB_S3_REGION, STRMATCH_BLOB_S3_ENDPOINT, STRMATCH_BLOB_S3_PATH_STYLE
//	STRMATCH_HTTP_ADDR, STRMATCH_SEARCH_PARALLELISM
//	STRMATCH_LOG_LEVEL, STRMATCH_LOG_FORMAT
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	str("STRMATCH_RELEASE", &c.Release)
	str("STRMATCH_STORAGE_DRIVER", &c.Storage.Driver)
	str("STRMATCH_SQLITE_PATH", &c.Storage.SQLitePath)
	str("STRMATCH_POSTGRES_DSN", &c.Storage.PostgresDSN)
	num("STRMATCH_RESOLVER_CACHE", &c.Storage.ResolverCacheSize)
	str("STRMATCH_BLOB_DRIVER", &c.Blob.Driver)
	str("STRMATCH_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("STRMATCH_BLOB_S3_BUCKET", &c.Blob.S3.Bucket)
	str("STRMATCH_BLOB_S3_REGION", &c.Blob.S3.Region)
	str("STRMATCH_BLOB_S3_ENDPOINT", &c.Blob.S3.Endpoint)
	if v, ok := lookup("STRMATCH_BLOB_S3_PATH_STYLE"); ok {
		c.Blob.S3.PathStyle = strings.EqualFold(v, "true")
	}
	str("STRMATCH_HTTP_ADDR", &c.HTTP.Addr)
	num("STRMATCH_SEARCH_PARALLELISM", &c.Search.Parallelism)
	str("STRMATCH_LOG_LEVEL", &c.Log.Level)
	str("STRMATCH_LOG_FORMAT", &c.Log.Format)
}

// Validate rejects unknown drivers and incomplete backend settings.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage: postgres driver requires postgres_dsn")
		}
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob: s3 driver requires bucket")
		}
	default:
		return fmt.Errorf("blob: unknown driver %q", c.Blob.Driver)
	}
	if c.Search.Parallelism < 0 {
		return fmt.Errorf("search: parallelism must not be negative")
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	return nil
}

func (l Log) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log: %w", err)
	}
	return lvl, nil
}

// Logger builds a structured logger writing to w.
func (l Log) Logger(w io.Writer) (*slog.Logger, error) {
	lvl, err := l.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(l.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log: unknown format %q", l.Format)
	}
}
