// Package config loads the server configuration. Values resolve in three
// layers: built-in defaults, then the YAML file, then LOTTRACE_* environment
// variables.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	blobcore "lottrace/internal/blob/core"
	"lottrace/internal/blob/fs"
	blobmemory "lottrace/internal/blob/memory"
	"lottrace/internal/blob/s3"
	"lottrace/internal/infra/persistence"
	memstore "lottrace/internal/infra/persistence/memory"
	"lottrace/internal/infra/persistence/mysql"
	"lottrace/internal/infra/persistence/postgres"
	"lottrace/internal/infra/persistence/sqlite"
	"lottrace/internal/lotseq"
	"lottrace/pkg/domain"
)

// Storage selects and parameterizes the persistent store backend.
type Storage struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	MySQLDSN    string `yaml:"mysql_dsn"`
}

// S3 parameterizes the S3 blob backend.
type S3 struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Blob selects and parameterizes the archive blob backend.
type Blob struct {
	Driver string `yaml:"driver"`
	FSRoot string `yaml:"fs_root"`
	S3     S3     `yaml:"s3"`
}

// Config is the full server configuration.
type Config struct {
	ListenAddr string        `yaml:"listen_addr"`
	Storage    Storage       `yaml:"storage"`
	Blob       Blob          `yaml:"blob"`
	Lot        lotseq.Config `yaml:"lot"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		Storage:    Storage{Driver: "sqlite"},
		Blob:       Blob{Driver: "fs"},
		Lot:        lotseq.DefaultConfig(),
	}
}

// Load reads path (optional) and applies environment overrides. An empty path
// falls back to LOTTRACE_CONFIG; a missing default file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if path == "" {
		path = os.Getenv("LOTTRACE_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = "lottrace.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No file is fine when nothing asked for one.
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	applyEnv(&cfg)
	if err := cfg.Lot.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&cfg.ListenAddr, "LOTTRACE_LISTEN_ADDR")
	setString(&cfg.Storage.Driver, "LOTTRACE_STORAGE_DRIVER")
	setString(&cfg.Storage.SQLitePath, "LOTTRACE_SQLITE_PATH")
	setString(&cfg.Storage.PostgresDSN, "LOTTRACE_POSTGRES_DSN")
	setString(&cfg.Storage.MySQLDSN, "LOTTRACE_MYSQL_DSN")
	setString(&cfg.Blob.Driver, "LOTTRACE_BLOB_DRIVER")
	setString(&cfg.Blob.FSRoot, "LOTTRACE_BLOB_FS_ROOT")
	setString(&cfg.Blob.S3.Bucket, "LOTTRACE_BLOB_S3_BUCKET")
	setString(&cfg.Blob.S3.Region, "LOTTRACE_BLOB_S3_REGION")
	setString(&cfg.Blob.S3.Endpoint, "LOTTRACE_BLOB_S3_ENDPOINT")
	if v := os.Getenv("LOTTRACE_BLOB_S3_PATH_STYLE"); v != "" {
		cfg.Blob.S3.PathStyle = strings.EqualFold(v, "true")
	}
}

// OpenStore constructs the persistent store the configuration selects.
func OpenStore(cfg Config) (domain.PersistentStore, error) {
	switch persistence.Driver(cfg.Storage.Driver) {
	case persistence.DriverMemory:
		return memstore.NewStore(), nil
	case persistence.DriverSQLite:
		return sqlite.NewStore(cfg.Storage.SQLitePath)
	case persistence.DriverPostgres:
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	case persistence.DriverMySQL:
		return mysql.NewStore(cfg.Storage.MySQLDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Storage.Driver)
	}
}

// OpenBlob constructs the archive blob store the configuration selects.
func OpenBlob(ctx context.Context, cfg Config) (blobcore.Store, error) {
	switch blobcore.Driver(cfg.Blob.Driver) {
	case blobcore.DriverFilesystem:
		return fs.New(cfg.Blob.FSRoot)
	case blobcore.DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.Blob.S3.Bucket,
			Region:    cfg.Blob.S3.Region,
			Endpoint:  cfg.Blob.S3.Endpoint,
			PathStyle: cfg.Blob.S3.PathStyle,
		})
	case blobcore.DriverMemory:
		return blobmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Blob.Driver)
	}
}
