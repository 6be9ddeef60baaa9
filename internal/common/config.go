package common

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `env:", prefix=DB_"`
	Extract  ExtractConfig
	Archive  ArchiveConfig `env:", prefix=ARCHIVE_"`
	Log      LogConfig     `env:", prefix=LOG_"`
	Runtime  RuntimeConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `env:"DRIVER, default=sqlite"`
	Path             string        `env:"PATH, default=submissions.db"`
	DSN              string        `env:"URL"`
	MaxConns         int32         `env:"MAX_CONNS, default=20"`
	MinConns         int32         `env:"MIN_CONNS, default=2"`
	MaxConnLifetime  time.Duration `env:"MAX_CONN_LIFETIME, default=30m"`
	MaxConnIdleTime  time.Duration `env:"MAX_CONN_IDLE_TIME, default=5m"`
	DialTimeout      time.Duration `env:"DIAL_TIMEOUT, default=3s"`
	StatementTimeout time.Duration `env:"STATEMENT_TIMEOUT, default=0s"`
	TxTimeout        time.Duration `env:"TX_TIMEOUT, default=10s"`
	MaxRetries       int           `env:"MAX_RETRIES, default=3"`
}

// ExtractConfig holds text extraction configuration
type ExtractConfig struct {
	PdfToTextBin string        `env:"PDFTOTEXT_BIN, default=pdftotext"`
	Timeout      time.Duration `env:"EXTRACT_TIMEOUT, default=30s"`
}

// ArchiveConfig selects where original documents are kept.
type ArchiveConfig struct {
	Driver     string `env:"DRIVER, default=none"`
	Dir        string `env:"DIR, default=./archive"`
	S3Bucket   string `env:"S3_BUCKET"`
	S3Region   string `env:"S3_REGION, default=us-east-1"`
	S3Endpoint string `env:"S3_ENDPOINT"`
	PathStyle  bool   `env:"S3_PATH_STYLE, default=false"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=text"`
	File   string `env:"FILE"`
}

// RuntimeConfig holds worker and metrics settings for long running commands.
type RuntimeConfig struct {
	Workers     int    `env:"WORKERS, default=4"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError(CodeConfig, "failed to read .env", err)
	}
	return LoadConfigFrom(ctx, envconfig.OsLookuper())
}

// LoadConfigFrom decodes configuration from the given lookuper.
func LoadConfigFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, NewAppError(CodeConfig, "failed to process environment", err)
	}
	// DATABASE_PATH is the historical name for the sqlite file location.
	if v, ok := l.Lookup("DATABASE_PATH"); ok && v != "" {
		cfg.Database.Path = v
	}
	return &cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite":
		if c.Database.Path == "" {
			return NewAppError(CodeConfig, "DATABASE_PATH is required for the sqlite driver", ErrInvalidInput)
		}
	case "postgres":
		if c.Database.DSN == "" {
			return NewAppError(CodeConfig, "DB_URL is required for the postgres driver", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, "DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.Database.MaxRetries < 1 {
		return NewAppError(CodeConfig, "DB_MAX_RETRIES must be at least 1", ErrInvalidInput)
	}
	switch strings.ToLower(c.Archive.Driver) {
	case "none", "":
	case "fs":
		if c.Archive.Dir == "" {
			return NewAppError(CodeConfig, "ARCHIVE_DIR is required for the fs archive", ErrInvalidInput)
		}
	case "s3":
		if c.Archive.S3Bucket == "" {
			return NewAppError(CodeConfig, "ARCHIVE_S3_BUCKET is required for the s3 archive", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, "ARCHIVE_DRIVER must be none, fs or s3", ErrInvalidInput)
	}
	if c.Runtime.Workers < 1 {
		return NewAppError(CodeConfig, "WORKERS must be at least 1", ErrInvalidInput)
	}
	return nil
}
