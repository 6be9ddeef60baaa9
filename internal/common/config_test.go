package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "submissions.db" {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Database.TxTimeout != 10*time.Second || cfg.Database.MaxRetries != 3 {
		t.Fatalf("unexpected tx defaults: %+v", cfg.Database)
	}
	if cfg.Extract.PdfToTextBin != "pdftotext" {
		t.Fatalf("PdfToTextBin = %q", cfg.Extract.PdfToTextBin)
	}
	if cfg.Runtime.Workers != 4 {
		t.Fatalf("Workers = %d", cfg.Runtime.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	env := map[string]string{
		"DATABASE_PATH":     "/data/lab.db",
		"DB_TX_TIMEOUT":     "2s",
		"ARCHIVE_DRIVER":    "s3",
		"ARCHIVE_S3_BUCKET": "forms",
		"LOG_FORMAT":        "json",
		"WORKERS":           "8",
	}
	cfg, err := LoadConfigFrom(context.Background(), envconfig.MapLookuper(env))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Path != "/data/lab.db" {
		t.Fatalf("DATABASE_PATH not applied: %q", cfg.Database.Path)
	}
	if cfg.Database.TxTimeout != 2*time.Second {
		t.Fatalf("TxTimeout = %v", cfg.Database.TxTimeout)
	}
	if cfg.Archive.S3Bucket != "forms" || cfg.Log.Format != "json" || cfg.Runtime.Workers != 8 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfigFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		return cfg
	}
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"s3 without bucket", func(c *Config) { c.Archive.Driver = "s3" }},
		{"zero retries", func(c *Config) { c.Database.MaxRetries = 0 }},
		{"zero workers", func(c *Config) { c.Runtime.Workers = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if CodeOf(err) != CodeConfig || !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
