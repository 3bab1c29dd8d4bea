// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package config loads the process settings from the environment with
// caarlos0/env and checks the rules tags cannot express. Both cmd/api and
// inkctl call [Load]; the result is passed down by constructor, never stored
// globally.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/taibuivan/inkshelf/internal/platform/constants"
)

// Blob storage backends understood by [Config.BlobBackend].
const (
	BlobBackendFilesystem = "filesystem"
	BlobBackendS3         = "s3"
)

// # Configuration Schema

// Config holds all runtime configuration for the Inkshelf ingestion API.
type Config struct {
	// HTTP listener
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// PostgreSQL holds works, chapters and pages.
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Directory of golang-migrate .sql files.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis), used for chapter events and the recent-works ranking.
	RedisURL string `env:"REDIS_URL,required"`

	// Token verification. The private key is optional: this API never issues tokens.
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required"`

	// Blob storage for page images
	BlobBackend string `env:"BLOB_BACKEND" envDefault:"filesystem"`
	UploadDir   string `env:"UPLOAD_DIR"   envDefault:"./data/uploads"`

	// S3-compatible bucket, used when BLOB_BACKEND=s3
	S3Bucket   string `env:"S3_BUCKET"`
	S3Region   string `env:"S3_REGION"   envDefault:"auto"`
	S3Endpoint string `env:"S3_ENDPOINT"`
	S3Prefix   string `env:"S3_PREFIX"`

	// Upload limits
	UploadMaxFileBytes int64 `env:"UPLOAD_MAX_FILE_BYTES" envDefault:"20971520"`
	UploadMaxPages     int   `env:"UPLOAD_MAX_PAGES"      envDefault:"500"`

	// UploadMaxRequestBytes caps the whole multipart body; a larger body is 413.
	UploadMaxRequestBytes int64 `env:"UPLOAD_MAX_REQUEST_BYTES" envDefault:"268435456"`

	// Orphan sweep
	SweepGrace    time.Duration `env:"SWEEP_GRACE"     envDefault:"1h"`
	SweepLockPath string        `env:"SWEEP_LOCK_PATH" envDefault:"./data/sweep.lock"`

	// Per-IP rate limits. Multipart uploads draw from a separate, smaller budget.
	RateLimitRPS         float64 `env:"RATE_LIMIT_RPS"          envDefault:"100"`
	RateLimitBurst       int     `env:"RATE_LIMIT_BURST"        envDefault:"150"`
	UploadRateLimitRPS   float64 `env:"UPLOAD_RATE_LIMIT_RPS"   envDefault:"2"`
	UploadRateLimitBurst int     `env:"UPLOAD_RATE_LIMIT_BURST" envDefault:"10"`

	// Comma separated origin suffixes allowed outside development.
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load reads and validates the configuration. Missing required variables
// and cross-field violations are reported together.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces the cross-field rules that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.BlobBackend {
	case BlobBackendFilesystem:
		if strings.TrimSpace(c.UploadDir) == "" {
			errs = append(errs, errors.New("UPLOAD_DIR is required for the filesystem backend"))
		}
	case BlobBackendS3:
		if strings.TrimSpace(c.S3Bucket) == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("BLOB_BACKEND must be %q or %q, got %q", BlobBackendFilesystem, BlobBackendS3, c.BlobBackend))
	}

	if c.UploadMaxFileBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_FILE_BYTES must be positive"))
	}
	if c.UploadMaxPages <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_PAGES must be positive"))
	}
	if c.UploadMaxRequestBytes < c.UploadMaxFileBytes || c.UploadMaxRequestBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_REQUEST_BYTES must be positive and at least UPLOAD_MAX_FILE_BYTES"))
	}
	if c.SweepGrace < constants.MinSweepGrace {
		errs = append(errs, fmt.Errorf("SWEEP_GRACE must be at least %s", constants.MinSweepGrace))
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	if c.UploadRateLimitRPS <= 0 || c.UploadRateLimitBurst <= 0 {
		errs = append(errs, errors.New("UPLOAD_RATE_LIMIT_RPS and UPLOAD_RATE_LIMIT_BURST must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsOriginAllowed reports whether a CORS origin ends with one of the configured suffixes.
func (c *Config) IsOriginAllowed(origin string) bool {
	for _, suffix := range strings.Split(c.ExtraOrigins, ",") {
		suffix = strings.TrimSpace(suffix)
		if suffix != "" && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}
