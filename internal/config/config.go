// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	ProfileSourceFile     = "file"
	ProfileSourcePostgres = "postgres"
)

// Config is the full runtime configuration.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":9090"`

	ModelPath         string `env:"MODEL_PATH" envDefault:"models/model.onnx"`
	ModelMetadataPath string `env:"MODEL_METADATA_PATH" envDefault:"models/model_metadata.json"`
	ONNXRuntimeLib    string `env:"ONNXRUNTIME_LIB"`

	ResampleFilter string  `env:"RESAMPLE_FILTER" envDefault:"catmull-rom"`
	MaxImagePixels int     `env:"MAX_IMAGE_PIXELS" envDefault:"50000000"`
	MinConfidence  float64 `env:"MIN_CONFIDENCE" envDefault:"0.5"`
	Alternatives   int     `env:"ALTERNATIVES" envDefault:"3"`

	ProfileSource string `env:"PROFILE_SOURCE" envDefault:"file"`
	ProfileFile   string `env:"PROFILE_FILE" envDefault:"data/profiles.yaml"`
	DatabaseDSN   string `env:"DATABASE_DSN"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"10m"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		// A missing file is fine.
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR must not be empty"))
	}
	if c.ModelPath == "" || c.ModelMetadataPath == "" {
		errs = append(errs, errors.New("MODEL_PATH and MODEL_METADATA_PATH are required"))
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("MIN_CONFIDENCE %v must be within [0,1]", c.MinConfidence))
	}
	if c.Alternatives < 0 {
		errs = append(errs, fmt.Errorf("ALTERNATIVES %d must not be negative", c.Alternatives))
	}
	if c.MaxImagePixels <= 0 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_PIXELS %d must be positive", c.MaxImagePixels))
	}
	switch c.ProfileSource {
	case ProfileSourceFile:
		if c.ProfileFile == "" {
			errs = append(errs, errors.New("PROFILE_FILE is required when PROFILE_SOURCE=file"))
		}
	case ProfileSourcePostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required when PROFILE_SOURCE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("PROFILE_SOURCE %q must be %q or %q", c.ProfileSource, ProfileSourceFile, ProfileSourcePostgres))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL %s must be positive", c.CacheTTL))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT %s must be positive", c.ShutdownTimeout))
	}
	return errors.Join(errs...)
}

// CacheEnabled reports whether a Redis address was configured.
func (c Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}
