// Package config loads the settings of programs built on the aop module from the
// environment and optional .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Settings holds the runtime configuration.
type Settings struct {
	// Environment is one of development, production or testing.
	Environment string `validate:"required,oneof=development production testing"`
	// LogLevel is a zap level name.
	LogLevel string `validate:"required,oneof=debug info warn error"`
	// AspectsFile is the YAML aspect configuration document.
	AspectsFile string `validate:"required"`
	// SlowCallThreshold is the duration above which profiled calls are logged.
	SlowCallThreshold time.Duration `validate:"gte=0"`
	MetricsEnabled    bool
	TracingEnabled    bool
}

var validate = validator.New()

// Load reads the given .env files (".env" when none are given) and builds Settings
// from the environment. Missing files are ignored; variables already set in the
// environment take precedence over file values.
func Load(envFiles ...string) (*Settings, error) {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	s := &Settings{
		Environment:       env("AOP_ENV", "development"),
		LogLevel:          env("AOP_LOG_LEVEL", "info"),
		AspectsFile:       env("AOP_ASPECTS_FILE", "aspects.yaml"),
		SlowCallThreshold: envDuration("AOP_SLOW_CALL_THRESHOLD", 500*time.Millisecond),
		MetricsEnabled:    envBool("AOP_METRICS_ENABLED", true),
		TracingEnabled:    envBool("AOP_TRACING_ENABLED", false),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings against their constraints.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// IsProduction reports whether the settings describe a production deployment.
func (s *Settings) IsProduction() bool {
	return s.Environment == "production"
}

// NewLogger builds a production logger in production and a development logger
// otherwise, at the configured level.
func (s *Settings) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, err
	}
	var cfg zap.Config
	if s.IsProduction() {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
