// Package config loads process configuration.
//
// Values are layered low to high: defaults, an optional YAML file named by
// CIVICPULSE_CONFIG, then CIVICPULSE_* environment variables mapped to flat
// keys (CIVICPULSE_STORAGE_DRIVER -> storage_driver).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	platformstrings "civicpulse/pkg/platform/strings"
)

const (
	envPrefix  = "CIVICPULSE_"
	envFileVar = "CIVICPULSE_CONFIG"

	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	Addr      string `koanf:"addr"`
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// StorageDriver selects the enrollment, rating and audit backends: memory or postgres.
	StorageDriver  string        `koanf:"storage_driver"`
	DatabaseURL    string        `koanf:"database_url"`
	StorageTimeout time.Duration `koanf:"storage_timeout"`

	// RedisURL enables the stats cache when set.
	RedisURL      string        `koanf:"redis_url"`
	StatsCacheTTL time.Duration `koanf:"stats_cache_ttl"`

	JWTSigningKey string `koanf:"jwt_signing_key"`
	// JWTIssuer and JWTAudience are checked against iss and aud when set.
	JWTIssuer   string `koanf:"jwt_issuer"`
	JWTAudience string `koanf:"jwt_audience"`
	// AdminToken guards /admin routes. Empty locks them.
	AdminToken string `koanf:"admin_token"`

	MaxTemplateBytes int `koanf:"max_template_bytes"`
	MaxCommentChars  int `koanf:"max_comment_chars"`

	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// AuditKafkaBrokers is a comma-separated seed list; when set audit events go to Kafka.
	AuditKafkaBrokers string `koanf:"audit_kafka_brokers"`
	AuditKafkaTopic   string `koanf:"audit_kafka_topic"`
	AuditBufferSize   int    `koanf:"audit_buffer_size"`

	VerifierURL     string        `koanf:"verifier_url"`
	VerifierTimeout time.Duration `koanf:"verifier_timeout"`

	OTelEndpoint string `koanf:"otel_endpoint"`

	// UITheme is served to clients as-is; the portal has no theme of its own.
	UITheme string `koanf:"ui_theme"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Addr:             ":8080",
		LogLevel:         "info",
		LogFormat:        "json",
		StorageDriver:    StorageMemory,
		StorageTimeout:   5 * time.Second,
		StatsCacheTTL:    30 * time.Second,
		MaxTemplateBytes: 5 << 20,
		MaxCommentChars:  2000,
		RequestTimeout:   30 * time.Second,
		ShutdownTimeout:  10 * time.Second,
		AuditKafkaTopic:  "civicpulse.audit",
		AuditBufferSize:  1024,
		VerifierTimeout:  10 * time.Second,
		UITheme:          "light",
	}
}

// Load layers defaults, the optional file and the environment, then validates.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	switch c.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database_url is required for the postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage_driver %q", c.StorageDriver))
	}
	if c.MaxTemplateBytes <= 0 {
		errs = append(errs, errors.New("max_template_bytes must be positive"))
	}
	if c.MaxCommentChars <= 0 {
		errs = append(errs, errors.New("max_comment_chars must be positive"))
	}
	if c.StorageTimeout <= 0 {
		errs = append(errs, errors.New("storage_timeout must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if c.AuditBufferSize < 0 {
		errs = append(errs, errors.New("audit_buffer_size must not be negative"))
	}
	if c.JWTSigningKey == "" {
		errs = append(errs, errors.New("jwt_signing_key must not be empty"))
	}
	return errors.Join(errs...)
}

// KafkaBrokers splits AuditKafkaBrokers into a seed list.
func (c *Config) KafkaBrokers() []string {
	return platformstrings.SplitList(c.AuditKafkaBrokers, ",")
}
