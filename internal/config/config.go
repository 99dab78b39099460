// Package config loads and validates the Bookboard YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bookboard-app/bookboard/internal/images"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// DBPath is the SQLite file backing the local cache. Defaults to
	// ~/.local/share/bookboard/bookboard.db.
	DBPath string `yaml:"db_path"`

	// MongoURI is the connection string of the remote document store
	// (e.g. "mongodb://localhost:27017").
	MongoURI string `yaml:"mongo_uri"`

	// MongoDatabase is the database holding the posts, users, and
	// credentials collections. Defaults to "bookboard".
	MongoDatabase string `yaml:"mongo_database"`

	// ListenAddr is the HTTP bind address of the API server (e.g. ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// JWTSecret signs session tokens. Required.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL bounds session token validity. Defaults to 7 days.
	TokenTTL time.Duration `yaml:"token_ttl"`

	// DrainInterval controls how often the sync engine replays queued
	// remote mirror operations. Minimum 5s, maximum 10m. Defaults to 30s.
	DrainInterval time.Duration `yaml:"drain_interval"`

	// Images selects where uploaded pictures go. Omit the block to store
	// them under ~/.local/share/bookboard/images.
	Images *ImagesConfig `yaml:"images,omitempty"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// ImagesConfig selects the image storage backend. Exactly one of Dir or S3
// may be set.
type ImagesConfig struct {
	// Dir stores images on the local filesystem under this directory.
	Dir string `yaml:"dir,omitempty"`

	// S3 stores images in an S3-compatible bucket so they resolve on every
	// device.
	S3 *images.S3Config `yaml:"s3,omitempty"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "bookboard".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request, e.g. Authorization: "Bearer <token>".
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/bookboard/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "bookboard", "config.yaml"), nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required fields are present and well-formed.
func (c *Config) validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("mongo_uri is required")
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = "bookboard"
	}

	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("jwt_secret is too short (minimum 16 characters)")
	}

	if c.TokenTTL == 0 {
		c.TokenTTL = 7 * 24 * time.Hour
	}
	if c.TokenTTL < time.Minute {
		return fmt.Errorf("token_ttl %v is too short (minimum 1m)", c.TokenTTL)
	}

	if c.DrainInterval == 0 {
		c.DrainInterval = 30 * time.Second
	}
	if c.DrainInterval < 5*time.Second {
		return fmt.Errorf("drain_interval %v is too short (minimum 5s)", c.DrainInterval)
	}
	if c.DrainInterval > 10*time.Minute {
		return fmt.Errorf("drain_interval %v is too long (maximum 10m)", c.DrainInterval)
	}

	if c.Images != nil {
		if c.Images.Dir != "" && c.Images.S3 != nil {
			return fmt.Errorf("images.dir and images.s3 are mutually exclusive")
		}
		if c.Images.Dir == "" && c.Images.S3 == nil {
			return fmt.Errorf("images block must set either dir or s3")
		}
		if s3 := c.Images.S3; s3 != nil {
			if s3.Bucket == "" {
				return fmt.Errorf("images.s3.bucket is required")
			}
			if s3.Region == "" {
				return fmt.Errorf("images.s3.region is required")
			}
			if s3.PublicBaseURL == "" {
				return fmt.Errorf("images.s3.public_base_url is required")
			}
		}
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}
