// Package config handles loading and parsing of StoreGate configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPartSize is the multipart upload part-size target in bytes (5 MiB).
const DefaultPartSize = 5 * 1024 * 1024

// Config is the top-level configuration for StoreGate.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Upload  UploadConfig  `yaml:"upload"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// ShutdownTimeout is the graceful shutdown timeout in seconds.
	ShutdownTimeout int `yaml:"shutdown_timeout"`
}

// AuthConfig holds authorization settings.
type AuthConfig struct {
	// Token is the shared secret required for mutating requests and
	// non-public reads. An empty token denies all authorized operations.
	Token string `yaml:"token"`
}

// StorageConfig holds settings for the upstream S3-compatible store.
type StorageConfig struct {
	// Bucket is the upstream bucket name. Required.
	Bucket string `yaml:"bucket"`
	// Region is the upstream region.
	Region string `yaml:"region"`
	// EndpointURL overrides the S3 endpoint for MinIO-style deployments.
	EndpointURL string `yaml:"endpoint_url"`
	// UsePathStyle enables path-style addressing (bucket in the path
	// rather than the host), needed by most non-AWS endpoints.
	UsePathStyle bool `yaml:"use_path_style"`
	// AccessKeyID and SecretAccessKey are static credentials. When empty,
	// the standard AWS credential chain is used.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	// Prefix is an optional key prefix applied to every object in the
	// upstream bucket.
	Prefix string `yaml:"prefix"`
}

// UploadConfig holds multipart upload settings.
type UploadConfig struct {
	// PartSize is the part-size target in bytes. Values below the S3
	// minimum of 5 MiB are raised to the default.
	PartSize int64 `yaml:"part_size"`
	// PresignExpiry is the lifetime of presigned URLs in seconds.
	PresignExpiry int `yaml:"presign_expiry"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML configuration file from the given path and returns a
// parsed Config with defaults applied for unset values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 30,
		},
		Storage: StorageConfig{
			Region: "us-east-1",
		},
		Upload: UploadConfig{
			PartSize:      DefaultPartSize,
			PresignExpiry: 900,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyDefaults fills in any fields that are still at their zero value
// after YAML unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Upload.PartSize < DefaultPartSize {
		cfg.Upload.PartSize = DefaultPartSize
	}
	if cfg.Upload.PresignExpiry == 0 {
		cfg.Upload.PresignExpiry = 900
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
