package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storegate.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
  shutdown_timeout: 5
auth:
  token: hunter2
storage:
  bucket: uploads
  region: eu-west-1
  endpoint_url: http://minio:9000
  use_path_style: true
  access_key_id: AKIATEST
  secret_access_key: secret
  prefix: gw/
upload:
  part_size: 8388608
  presign_expiry: 60
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9090 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Auth.Token != "hunter2" {
		t.Errorf("auth token = %q", cfg.Auth.Token)
	}
	if cfg.Storage.Bucket != "uploads" || cfg.Storage.Region != "eu-west-1" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if !cfg.Storage.UsePathStyle || cfg.Storage.EndpointURL != "http://minio:9000" {
		t.Errorf("storage endpoint = %+v", cfg.Storage)
	}
	if cfg.Upload.PartSize != 8388608 {
		t.Errorf("part size = %d", cfg.Upload.PartSize)
	}
	if cfg.Upload.PresignExpiry != 60 {
		t.Errorf("presign expiry = %d", cfg.Upload.PresignExpiry)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  bucket: uploads
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8080 {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if cfg.Server.ShutdownTimeout != 30 {
		t.Errorf("shutdown timeout default = %d", cfg.Server.ShutdownTimeout)
	}
	if cfg.Storage.Region != "us-east-1" {
		t.Errorf("region default = %q", cfg.Storage.Region)
	}
	if cfg.Upload.PartSize != DefaultPartSize {
		t.Errorf("part size default = %d", cfg.Upload.PartSize)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
}

func TestLoadClampsSmallPartSize(t *testing.T) {
	// The S3 minimum part size is 5 MiB for all but the last part; a
	// smaller configured target would make every multi-part upload fail
	// at completion time.
	path := writeConfig(t, `
storage:
  bucket: uploads
upload:
  part_size: 1024
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upload.PartSize != DefaultPartSize {
		t.Errorf("part size = %d, want clamped to %d", cfg.Upload.PartSize, DefaultPartSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load of a missing file should fail")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Fatal("Load of malformed YAML should fail")
	}
}
