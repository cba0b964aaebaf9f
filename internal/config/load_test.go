package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SHOPBK_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Type != "sqlite" || cfg.Objects.Backend != "local" || cfg.Storage.Backend != "local" {
		t.Fatalf("unexpected backends: %+v", cfg)
	}
	if cfg.Backup.Type != "full" || cfg.Backup.Compression != "deflate" || cfg.Backup.Level != 6 {
		t.Fatalf("unexpected backup defaults: %+v", cfg.Backup)
	}
	if cfg.Backup.RetryBackoff != 10*time.Second || cfg.Global.OperationTimeout != 2*time.Hour {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shopbk.yaml")
	content := []byte(`
database:
  type: Postgres
  host: db.internal
  password: ${SHOP_DB_PASSWORD}
backup:
  type: DATA_ONLY
  compression: zstd
objects:
  backend: minio
  s3:
    endpoint: minio:9000
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("SHOP_DB_PASSWORD", "s3cret")
	t.Setenv("SHOPBK_BACKUP_PARALLELISM", "8")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Type != "postgres" || cfg.Database.Host != "db.internal" {
		t.Fatalf("unexpected database: %+v", cfg.Database)
	}
	if cfg.Database.Password != "s3cret" {
		t.Fatalf("password not expanded: %q", cfg.Database.Password)
	}
	if cfg.Backup.Type != "data_only" || cfg.Backup.Compression != "zstd" {
		t.Fatalf("unexpected backup: %+v", cfg.Backup)
	}
	if cfg.Backup.Parallelism != 8 {
		t.Fatalf("env override ignored: %d", cfg.Backup.Parallelism)
	}
	if cfg.Objects.Backend != "minio" || cfg.Objects.S3.Endpoint != "minio:9000" {
		t.Fatalf("unexpected objects: %+v", cfg.Objects)
	}
}

func TestLoadEncryptedFile(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "shopbk.yaml")
	if err := os.WriteFile(plain, []byte("global:\n  log_level: debug\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	enc := plain + ".enc"
	if err := EncryptConfigFile(plain, enc, key); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	t.Setenv("SHOPBK_CONFIG_KEY", key)

	cfg, err := Load(enc)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Global.LogLevel != "debug" {
		t.Fatalf("unexpected log level %q", cfg.Global.LogLevel)
	}

	t.Setenv("SHOPBK_CONFIG_KEY", "")
	if _, err := Load(enc); err == nil {
		t.Fatalf("expected error without key")
	}
}
