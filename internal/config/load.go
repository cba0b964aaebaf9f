package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rowjay/shop-backup/internal/cryptoutil"
)

const (
	envPrefix = "SHOPBK"
	appDir    = "shopbk"
)

// Load reads configuration from a file (optionally encrypted), env vars, and defaults.
func Load(path string) (*Config, error) {
	vp := viper.New()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	setDefaults(vp)

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	if resolved != "" {
		if err := readInto(vp, resolved); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	expandEnv(&cfg)
	applyPostLoadDefaults(&cfg)
	normalize(&cfg)
	return &cfg, nil
}

func readInto(vp *viper.Viper, path string) error {
	if !isEncryptedPath(path) {
		vp.SetConfigFile(path)
		if err := vp.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	vp.SetConfigType(configTypeFromPath(path))
	key := os.Getenv(envPrefix + "_CONFIG_KEY")
	if key == "" {
		key = vp.GetString("global.config_passphrase")
	}
	if key == "" {
		return errors.New("config file is encrypted but " + envPrefix + "_CONFIG_KEY is not set")
	}
	plain, err := decryptConfig(data, key)
	if err != nil {
		return fmt.Errorf("decrypt config: %w", err)
	}
	if err := vp.ReadConfig(bytes.NewReader(plain)); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if envPath := os.Getenv(envPrefix + "_CONFIG"); envPath != "" {
		return envPath, nil
	}

	candidates := []string{
		appDir + ".yaml",
		appDir + ".yml",
		appDir + ".toml",
		appDir + ".json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", nil
	}
	base := filepath.Join(configDir, appDir)
	for _, c := range candidates {
		for _, name := range []string{c, c + ".enc"} {
			p := filepath.Join(base, name)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", nil
}

func isEncryptedPath(path string) bool {
	return strings.HasSuffix(path, ".enc") || strings.HasSuffix(path, ".encrypted")
}

func configTypeFromPath(path string) string {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(path, ".enc"), ".encrypted")
	switch filepath.Ext(trimmed) {
	case ".toml":
		return "toml"
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("global.log_level", "info")
	vp.SetDefault("global.log_format", "json")
	vp.SetDefault("global.operation_timeout", "2h")
	vp.SetDefault("database.type", "sqlite")
	vp.SetDefault("database.sqlite_path", "./shop.db")
	vp.SetDefault("objects.backend", "local")
	vp.SetDefault("objects.local.path", "./objects")
	vp.SetDefault("storage.backend", "local")
	vp.SetDefault("storage.local.path", "./backups")
	vp.SetDefault("backup.type", "full")
	vp.SetDefault("backup.compression", "deflate")
	vp.SetDefault("backup.level", 6)
	vp.SetDefault("backup.parallelism", 4)
	vp.SetDefault("backup.retry_count", 3)
	vp.SetDefault("backup.retry_backoff", "10s")
	vp.SetDefault("restore.parallelism", 4)
}

func applyPostLoadDefaults(cfg *Config) {
	if cfg.Backup.RetryBackoff == 0 {
		cfg.Backup.RetryBackoff = 10 * time.Second
	}
	if cfg.Global.OperationTimeout == 0 {
		cfg.Global.OperationTimeout = 2 * time.Hour
	}
	if cfg.Backup.Parallelism <= 0 {
		cfg.Backup.Parallelism = 1
	}
	if cfg.Restore.Parallelism <= 0 {
		cfg.Restore.Parallelism = 1
	}
}

// normalize lower-cases enum-like values so flags and files may use any case.
func normalize(cfg *Config) {
	cfg.Database.Type = strings.ToLower(cfg.Database.Type)
	cfg.Objects.Backend = strings.ToLower(cfg.Objects.Backend)
	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
	cfg.Backup.Type = strings.ToLower(cfg.Backup.Type)
	cfg.Backup.Compression = strings.ToLower(cfg.Backup.Compression)
}

func expandEnv(cfg *Config) {
	cfg.Database.Password = os.ExpandEnv(cfg.Database.Password)
	cfg.Database.Username = os.ExpandEnv(cfg.Database.Username)
	cfg.Backup.EncryptionKey = os.ExpandEnv(cfg.Backup.EncryptionKey)
	cfg.Objects.S3 = expandS3Env(cfg.Objects.S3)
	cfg.Storage.S3 = expandS3Env(cfg.Storage.S3)
	cfg.Notifications = expandNotificationEnv(cfg.Notifications)
}

func expandS3Env(s S3Store) S3Store {
	s.AccessKey = os.ExpandEnv(s.AccessKey)
	s.SecretKey = os.ExpandEnv(s.SecretKey)
	s.SessionToken = os.ExpandEnv(s.SessionToken)
	return s
}

func expandNotificationEnv(cfg NotificationsConfig) NotificationsConfig {
	for i := range cfg.Webhooks {
		cfg.Webhooks[i].URL = os.ExpandEnv(cfg.Webhooks[i].URL)
	}
	for i := range cfg.Mattermost {
		cfg.Mattermost[i].URL = os.ExpandEnv(cfg.Mattermost[i].URL)
	}
	for i := range cfg.Matrix {
		cfg.Matrix[i].ServerURL = os.ExpandEnv(cfg.Matrix[i].ServerURL)
		cfg.Matrix[i].AccessToken = os.ExpandEnv(cfg.Matrix[i].AccessToken)
		cfg.Matrix[i].RoomID = os.ExpandEnv(cfg.Matrix[i].RoomID)
	}
	return cfg
}

func decryptConfig(ciphertext []byte, key string) ([]byte, error) {
	parsed, err := cryptoutil.ParseKey(key)
	if err != nil {
		return nil, err
	}
	return cryptoutil.DecryptConfig(ciphertext, parsed)
}
