package config

import "time"

// Config is the root configuration schema.
type Config struct {
	Global        GlobalConfig        `mapstructure:"global"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Objects       ObjectsConfig       `mapstructure:"objects"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Backup        BackupConfig        `mapstructure:"backup"`
	Restore       RestoreConfig       `mapstructure:"restore"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

type GlobalConfig struct {
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"` // json or console
	LockFile         string        `mapstructure:"lock_file"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	ConfigPassphrase string        `mapstructure:"config_passphrase"` // optional; may come from env
}

type DatabaseConfig struct {
	Type              string            `mapstructure:"type"` // sqlite, postgres, mysql
	Host              string            `mapstructure:"host"`
	Port              int               `mapstructure:"port"`
	Username          string            `mapstructure:"username"`
	Password          string            `mapstructure:"password"`
	Database          string            `mapstructure:"database"`
	Params            map[string]string `mapstructure:"params"`
	SSLMode           string            `mapstructure:"ssl_mode"`
	ConnectionTimeout time.Duration     `mapstructure:"connection_timeout"`
	SQLitePath        string            `mapstructure:"sqlite_path"`
}

// ObjectsConfig points at the application's object storage, the buckets that
// get backed up and restored.
type ObjectsConfig struct {
	Backend string     `mapstructure:"backend"` // local, memory, minio, s3
	Local   LocalStore `mapstructure:"local"`
	S3      S3Store    `mapstructure:"s3"`
}

// StorageConfig is where finished archives are kept.
type StorageConfig struct {
	Backend string     `mapstructure:"backend"` // local, s3
	Local   LocalStore `mapstructure:"local"`
	S3      S3Store    `mapstructure:"s3"`
	Prefix  string     `mapstructure:"prefix"`
}

type LocalStore struct {
	Path string `mapstructure:"path"`
}

type S3Store struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"` // archive repository only
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	SessionToken    string `mapstructure:"session_token"`
	TLSInsecureSkip bool   `mapstructure:"tls_insecure_skip"`
}

type BackupConfig struct {
	Type          string        `mapstructure:"type"`        // data_only, full
	Compression   string        `mapstructure:"compression"` // none, deflate, zstd
	Level         int           `mapstructure:"level"`
	Encryption    bool          `mapstructure:"encryption"`
	EncryptionKey string        `mapstructure:"encryption_key"`
	Parallelism   int           `mapstructure:"parallelism"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

type RestoreConfig struct {
	DryRun      bool     `mapstructure:"dry_run"`
	Tables      []string `mapstructure:"tables"`
	Parallelism int      `mapstructure:"parallelism"`
}

type NotificationsConfig struct {
	Webhooks   []WebhookConfig  `mapstructure:"webhooks"`
	Mattermost []MattermostHook `mapstructure:"mattermost"`
	Matrix     []MatrixConfig   `mapstructure:"matrix"`
}

type WebhookConfig struct {
	Name    string            `mapstructure:"name"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type MattermostHook struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type MatrixConfig struct {
	Name        string `mapstructure:"name"`
	ServerURL   string `mapstructure:"server_url"`
	AccessToken string `mapstructure:"access_token"`
	RoomID      string `mapstructure:"room_id"`
}
