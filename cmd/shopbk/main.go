package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rowjay/shop-backup/internal/app"
	"github.com/rowjay/shop-backup/internal/config"
	"github.com/rowjay/shop-backup/internal/db"
	"github.com/rowjay/shop-backup/internal/logging"
	"github.com/rowjay/shop-backup/internal/notify"
	"github.com/rowjay/shop-backup/internal/objstore"
	"github.com/rowjay/shop-backup/internal/storage"
)

type rootFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

type overrideFlags struct {
	DBType        string
	DBHost        string
	DBPort        int
	DBUser        string
	DBPassword    string
	DBName        string
	SQLitePath    string
	Objects       string
	ObjectsPath   string
	Storage       string
	LocalPath     string
	Prefix        string
	S3Endpoint    string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	S3Region      string
	S3UseSSL      string
	S3PathStyle   string
	EncryptionKey string
}

func main() {
	root := &rootFlags{}
	overrides := &overrideFlags{}

	rootCmd := &cobra.Command{
		Use:          "shopbk",
		Short:        "Backup and restore for the shop database and its object storage",
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&root.ConfigPath, "config", "", "Path to config file (yaml/toml/json or .enc)")
	pf.StringVar(&root.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&root.LogFormat, "log-format", "", "Log format (json, console)")

	pf.StringVar(&overrides.DBType, "db-type", "", "Database type (sqlite, postgres, mysql)")
	pf.StringVar(&overrides.DBHost, "db-host", "", "Database host")
	pf.IntVar(&overrides.DBPort, "db-port", 0, "Database port")
	pf.StringVar(&overrides.DBUser, "db-user", "", "Database username")
	pf.StringVar(&overrides.DBPassword, "db-password", "", "Database password")
	pf.StringVar(&overrides.DBName, "db-name", "", "Database name")
	pf.StringVar(&overrides.SQLitePath, "sqlite-path", "", "SQLite file path")

	pf.StringVar(&overrides.Objects, "objects", "", "Object storage backend (local, memory, minio, s3)")
	pf.StringVar(&overrides.ObjectsPath, "objects-path", "", "Root directory of the local object storage")

	pf.StringVar(&overrides.Storage, "storage", "", "Archive repository backend (local, s3)")
	pf.StringVar(&overrides.LocalPath, "storage-path", "", "Local archive repository path")
	pf.StringVar(&overrides.Prefix, "prefix", "", "Key prefix inside the archive repository")
	pf.StringVar(&overrides.S3Endpoint, "s3-endpoint", "", "S3 endpoint of the archive repository (MinIO/OSS)")
	pf.StringVar(&overrides.S3Bucket, "s3-bucket", "", "S3 bucket of the archive repository")
	pf.StringVar(&overrides.S3AccessKey, "s3-access-key", "", "S3 access key")
	pf.StringVar(&overrides.S3SecretKey, "s3-secret-key", "", "S3 secret key")
	pf.StringVar(&overrides.S3Region, "s3-region", "", "S3 region")
	pf.StringVar(&overrides.S3UseSSL, "s3-ssl", "", "Use SSL for S3 endpoint (true/false)")
	pf.StringVar(&overrides.S3PathStyle, "s3-path-style", "", "Force path-style S3 (true/false)")
	pf.StringVar(&overrides.EncryptionKey, "encryption-key", "", "Archive encryption key (base64 or hex)")

	rootCmd.AddCommand(newBackupCmd(root, overrides))
	rootCmd.AddCommand(newRestoreCmd(root, overrides))
	rootCmd.AddCommand(newValidateCmd(root, overrides))
	rootCmd.AddCommand(newCheckCmd(root, overrides))
	rootCmd.AddCommand(newListCmd(root, overrides))
	rootCmd.AddCommand(newMigrateCmd(root, overrides))
	rootCmd.AddCommand(newSettingsCmd(root, overrides))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// session is everything a command needs once config is loaded.
type session struct {
	cfg   *config.Config
	log   zerolog.Logger
	store *db.SQLStore
	app   *app.App
}

func (s *session) Close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

func (s *session) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.Global.OperationTimeout)
}

func openSession(root *rootFlags, overrides *overrideFlags) (*session, error) {
	cfg, err := loadConfig(root, overrides)
	if err != nil {
		return nil, err
	}
	logger := logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat)
	store, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	objects, err := objstore.New(cfg.Objects)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	repo, err := storage.New(cfg.Storage)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	appSvc := app.New(cfg, store, objects, repo, logger, notify.FromConfig(cfg.Notifications))
	return &session{cfg: cfg, log: logger, store: store, app: appSvc}, nil
}

func loadConfig(root *rootFlags, overrides *overrideFlags) (*config.Config, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, root, overrides)
	return cfg, nil
}

func applyOverrides(cfg *config.Config, root *rootFlags, overrides *overrideFlags) {
	if root.LogLevel != "" {
		cfg.Global.LogLevel = root.LogLevel
	}
	if root.LogFormat != "" {
		cfg.Global.LogFormat = root.LogFormat
	}

	if overrides.DBType != "" {
		cfg.Database.Type = overrides.DBType
	}
	if overrides.DBHost != "" {
		cfg.Database.Host = overrides.DBHost
	}
	if overrides.DBPort != 0 {
		cfg.Database.Port = overrides.DBPort
	}
	if overrides.DBUser != "" {
		cfg.Database.Username = overrides.DBUser
	}
	if overrides.DBPassword != "" {
		cfg.Database.Password = overrides.DBPassword
	}
	if overrides.DBName != "" {
		cfg.Database.Database = overrides.DBName
	}
	if overrides.SQLitePath != "" {
		cfg.Database.SQLitePath = overrides.SQLitePath
	}

	if overrides.Objects != "" {
		cfg.Objects.Backend = overrides.Objects
	}
	if overrides.ObjectsPath != "" {
		cfg.Objects.Local.Path = overrides.ObjectsPath
	}

	if overrides.Storage != "" {
		cfg.Storage.Backend = overrides.Storage
	}
	if overrides.LocalPath != "" {
		cfg.Storage.Local.Path = overrides.LocalPath
	}
	if overrides.Prefix != "" {
		cfg.Storage.Prefix = overrides.Prefix
	}
	if overrides.S3Endpoint != "" {
		cfg.Storage.S3.Endpoint = overrides.S3Endpoint
	}
	if overrides.S3Bucket != "" {
		cfg.Storage.S3.Bucket = overrides.S3Bucket
	}
	if overrides.S3AccessKey != "" {
		cfg.Storage.S3.AccessKey = overrides.S3AccessKey
	}
	if overrides.S3SecretKey != "" {
		cfg.Storage.S3.SecretKey = overrides.S3SecretKey
	}
	if overrides.S3Region != "" {
		cfg.Storage.S3.Region = overrides.S3Region
	}
	if overrides.S3UseSSL != "" {
		cfg.Storage.S3.UseSSL = parseBool(overrides.S3UseSSL)
	}
	if overrides.S3PathStyle != "" {
		cfg.Storage.S3.ForcePathStyle = parseBool(overrides.S3PathStyle)
	}

	if overrides.EncryptionKey != "" {
		cfg.Backup.EncryptionKey = overrides.EncryptionKey
	}

	if backupFlags.Type != "" {
		cfg.Backup.Type = backupFlags.Type
	}
	if backupFlags.Compression != "" {
		cfg.Backup.Compression = backupFlags.Compression
	}
	if backupFlags.Level > 0 {
		cfg.Backup.Level = backupFlags.Level
	}
	if backupFlags.Encrypt {
		cfg.Backup.Encryption = true
	}
	if backupFlags.Parallelism > 0 {
		cfg.Backup.Parallelism = backupFlags.Parallelism
	}
	if backupFlags.Retry > 0 {
		cfg.Backup.RetryCount = backupFlags.Retry
	}
	if backupFlags.RetryBackoff > 0 {
		cfg.Backup.RetryBackoff = backupFlags.RetryBackoff
	}

	cfg.Database.Type = strings.ToLower(cfg.Database.Type)
	cfg.Objects.Backend = strings.ToLower(cfg.Objects.Backend)
	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
	cfg.Backup.Type = strings.ToLower(cfg.Backup.Type)
	cfg.Backup.Compression = strings.ToLower(cfg.Backup.Compression)
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

var backupFlags struct {
	Type         string
	Compression  string
	Level        int
	Encrypt      bool
	Parallelism  int
	Retry        int
	RetryBackoff time.Duration
}

func printf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}
