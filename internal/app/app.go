package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rowjay/shop-backup/internal/archive"
	"github.com/rowjay/shop-backup/internal/config"
	"github.com/rowjay/shop-backup/internal/cryptoutil"
	"github.com/rowjay/shop-backup/internal/db"
	"github.com/rowjay/shop-backup/internal/notify"
	"github.com/rowjay/shop-backup/internal/objstore"
	"github.com/rowjay/shop-backup/internal/progress"
	"github.com/rowjay/shop-backup/internal/schema"
	"github.com/rowjay/shop-backup/internal/settings"
	"github.com/rowjay/shop-backup/internal/storage"
	"github.com/rowjay/shop-backup/internal/util"
)

type App struct {
	Cfg      *config.Config
	DB       db.Store
	Objects  objstore.Store
	Storage  storage.Storage
	Settings settings.Store
	Registry *schema.Registry
	Log      zerolog.Logger
	Notifier notify.Notifier
	Progress progress.Func
	Now      func() time.Time
}

func New(cfg *config.Config, store db.Store, objects objstore.Store, repo storage.Storage, log zerolog.Logger, notifier notify.Notifier) *App {
	return &App{
		Cfg:      cfg,
		DB:       store,
		Objects:  objects,
		Storage:  repo,
		Settings: settings.NewSQLStore(store),
		Registry: schema.Default(),
		Log:      log,
		Notifier: notifier,
		Progress: progress.Log(log),
	}
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) prefix() string {
	return util.BuildPrefix(a.Cfg.Storage.Prefix)
}

func (a *App) sink() progress.Func {
	if a.Progress == nil {
		return progress.Nop
	}
	return a.Progress
}

func (a *App) encryptionKey() ([]byte, error) {
	if a.Cfg.Backup.EncryptionKey == "" {
		return nil, fmt.Errorf("encryption key is required (backup.encryption_key)")
	}
	return cryptoutil.ParseKey(a.Cfg.Backup.EncryptionKey)
}

// notify never lets a dead notification target fail the operation.
func (a *App) notify(event notify.Event) {
	if a.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Notifier.Notify(ctx, event); err != nil {
		a.Log.Warn().Err(err).Str("event", event.Type).Msg("notification failed")
	}
}

// Check verifies that the database, every schema bucket and the archive
// repository answer.
func (a *App) Check(ctx context.Context) error {
	var errs []error
	if err := a.DB.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if a.Objects != nil {
		for _, bucket := range a.Registry.Buckets() {
			ok, err := a.Objects.BucketExists(ctx, bucket)
			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("bucket %s: %w", bucket, err))
			case !ok:
				errs = append(errs, fmt.Errorf("bucket %s: %w", bucket, objstore.ErrNotFound))
			}
		}
	}
	if _, err := a.Storage.List(ctx, a.prefix()); err != nil {
		errs = append(errs, fmt.Errorf("archive repository: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) List(ctx context.Context) ([]storage.Summary, error) {
	return storage.Catalog(ctx, a.Storage, a.prefix())
}

// openArchive fetches an archive from the repository (key) or the local
// filesystem (inputPath), decrypts it when needed and spools it to a temp
// file so the zip reader gets random access. The returned func removes the
// temp file.
func (a *App) openArchive(ctx context.Context, key, inputPath string) (*archive.Archive, func(), error) {
	var (
		src       io.ReadCloser
		name      string
		encrypted bool
		err       error
	)
	switch {
	case inputPath != "":
		name = inputPath
		src, err = os.Open(inputPath)
	case key != "":
		name = key
		if summary, serr := storage.ReadSummary(ctx, a.Storage, key); serr == nil {
			encrypted = summary.Encrypted
		}
		src, err = a.Storage.Get(ctx, key)
	default:
		return nil, nil, errors.New("an archive key or input path is required")
	}
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	var payload io.Reader = src
	if encrypted || strings.HasSuffix(name, cryptoutil.ArchiveSuffix) {
		keyBytes, err := a.encryptionKey()
		if err != nil {
			return nil, nil, err
		}
		if payload, err = cryptoutil.DecryptReader(src, keyBytes); err != nil {
			return nil, nil, err
		}
	}

	tmp, err := os.CreateTemp("", "shopbk-restore-*.zip")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}
	size, err := io.Copy(tmp, payload)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("read archive %s: %w", name, err)
	}
	arc, err := archive.Decode(tmp, size)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return arc, cleanup, nil
}
