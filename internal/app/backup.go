package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rowjay/shop-backup/internal/archive"
	"github.com/rowjay/shop-backup/internal/cryptoutil"
	"github.com/rowjay/shop-backup/internal/lock"
	"github.com/rowjay/shop-backup/internal/logging"
	"github.com/rowjay/shop-backup/internal/notify"
	"github.com/rowjay/shop-backup/internal/report"
	"github.com/rowjay/shop-backup/internal/schema"
	"github.com/rowjay/shop-backup/internal/snapshot"
	"github.com/rowjay/shop-backup/internal/storage"
	"github.com/rowjay/shop-backup/internal/util"
	"github.com/rowjay/shop-backup/internal/version"
)

type BackupOptions struct {
	// Type overrides backup.type from the config when set.
	Type schema.BackupType
	// OutputPath writes the archive to a local file instead of the repository.
	OutputPath string
}

type BackupResult struct {
	Key      string
	Summary  storage.Summary
	Failures report.Failures
	Pruned   []storage.Summary
}

func (a *App) Backup(ctx context.Context, opts BackupOptions) (*BackupResult, error) {
	start := time.Now()
	typ := opts.Type
	if typ == "" {
		typ = schema.BackupType(a.Cfg.Backup.Type)
	}

	var opErr error
	var result *BackupResult
	defer func() {
		event := notify.Event{
			Type:       "backup",
			BackupType: string(typ),
			StartedAt:  start,
			EndedAt:    time.Now(),
			Duration:   time.Since(start).Round(time.Millisecond).String(),
		}
		var failures report.Failures
		if result != nil {
			failures = result.Failures
			event.Key = result.Key
			event.Message = fmt.Sprintf("captured %d tables, %d files, %d error(s)",
				result.Summary.Tables, result.Summary.Files, len(failures))
		}
		for _, f := range failures {
			event.Failures = append(event.Failures, f.Error())
		}
		event.Status = notify.Status(opErr, len(failures))
		if opErr != nil {
			event.Error = opErr.Error()
			event.Message = opErr.Error()
		}
		a.notify(event)
	}()

	if !typ.Valid() {
		opErr = fmt.Errorf("unknown backup type %q", typ)
		return nil, opErr
	}

	guard, err := lock.Acquire(a.Cfg.Global.LockFile)
	if err != nil {
		opErr = err
		return nil, err
	}
	defer guard.Release()

	var encKey []byte
	if a.Cfg.Backup.Encryption {
		if encKey, err = a.encryptionKey(); err != nil {
			opErr = err
			return nil, err
		}
	}

	builder := &snapshot.Builder{
		DB:          a.DB,
		Objects:     a.Objects,
		Registry:    a.Registry,
		Log:         logging.Component(a.Log, "snapshot"),
		Parallelism: a.Cfg.Backup.Parallelism,
		Generator:   version.Generator(),
		Now:         a.Now,
	}
	snap, err := builder.Build(ctx, typ, a.sink())
	if err != nil {
		opErr = err
		return nil, err
	}
	m := snap.Manifest

	summary := storage.Summary{
		ID:          m.ID,
		Type:        string(m.Type),
		CreatedAt:   m.CreatedAt,
		Tables:      m.Tables.Len(),
		Rows:        m.Tables.RowCount(),
		Files:       len(m.Files),
		Failures:    len(snap.Failures),
		Encrypted:   encKey != nil,
		Compression: a.Cfg.Backup.Compression,
		ToolVersion: version.Version,
	}

	if opts.OutputPath != "" {
		size, err := a.writeFile(opts.OutputPath, snap, encKey)
		if err != nil {
			opErr = err
			return nil, err
		}
		summary.Key = opts.OutputPath
		summary.SizeBytes = size
		result = &BackupResult{Key: opts.OutputPath, Summary: summary, Failures: snap.Failures}
		a.markBackup(ctx, m.CreatedAt)
		return result, nil
	}

	key := util.ArchiveKey(a.prefix(), archive.FileName(typ, m.CreatedAt))
	if encKey != nil {
		key += cryptoutil.ArchiveSuffix
	}
	if key, err = storage.AvailableKey(ctx, a.Storage, key, a.now()); err != nil {
		opErr = err
		return nil, err
	}

	err = util.Retry(ctx, a.Cfg.Backup.RetryCount+1, a.Cfg.Backup.RetryBackoff, func(attempt int) error {
		err := a.upload(ctx, key, snap, encKey)
		if err != nil {
			a.Log.Warn().Err(err).Str("key", key).Int("attempt", attempt).Msg("archive upload failed")
		}
		return err
	})
	if err != nil {
		opErr = fmt.Errorf("upload %s: %w", key, err)
		return nil, opErr
	}

	stat, err := a.Storage.Stat(ctx, key)
	if err != nil {
		opErr = err
		return nil, err
	}
	summary.Key = key
	summary.SizeBytes = stat.Size
	if err := storage.WriteSummary(ctx, a.Storage, summary); err != nil {
		a.Log.Warn().Err(err).Str("key", key).Msg("failed to write summary")
	}
	result = &BackupResult{Key: key, Summary: summary, Failures: snap.Failures}

	a.markBackup(ctx, m.CreatedAt)
	result.Pruned = a.applyRetention(ctx)

	a.Log.Info().
		Str("key", key).
		Str("type", string(typ)).
		Int64("size", stat.Size).
		Int("failures", len(snap.Failures)).
		Msg("backup stored")
	return result, nil
}

func (a *App) writeArchive(w io.Writer, snap *snapshot.Snapshot, encKey []byte) error {
	opts := archive.Options{Compression: a.Cfg.Backup.Compression, Level: a.Cfg.Backup.Level}
	if encKey == nil {
		return archive.Encode(w, snap.Manifest, snap.Blobs, opts)
	}
	enc, err := cryptoutil.EncryptWriter(w, encKey)
	if err != nil {
		return err
	}
	if err := archive.Encode(enc, snap.Manifest, snap.Blobs, opts); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// upload streams the encoded archive into the repository. The snapshot stays
// in memory, so a retry simply encodes it again.
func (a *App) upload(ctx context.Context, key string, snap *snapshot.Snapshot, encKey []byte) error {
	pipeReader, pipeWriter := io.Pipe()
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer pipeReader.Close()
		return a.Storage.Put(egCtx, key, pipeReader, -1, map[string]string{"shopbk-backup": "true"})
	})
	eg.Go(func() error {
		err := a.writeArchive(pipeWriter, snap, encKey)
		_ = pipeWriter.CloseWithError(err)
		return err
	})
	return eg.Wait()
}

func (a *App) writeFile(path string, snap *snapshot.Snapshot, encKey []byte) (int64, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	if err := a.writeArchive(file, snap, encKey); err != nil {
		file.Close()
		_ = os.Remove(path)
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (a *App) markBackup(ctx context.Context, at time.Time) {
	if a.Settings == nil {
		return
	}
	if err := a.Settings.MarkBackup(ctx, at); err != nil {
		a.Log.Warn().Err(err).Msg("failed to record last backup time")
	}
}

// applyRetention prunes old archives according to the stored retainCount.
// Failures are logged; the new archive is already safe at this point.
func (a *App) applyRetention(ctx context.Context) []storage.Summary {
	if a.Settings == nil {
		return nil
	}
	st, err := a.Settings.Load(ctx)
	if err != nil {
		a.Log.Warn().Err(err).Msg("skipping retention, settings unavailable")
		return nil
	}
	removed, err := storage.Prune(ctx, a.Storage, a.prefix(), st.RetainCount)
	if err != nil {
		a.Log.Warn().Err(err).Msg("retention failed")
		return nil
	}
	for _, s := range removed {
		a.Log.Info().Str("key", s.Key).Msg("pruned old backup")
	}
	return removed
}
