package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rowjay/shop-backup/internal/lock"
	"github.com/rowjay/shop-backup/internal/logging"
	"github.com/rowjay/shop-backup/internal/manifest"
	"github.com/rowjay/shop-backup/internal/notify"
	"github.com/rowjay/shop-backup/internal/restore"
)

type RestoreOptions struct {
	Key       string
	InputPath string
	// Tables and DryRun fall back to the restore section of the config.
	Tables    []string
	DryRun    bool
	SkipFiles bool
}

func (a *App) Restore(ctx context.Context, opts RestoreOptions) (*restore.Report, error) {
	start := time.Now()
	source := opts.Key
	if opts.InputPath != "" {
		source = opts.InputPath
	}

	var opErr error
	var rep *restore.Report
	defer func() {
		event := notify.Event{
			Type:      "restore",
			Key:       source,
			StartedAt: start,
			EndedAt:   time.Now(),
			Duration:  time.Since(start).Round(time.Millisecond).String(),
		}
		failures := 0
		if rep != nil {
			failures = len(rep.Failures)
			event.Message = rep.Summary()
			for _, f := range rep.Failures {
				event.Failures = append(event.Failures, f.Error())
			}
		}
		event.Status = notify.Status(opErr, failures)
		if opErr != nil {
			event.Error = opErr.Error()
			if event.Message == "" {
				event.Message = opErr.Error()
			}
		}
		a.notify(event)
	}()

	guard, err := lock.Acquire(a.Cfg.Global.LockFile)
	if err != nil {
		opErr = err
		return nil, err
	}
	defer guard.Release()

	arc, cleanup, err := a.openArchive(ctx, opts.Key, opts.InputPath)
	if err != nil {
		opErr = err
		return nil, err
	}
	defer cleanup()

	tables := opts.Tables
	if len(tables) == 0 {
		tables = a.Cfg.Restore.Tables
	}
	engine := &restore.Engine{
		DB:          a.DB,
		Objects:     a.Objects,
		Registry:    a.Registry,
		Log:         logging.Component(a.Log, "restore"),
		Parallelism: a.Cfg.Restore.Parallelism,
	}
	rep, err = engine.Restore(ctx, arc.Manifest, arc, a.sink(), restore.Options{
		Tables:    tables,
		SkipFiles: opts.SkipFiles,
		DryRun:    opts.DryRun || a.Cfg.Restore.DryRun,
	})
	if err != nil {
		opErr = err
		return rep, err
	}
	a.Log.Info().Str("source", source).Msg(rep.Summary())
	return rep, nil
}

// Inspection describes an archive without applying it.
type Inspection struct {
	Source   string
	Manifest *manifest.Manifest
	// Missing lists file entries the manifest names but the zip lacks.
	Missing []string
}

// Validate opens an archive and checks its manifest. Missing file entries
// are reported, not treated as errors, since restore tolerates them too.
func (a *App) Validate(ctx context.Context, key, inputPath string) (*Inspection, error) {
	arc, cleanup, err := a.openArchive(ctx, key, inputPath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	source := key
	if inputPath != "" {
		source = inputPath
	}
	if err := arc.Manifest.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	ins := &Inspection{Source: source, Manifest: arc.Manifest}
	for _, f := range arc.Manifest.Files {
		if !arc.Has(f.ArchiveEntryName) {
			ins.Missing = append(ins.Missing, f.ArchiveEntryName)
		}
	}
	return ins, nil
}
