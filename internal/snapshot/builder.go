// Package snapshot captures table rows and bucket objects into an in-memory
// manifest plus blob map, ready for the archive codec.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rowjay/shop-backup/internal/archive"
	"github.com/rowjay/shop-backup/internal/db"
	"github.com/rowjay/shop-backup/internal/manifest"
	"github.com/rowjay/shop-backup/internal/objstore"
	"github.com/rowjay/shop-backup/internal/progress"
	"github.com/rowjay/shop-backup/internal/report"
	"github.com/rowjay/shop-backup/internal/schema"
)

const defaultParallelism = 4

type Builder struct {
	DB       db.Store
	Objects  objstore.Store
	Registry *schema.Registry
	Log      zerolog.Logger

	// Parallelism bounds concurrent table reads and object downloads.
	Parallelism int
	Generator   string
	Now         func() time.Time
}

type Snapshot struct {
	Manifest *manifest.Manifest
	Blobs    archive.MapBlobs
	Failures report.Failures
}

// Build reads every table selected by typ and, for full backups, every object
// of every bucket. Individual table or object failures are recorded in
// Snapshot.Failures; only an unreachable database or object store is fatal.
// On cancellation the partial snapshot is returned together with ctx.Err().
func (b *Builder) Build(ctx context.Context, typ schema.BackupType, sink progress.Func) (*Snapshot, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("unknown backup type %q", typ)
	}
	if b.DB == nil || b.Registry == nil {
		return nil, errors.New("snapshot builder needs a database and a registry")
	}
	if typ == schema.Full && b.Objects == nil {
		return nil, errors.New("full backup needs an object store")
	}
	if err := b.DB.Ping(ctx); err != nil {
		return nil, err
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	m := manifest.New(typ, now())
	m.Generator = b.Generator
	snap := &Snapshot{Manifest: m, Blobs: archive.MapBlobs{}}

	tables := b.Registry.TablesFor(typ)
	var buckets []string
	if typ == schema.Full {
		buckets = b.Registry.Buckets()
	}
	tracker := progress.NewTracker(sink, len(tables)+len(buckets))
	tracker.Report("starting " + string(typ) + " backup")

	b.readTables(ctx, tables, snap, tracker)
	if err := ctx.Err(); err != nil {
		return snap, err
	}

	for _, bucket := range buckets {
		if err := b.readBucket(ctx, bucket, snap); err != nil {
			return snap, err
		}
		if err := ctx.Err(); err != nil {
			return snap, err
		}
		tracker.Step("bucket " + bucket)
	}

	tracker.Finish("snapshot complete")
	b.Log.Info().
		Str("type", string(typ)).
		Int("tables", m.Tables.Len()).
		Int("rows", m.Tables.RowCount()).
		Int("files", len(m.Files)).
		Int("failures", len(snap.Failures)).
		Msg("snapshot built")
	return snap, nil
}

func (b *Builder) limit() int {
	if b.Parallelism > 0 {
		return b.Parallelism
	}
	return defaultParallelism
}

type tableResult struct {
	rows []manifest.Row
	err  error
	done bool
}

// readTables fetches tables concurrently but records them in registry order.
func (b *Builder) readTables(ctx context.Context, tables []string, snap *Snapshot, tracker *progress.Tracker) {
	results := make([]tableResult, len(tables))
	var g errgroup.Group
	g.SetLimit(b.limit())
	for i, table := range tables {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			rows, err := b.DB.SelectAll(ctx, table)
			results[i] = tableResult{rows: rows, err: err, done: true}
			tracker.Step("table " + table)
			return nil
		})
	}
	_ = g.Wait()

	for i, table := range tables {
		res := results[i]
		if !res.done {
			continue
		}
		if res.err != nil {
			b.Log.Warn().Err(res.err).Str("table", table).Msg("table read failed; storing empty rows")
			snap.Failures.Add(report.KindTable, table, "select", res.err)
			snap.Manifest.Tables.Set(table, nil)
			continue
		}
		snap.Manifest.Tables.Set(table, res.rows)
	}
}

type blobResult struct {
	data []byte
	err  error
	done bool
}

func (b *Builder) readBucket(ctx context.Context, bucket string, snap *Snapshot) error {
	log := b.Log.With().Str("bucket", bucket).Logger()

	exists, err := b.Objects.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("object storage unavailable: %w", err)
	}
	if !exists {
		log.Warn().Msg("bucket missing; skipping")
		snap.Failures.Add(report.KindFile, bucket, "list", objstore.ErrNotFound)
		return nil
	}

	paths, failures := objstore.Walk(ctx, b.Objects, bucket, "", log)
	snap.Failures = append(snap.Failures, failures...)

	results := make([]blobResult, len(paths))
	var g errgroup.Group
	g.SetLimit(b.limit())
	for i, p := range paths {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			data, err := b.Objects.Download(ctx, bucket, p)
			results[i] = blobResult{data: data, err: err, done: true}
			return nil
		})
	}
	_ = g.Wait()

	for i, p := range paths {
		res := results[i]
		if !res.done {
			continue
		}
		if res.err != nil {
			log.Warn().Err(res.err).Str("path", p).Msg("object download failed; skipping")
			snap.Failures.Add(report.KindFile, bucket+"/"+p, "download", res.err)
			continue
		}
		entry := snap.Manifest.AddFile(bucket, p)
		snap.Blobs[entry.ArchiveEntryName] = res.data
	}
	log.Debug().Int("objects", len(paths)).Msg("bucket captured")
	return nil
}
