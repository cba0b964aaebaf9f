// Package restore replays a decoded archive into the live database and object
// storage. Configuration tables are replaced, everything else is merged by key.
package restore

import (
	"context"
	"errors"
	"fmt"

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

var ErrUnknownBucket = errors.New("bucket is not part of the schema")

type Engine struct {
	DB       db.Store
	Objects  objstore.Store
	Registry *schema.Registry
	Log      zerolog.Logger

	// Parallelism bounds concurrent object uploads.
	Parallelism int
}

type Options struct {
	// Tables restricts the run to the named tables. Empty means all.
	Tables    []string
	SkipFiles bool
	DryRun    bool
}

type Report struct {
	TablesRestored int             `json:"tablesRestored"`
	TablesTotal    int             `json:"tablesTotal"`
	RowsRestored   int             `json:"rowsRestored"`
	FilesRestored  int             `json:"filesRestored"`
	FilesTotal     int             `json:"filesTotal"`
	DryRun         bool            `json:"dryRun,omitempty"`
	Failures       report.Failures `json:"errors"`
}

func (r *Report) Summary() string {
	s := fmt.Sprintf("restored %d/%d tables (%d rows), %d/%d files",
		r.TablesRestored, r.TablesTotal, r.RowsRestored, r.FilesRestored, r.FilesTotal)
	if r.DryRun {
		s = "dry run: " + s
	}
	if n := len(r.Failures); n > 0 {
		s += fmt.Sprintf(", %d error(s)", n)
	}
	return s
}

// Restore validates m and then applies it. Validation problems and an
// unreachable database are returned before anything is written. After that
// every table and file is attempted independently and failures end up in the
// report. On cancellation the partial report is returned with ctx.Err().
func (e *Engine) Restore(ctx context.Context, m *manifest.Manifest, blobs archive.BlobSource, sink progress.Func, opts Options) (*Report, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if e.DB == nil || e.Registry == nil {
		return nil, errors.New("restore engine needs a database and a registry")
	}
	tables, err := selectTables(m, opts.Tables)
	if err != nil {
		return nil, err
	}
	var files []manifest.FileEntry
	if m.Type == schema.Full && !opts.SkipFiles {
		files = m.Files
	}
	if len(files) > 0 && (e.Objects == nil || blobs == nil) {
		return nil, errors.New("archive carries files but no object store or blob source was given")
	}
	if err := e.DB.Ping(ctx); err != nil {
		return nil, err
	}

	rep := &Report{TablesTotal: len(tables), FilesTotal: len(files), DryRun: opts.DryRun}
	tracker := progress.NewTracker(sink, len(tables)+len(files))
	tracker.Report("starting restore")

	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rows, _ := m.Tables.Get(table)
		if err := e.restoreTable(ctx, table, rows, opts.DryRun); err != nil {
			e.Log.Error().Err(err).Str("table", table).Msg("table restore failed")
			rep.Failures.Add(report.KindTable, table, "restore", err)
		} else {
			rep.TablesRestored++
			rep.RowsRestored += len(rows)
		}
		tracker.Step("table " + table)
	}

	if len(files) > 0 {
		if err := e.restoreFiles(ctx, files, blobs, opts.DryRun, rep, tracker); err != nil {
			return rep, err
		}
	}

	tracker.Finish("restore complete")
	e.Log.Info().
		Int("tables", rep.TablesRestored).
		Int("rows", rep.RowsRestored).
		Int("files", rep.FilesRestored).
		Int("failures", len(rep.Failures)).
		Bool("dry_run", opts.DryRun).
		Msg("restore finished")
	return rep, nil
}

func selectTables(m *manifest.Manifest, only []string) ([]string, error) {
	names := m.Tables.Names()
	if len(only) == 0 {
		return names, nil
	}
	want := make(map[string]bool, len(only))
	for _, t := range only {
		if _, ok := m.Tables.Get(t); !ok {
			return nil, fmt.Errorf("table %q is not in the archive", t)
		}
		want[t] = true
	}
	var out []string
	for _, n := range names {
		if want[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

func (e *Engine) restoreTable(ctx context.Context, table string, rows []manifest.Row, dryRun bool) error {
	if len(rows) == 0 {
		return nil
	}
	class := e.Registry.Classify(table)
	key := e.Registry.KeyFor(table)
	log := e.Log.With().Str("table", table).Str("class", class.String()).Int("rows", len(rows)).Logger()
	if !e.Registry.Known(table) {
		log.Warn().Msg("table not in schema; merging as transactional")
	}
	if dryRun {
		log.Info().Msg("dry run: would restore")
		return nil
	}

	if class == schema.Configuration {
		if r, ok := e.DB.(db.Replacer); ok {
			return r.ReplaceAll(ctx, table, key, rows)
		}
		if err := e.DB.DeleteAll(ctx, table); err != nil {
			return err
		}
	}
	if err := e.DB.Upsert(ctx, table, key, rows); err != nil {
		return err
	}
	log.Debug().Msg("table restored")
	return nil
}

type fileResult struct {
	err  error
	op   string
	done bool
}

func (e *Engine) restoreFiles(ctx context.Context, files []manifest.FileEntry, blobs archive.BlobSource, dryRun bool, rep *Report, tracker *progress.Tracker) error {
	limit := e.Parallelism
	if limit <= 0 {
		limit = defaultParallelism
	}
	known := map[string]bool{}
	for _, b := range e.Registry.Buckets() {
		known[b] = true
	}

	results := make([]fileResult, len(files))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, f := range files {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			defer tracker.Step("file " + f.Bucket + "/" + f.Path)
			if !known[f.Bucket] {
				results[i] = fileResult{err: fmt.Errorf("%w: %s", ErrUnknownBucket, f.Bucket), op: "upload", done: true}
				return nil
			}
			data, err := blobs.Blob(f.ArchiveEntryName)
			if err != nil {
				results[i] = fileResult{err: err, op: "lookup", done: true}
				return nil
			}
			if !dryRun {
				err = e.Objects.Upload(ctx, f.Bucket, f.Path, data)
			}
			results[i] = fileResult{err: err, op: "upload", done: true}
			return nil
		})
	}
	_ = g.Wait()

	for i, f := range files {
		res := results[i]
		if !res.done {
			continue
		}
		if res.err != nil {
			e.Log.Error().Err(res.err).Str("bucket", f.Bucket).Str("path", f.Path).Msg("file restore failed")
			rep.Failures.Add(report.KindFile, f.Bucket+"/"+f.Path, res.op, res.err)
			continue
		}
		rep.FilesRestored++
	}
	return ctx.Err()
}
