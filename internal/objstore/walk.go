package objstore

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rowjay/shop-backup/internal/report"
)

// errNoProgress marks a folder whose path does not extend its parent's, which
// would make the walk list the same prefix again.
var errNoProgress = errors.New("folder does not extend its parent prefix")

// Walk returns the paths of every file below prefix, descending into folders
// one listing at a time. A failed listing is logged and recorded, and the walk
// carries on with the remaining branches.
func Walk(ctx context.Context, l Lister, bucket, prefix string, log zerolog.Logger) ([]string, report.Failures) {
	w := walker{lister: l, bucket: bucket, log: log}
	w.walk(ctx, prefix)
	return w.paths, w.failures
}

type walker struct {
	lister   Lister
	bucket   string
	log      zerolog.Logger
	paths    []string
	failures report.Failures
}

func (w *walker) walk(ctx context.Context, prefix string) {
	if err := ctx.Err(); err != nil {
		return
	}
	children, err := w.lister.ListChildren(ctx, w.bucket, prefix)
	if err != nil {
		w.log.Warn().Err(err).Str("bucket", w.bucket).Str("prefix", prefix).Msg("listing failed, skipping branch")
		w.failures.Add(report.KindFile, w.bucket+"/"+prefix, "list", err)
		return
	}
	for _, child := range children {
		if child.IsFolder {
			if len(child.Path) <= len(prefix) || !strings.HasPrefix(child.Path, prefix) {
				w.log.Warn().Str("bucket", w.bucket).Str("prefix", prefix).Str("folder", child.Path).Msg("folder does not descend, skipping")
				w.failures.Add(report.KindFile, w.bucket+"/"+child.Path, "list", errNoProgress)
				continue
			}
			w.walk(ctx, child.Path)
			continue
		}
		w.paths = append(w.paths, child.Path)
	}
}
