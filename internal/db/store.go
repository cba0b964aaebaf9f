package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/rowjay/shop-backup/internal/manifest"
)

var ErrInvalidIdentifier = errors.New("invalid sql identifier")

// Store is the relational side of a backup: read whole tables, wipe them and
// merge rows back by key.
type Store interface {
	Ping(ctx context.Context) error
	SelectAll(ctx context.Context, table string) ([]manifest.Row, error)
	DeleteAll(ctx context.Context, table string) error
	Upsert(ctx context.Context, table string, key []string, rows []manifest.Row) error
}

// Replacer is implemented by stores that can wipe and refill a table in one
// transaction. Restore prefers it for configuration tables.
type Replacer interface {
	ReplaceAll(ctx context.Context, table string, key []string, rows []manifest.Row) error
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier rejects anything that is not a plain table or column name.
// Names from archives end up in SQL text, so this runs before every statement.
func ValidIdentifier(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}
