// Package manifest defines the self-describing metadata stored inside every
// backup archive.
package manifest

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rowjay/shop-backup/internal/schema"
)

// Version is the only manifest shape this build understands.
const Version = "2.0"

// StoragePrefix is the archive directory holding object blobs.
const StoragePrefix = "storage"

var (
	ErrUnsupportedVersion = errors.New("unsupported manifest version")
	ErrInvalidManifest    = errors.New("invalid manifest")
)

// Row is one table row. Values are whatever JSON produced: string,
// json.Number, bool, nil, map[string]any or []any.
type Row map[string]any

type FileEntry struct {
	Bucket           string `json:"bucket"`
	Path             string `json:"path"`
	ArchiveEntryName string `json:"archiveEntryName"`
}

type Manifest struct {
	Version   string            `json:"version"`
	ID        string            `json:"id,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	Type      schema.BackupType `json:"type"`
	Generator string            `json:"generator,omitempty"`
	Tables    *Tables           `json:"tables"`
	Files     []FileEntry       `json:"files,omitempty"`
}

// New returns an empty manifest of the current version.
func New(typ schema.BackupType, createdAt time.Time) *Manifest {
	return &Manifest{
		Version:   Version,
		ID:        uuid.NewString(),
		CreatedAt: createdAt.UTC(),
		Type:      typ,
		Tables:    NewTables(),
	}
}

// Validate checks version and mandatory fields. It never looks at row contents
// or at whether file entries exist in the archive.
func (m *Manifest) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: empty", ErrInvalidManifest)
	}
	if m.Version == "" {
		return fmt.Errorf("%w: version missing", ErrInvalidManifest)
	}
	if m.Version != Version {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, m.Version)
	}
	if !m.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidManifest, m.Type)
	}
	if m.Tables == nil {
		return fmt.Errorf("%w: tables missing", ErrInvalidManifest)
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("%w: createdAt missing", ErrInvalidManifest)
	}
	return nil
}

// AddFile records an object that was fetched into the archive and returns its entry.
func (m *Manifest) AddFile(bucket, objectPath string) FileEntry {
	entry := FileEntry{Bucket: bucket, Path: objectPath, ArchiveEntryName: EntryName(bucket, objectPath)}
	m.Files = append(m.Files, entry)
	return entry
}

// EntryName is the archive path of an object: storage/<bucket>/<path>.
func EntryName(bucket, objectPath string) string {
	return path.Join(StoragePrefix, bucket, strings.TrimPrefix(objectPath, "/"))
}
