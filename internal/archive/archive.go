// Package archive reads and writes the backup zip: a manifest.json entry next
// to one storage/<bucket>/<path> entry per captured object.
package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/rowjay/shop-backup/internal/compress"
	"github.com/rowjay/shop-backup/internal/manifest"
	"github.com/rowjay/shop-backup/internal/schema"
)

const ManifestName = "manifest.json"

var (
	ErrNotArchive      = errors.New("not a backup archive")
	ErrManifestMissing = errors.New("archive has no manifest.json")
	ErrManifestCorrupt = errors.New("manifest.json is not valid json")
	ErrEntryNotFound   = errors.New("archive entry not found")
	ErrInvalidEntry    = errors.New("invalid archive entry name")
)

// BlobSource hands out object bytes by archive entry name.
type BlobSource interface {
	Blob(name string) ([]byte, error)
}

// MapBlobs is an in-memory BlobSource.
type MapBlobs map[string][]byte

func (m MapBlobs) Blob(name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	return data, nil
}

type Options struct {
	Compression string
	Level       int
}

// Encode writes m and the blob of every file entry to w. The manifest comes
// first so a truncated archive still identifies itself.
func Encode(w io.Writer, m *manifest.Manifest, blobs BlobSource, opts Options) error {
	if m == nil || m.Tables == nil {
		return fmt.Errorf("%w: nothing to encode", manifest.ErrInvalidManifest)
	}
	method, err := compress.Method(opts.Compression)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(w)
	if err := compress.RegisterWriter(zw, opts.Compression, opts.Level); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeEntry(zw, ManifestName, method, m.CreatedAt, buf.Bytes()); err != nil {
		return err
	}

	for _, f := range m.Files {
		if err := checkEntryName(f.ArchiveEntryName); err != nil {
			return err
		}
		data, err := blobs.Blob(f.ArchiveEntryName)
		if err != nil {
			return err
		}
		if err := writeEntry(zw, f.ArchiveEntryName, method, m.CreatedAt, data); err != nil {
			return err
		}
	}
	return zw.Close()
}

func writeEntry(zw *zip.Writer, name string, method uint16, mod time.Time, data []byte) error {
	header := &zip.FileHeader{Name: name, Method: method}
	if !mod.IsZero() {
		header.Modified = mod
	}
	fw, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}

// checkEntryName only admits clean relative paths below storage/.
func checkEntryName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || path.Clean(name) != name ||
		!strings.HasPrefix(name, manifest.StoragePrefix+"/") {
		return fmt.Errorf("%w: %q", ErrInvalidEntry, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidEntry, name)
		}
	}
	return nil
}

// Archive is a decoded backup. Blobs are read lazily from the zip.
type Archive struct {
	Manifest *manifest.Manifest
	entries  map[string]*zip.File
}

// Decode opens the zip and parses its manifest. The manifest is not
// validated here; callers decide how strict to be.
func Decode(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotArchive, err)
	}
	compress.RegisterReader(zr)

	a := &Archive{entries: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		a.entries[f.Name] = f
	}
	mf, ok := a.entries[ManifestName]
	if !ok {
		return nil, ErrManifestMissing
	}
	raw, err := readEntry(mf)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestCorrupt, err)
	}
	a.Manifest = &m
	return a, nil
}

// DecodeBytes is Decode over an in-memory archive.
func DecodeBytes(data []byte) (*Archive, error) {
	return Decode(bytes.NewReader(data), int64(len(data)))
}

func (a *Archive) Blob(name string) ([]byte, error) {
	f, ok := a.entries[name]
	if !ok || name == ManifestName {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	return readEntry(f)
}

// Has reports whether the zip carries an entry called name.
func (a *Archive) Has(name string) bool {
	_, ok := a.entries[name]
	return ok
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// FileName is the conventional archive name, e.g. backup-full-2026-10-17.zip.
func FileName(typ schema.BackupType, when time.Time) string {
	kind := "full"
	if typ == schema.DataOnly {
		kind = "data"
	}
	return fmt.Sprintf("backup-%s-%s.zip", kind, when.UTC().Format("2006-01-02"))
}
