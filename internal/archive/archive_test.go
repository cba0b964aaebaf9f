package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/rowjay/shop-backup/internal/manifest"
	"github.com/rowjay/shop-backup/internal/schema"
)

func sample() (*manifest.Manifest, MapBlobs) {
	m := manifest.New(schema.Full, time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC))
	m.Tables.Set("colors", []manifest.Row{{"id": json.Number("1"), "name": "Red"}})
	m.Tables.Set("orders", nil)
	e := m.AddFile("product-images", "u1/a.jpg")
	return m, MapBlobs{e.ArchiveEntryName: []byte("jpeg-bytes")}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, kind := range []string{"none", "deflate", "zstd"} {
		t.Run(kind, func(t *testing.T) {
			m, blobs := sample()
			var buf bytes.Buffer
			if err := Encode(&buf, m, blobs, Options{Compression: kind, Level: 9}); err != nil {
				t.Fatalf("encode: %v", err)
			}
			a, err := DecodeBytes(buf.Bytes())
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if err := a.Manifest.Validate(); err != nil {
				t.Fatalf("validate: %v", err)
			}
			if got := a.Manifest.Tables.Names(); len(got) != 2 || got[0] != "colors" || got[1] != "orders" {
				t.Fatalf("table order: %v", got)
			}
			if len(a.Manifest.Files) != 1 || a.Manifest.Files[0].ArchiveEntryName != "storage/product-images/u1/a.jpg" {
				t.Fatalf("files: %+v", a.Manifest.Files)
			}
			data, err := a.Blob("storage/product-images/u1/a.jpg")
			if err != nil || string(data) != "jpeg-bytes" {
				t.Fatalf("blob: %q %v", data, err)
			}
		})
	}
}

func TestManifestIsFirstEntry(t *testing.T) {
	m, blobs := sample()
	var buf bytes.Buffer
	if err := Encode(&buf, m, blobs, Options{}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	if zr.File[0].Name != ManifestName {
		t.Fatalf("first entry %q", zr.File[0].Name)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := DecodeBytes([]byte("definitely not a zip")); !errors.Is(err, ErrNotArchive) {
		t.Fatalf("expected ErrNotArchive, got %v", err)
	}

	var noManifest bytes.Buffer
	zw := zip.NewWriter(&noManifest)
	w, _ := zw.Create("storage/x/y")
	_, _ = w.Write([]byte("y"))
	_ = zw.Close()
	if _, err := DecodeBytes(noManifest.Bytes()); !errors.Is(err, ErrManifestMissing) {
		t.Fatalf("expected ErrManifestMissing, got %v", err)
	}

	var corrupt bytes.Buffer
	zw = zip.NewWriter(&corrupt)
	w, _ = zw.Create(ManifestName)
	_, _ = w.Write([]byte("{not json"))
	_ = zw.Close()
	if _, err := DecodeBytes(corrupt.Bytes()); !errors.Is(err, ErrManifestCorrupt) {
		t.Fatalf("expected ErrManifestCorrupt, got %v", err)
	}
}

func TestBlobMissingEntry(t *testing.T) {
	m, blobs := sample()
	var buf bytes.Buffer
	if err := Encode(&buf, m, blobs, Options{}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	a, err := DecodeBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := a.Blob("storage/product-images/gone.jpg"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
	if _, err := a.Blob(ManifestName); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("manifest must not be served as a blob, got %v", err)
	}
}

func TestEncodeRejectsBadEntries(t *testing.T) {
	m, _ := sample()
	m.Files = []manifest.FileEntry{{Bucket: "b", Path: "../x", ArchiveEntryName: "storage/../x"}}
	if err := Encode(&bytes.Buffer{}, m, MapBlobs{}, Options{}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}

	m, _ = sample()
	if err := Encode(&bytes.Buffer{}, m, MapBlobs{}, Options{}); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}

	m, blobs := sample()
	if err := Encode(&bytes.Buffer{}, m, blobs, Options{Compression: "brotli"}); err == nil {
		t.Fatal("expected unsupported compression error")
	}
}

func TestFileName(t *testing.T) {
	at := time.Date(2026, 10, 17, 23, 30, 0, 0, time.UTC)
	if got := FileName(schema.Full, at); got != "backup-full-2026-10-17.zip" {
		t.Fatalf("got %s", got)
	}
	if got := FileName(schema.DataOnly, at); got != "backup-data-2026-10-17.zip" {
		t.Fatalf("got %s", got)
	}
}
