package objstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func TestLocalUploadListDownload(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "invoices"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	l := NewLocal(root)

	ok, err := l.BucketExists(ctx, "invoices")
	if err != nil || !ok {
		t.Fatalf("bucket should exist: %v %v", ok, err)
	}
	ok, err = l.BucketExists(ctx, "nope")
	if err != nil || ok {
		t.Fatalf("bucket should not exist: %v %v", ok, err)
	}

	if err := l.Upload(ctx, "invoices", "2026/10/inv-1.pdf", []byte("%PDF-1.4 one")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := l.Upload(ctx, "invoices", "2026/10/inv-1.pdf", []byte("%PDF-1.4 two")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := l.Upload(ctx, "invoices", "readme.txt", []byte("hi")); err != nil {
		t.Fatalf("upload: %v", err)
	}

	children, err := l.ListChildren(ctx, "invoices", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(children) != 2 || !children[0].IsFolder || children[0].Path != "2026" || children[1].Path != "readme.txt" {
		t.Fatalf("unexpected children: %+v", children)
	}

	paths, failures := Walk(ctx, l, "invoices", "", zerolog.Nop())
	if len(failures) != 0 || !reflect.DeepEqual(paths, []string{"2026/10/inv-1.pdf", "readme.txt"}) {
		t.Fatalf("walk: %v %v", paths, failures)
	}

	data, err := l.Download(ctx, "invoices", "2026/10/inv-1.pdf")
	if err != nil || string(data) != "%PDF-1.4 two" {
		t.Fatalf("download: %q %v", data, err)
	}
	if _, err := l.Download(ctx, "invoices", "missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	l := NewLocal(t.TempDir())
	ctx := context.Background()
	if err := l.Upload(ctx, "invoices", "../../etc/passwd", []byte("x")); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected invalid path, got %v", err)
	}
	if _, err := l.ListChildren(ctx, "../up", ""); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected invalid bucket, got %v", err)
	}
}

func TestMemoryDetectsContentType(t *testing.T) {
	m := NewMemory("product-images")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if err := m.Upload(context.Background(), "product-images", "p/1.png", png); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if got := m.ContentType("product-images", "p/1.png"); got != "image/png" {
		t.Fatalf("content type = %q", got)
	}
}
