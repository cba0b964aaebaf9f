package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func put(t *testing.T, st Storage, key, body string) {
	t.Helper()
	if err := st.Put(context.Background(), key, strings.NewReader(body), int64(len(body)), nil); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

func TestLocalPutGetDelete(t *testing.T) {
	ctx := context.Background()
	st := NewLocal(t.TempDir())
	put(t, st, "shop/backup-full-2026-10-17.zip", "zipbytes")

	rc, err := st.Get(ctx, "shop/backup-full-2026-10-17.zip")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "zipbytes" {
		t.Fatalf("got %q", data)
	}

	info, err := st.Stat(ctx, "shop/backup-full-2026-10-17.zip")
	if err != nil || info.Size != 8 || info.IsSummary {
		t.Fatalf("stat: %+v %v", info, err)
	}
	if err := st.Delete(ctx, "shop/backup-full-2026-10-17.zip"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Get(ctx, "shop/backup-full-2026-10-17.zip"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := st.Put(ctx, "../escape.zip", strings.NewReader("x"), 1, nil); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
}

func TestCatalogAndPrune(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	st := NewLocal(root)
	base := time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC)
	keys := []string{
		"shop/backup-full-2026-10-10.zip",
		"shop/backup-full-2026-10-11.zip",
		"shop/backup-data-2026-10-12.zip",
	}
	for i, k := range keys {
		put(t, st, k, "zip")
		if err := WriteSummary(ctx, st, Summary{Key: k, Type: "full", CreatedAt: base.AddDate(0, 0, i), Tables: i}); err != nil {
			t.Fatalf("summary: %v", err)
		}
	}
	// archive without a sidecar is still listed
	put(t, st, "shop/manual.zip.enc", "enc")
	later := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	if err := os.Chtimes(filepath.Join(root, "shop", "manual.zip.enc"), later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	all, err := Catalog(ctx, st, "shop")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("catalog: %+v", all)
	}
	if all[1].Key != "shop/backup-data-2026-10-12.zip" || all[1].Tables != 2 {
		t.Fatalf("expected newest sidecar backup second, got %+v", all[1])
	}
	if all[0].Key != "shop/manual.zip.enc" || !all[0].Encrypted {
		t.Fatalf("expected sidecar-less archive first by mtime, got %+v", all[0])
	}

	removed, err := Prune(ctx, st, "shop", 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed: %+v", removed)
	}
	for _, k := range keys[:2] {
		if ok, _ := st.Exists(ctx, k); ok {
			t.Fatalf("%s should be pruned", k)
		}
		if ok, _ := st.Exists(ctx, SummaryKey(k)); ok {
			t.Fatalf("sidecar of %s should be pruned", k)
		}
	}
	if removed, _ := Prune(ctx, st, "shop", 0); removed != nil {
		t.Fatal("keep=0 must not prune")
	}
}

func TestAvailableKey(t *testing.T) {
	ctx := context.Background()
	st := NewLocal(t.TempDir())
	when := time.Date(2026, 10, 17, 14, 5, 9, 0, time.UTC)

	key, err := AvailableKey(ctx, st, "shop/backup-full-2026-10-17.zip", when)
	if err != nil || key != "shop/backup-full-2026-10-17.zip" {
		t.Fatalf("free key: %s %v", key, err)
	}
	put(t, st, "shop/backup-full-2026-10-17.zip", "zip")
	key, err = AvailableKey(ctx, st, "shop/backup-full-2026-10-17.zip", when)
	if err != nil || key != "shop/backup-full-2026-10-17-140509.zip" {
		t.Fatalf("taken key: %s %v", key, err)
	}
	key, _ = AvailableKey(ctx, st, "shop/backup-full-2026-10-17.zip.enc", when)
	if key != "shop/backup-full-2026-10-17.zip.enc" {
		t.Fatalf("enc key: %s", key)
	}
}
