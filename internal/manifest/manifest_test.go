package manifest

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rowjay/shop-backup/internal/schema"
)

func TestTablesKeepOrderAndNumbers(t *testing.T) {
	m := New(schema.Full, time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC))
	m.Tables.Set("zebra", []Row{{"id": 1}})
	m.Tables.Set("apple", nil)
	m.Tables.Set("mango", []Row{{"id": "A", "price": 12.5, "meta": map[string]any{"x": true}}})

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"tables":{"zebra":[{"id":1}],"apple":[],"mango"`) {
		t.Fatalf("unexpected encoding: %s", data)
	}

	var back Manifest
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := back.Tables.Names(); !reflect.DeepEqual(got, []string{"zebra", "apple", "mango"}) {
		t.Fatalf("order lost: %v", got)
	}
	rows, _ := back.Tables.Get("zebra")
	if n, ok := rows[0]["id"].(json.Number); !ok || n.String() != "1" {
		t.Fatalf("expected json.Number 1, got %#v", rows[0]["id"])
	}
	rows, _ = back.Tables.Get("mango")
	meta, ok := rows[0]["meta"].(map[string]any)
	if !ok || meta["x"] != true {
		t.Fatalf("nested value lost: %#v", rows[0]["meta"])
	}
	if back.Tables.RowCount() != 2 {
		t.Fatalf("row count = %d", back.Tables.RowCount())
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Manifest { return New(schema.DataOnly, time.Now()) }

	cases := []struct {
		name   string
		mutate func(m *Manifest)
		want   error
	}{
		{"ok", func(m *Manifest) {}, nil},
		{"future version", func(m *Manifest) { m.Version = "99.0" }, ErrUnsupportedVersion},
		{"no version", func(m *Manifest) { m.Version = "" }, ErrInvalidManifest},
		{"no tables", func(m *Manifest) { m.Tables = nil }, ErrInvalidManifest},
		{"bad type", func(m *Manifest) { m.Type = "partial" }, ErrInvalidManifest},
		{"no createdAt", func(m *Manifest) { m.CreatedAt = time.Time{} }, ErrInvalidManifest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := valid()
			tc.mutate(m)
			err := m.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestUnmarshalRejectsTablesArray(t *testing.T) {
	var m Manifest
	err := json.Unmarshal([]byte(`{"version":"2.0","type":"full","tables":[]}`), &m)
	if err == nil {
		t.Fatalf("expected error for array tables")
	}
}

func TestNullTablesFailsValidation(t *testing.T) {
	var m Manifest
	if err := json.Unmarshal([]byte(`{"version":"2.0","type":"full","createdAt":"2026-01-01T00:00:00Z","tables":null}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := m.Validate(); !errors.Is(err, ErrInvalidManifest) {
		t.Fatalf("expected invalid manifest, got %v", err)
	}
}

func TestEntryName(t *testing.T) {
	if got := EntryName("product-images", "/u1/o2/a.png"); got != "storage/product-images/u1/o2/a.png" {
		t.Fatalf("unexpected entry name %s", got)
	}
	m := New(schema.Full, time.Now())
	e := m.AddFile("invoices", "2026/inv.pdf")
	if e.ArchiveEntryName != "storage/invoices/2026/inv.pdf" || len(m.Files) != 1 {
		t.Fatalf("unexpected file entry %+v", e)
	}
}
