// Package settings persists the backup preferences record that sits next to
// the shop data.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rowjay/shop-backup/internal/db"
	"github.com/rowjay/shop-backup/internal/manifest"
)

const (
	Table    = "backup_settings"
	recordID = 1
)

var frequencies = []string{"hourly", "daily", "weekly", "monthly"}

type Settings struct {
	AutoBackupEnabled bool       `json:"autoBackupEnabled"`
	Frequency         string     `json:"frequency"`
	LastBackupAt      *time.Time `json:"lastBackupAt,omitempty"`
	RetainCount       int        `json:"retainCount"`
}

func Defaults() Settings {
	return Settings{Frequency: "daily"}
}

func (s Settings) Validate() error {
	if s.RetainCount < 0 {
		return fmt.Errorf("retainCount must not be negative")
	}
	for _, f := range frequencies {
		if s.Frequency == f {
			return nil
		}
	}
	return fmt.Errorf("unknown frequency %q (want one of %s)", s.Frequency, strings.Join(frequencies, ", "))
}

type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
	MarkBackup(ctx context.Context, at time.Time) error
}

// SQLStore keeps the single settings row in the backup_settings table.
type SQLStore struct {
	DB db.Store
}

func NewSQLStore(store db.Store) *SQLStore {
	return &SQLStore{DB: store}
}

func (s *SQLStore) Load(ctx context.Context) (Settings, error) {
	rows, err := s.DB.SelectAll(ctx, Table)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	for _, r := range rows {
		if id, ok := asInt(r["id"]); ok && id == recordID {
			return fromRow(r)
		}
	}
	return Defaults(), nil
}

func (s *SQLStore) Save(ctx context.Context, st Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if err := s.DB.Upsert(ctx, Table, []string{"id"}, []manifest.Row{toRow(st)}); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// MarkBackup records a successful backup time and leaves everything else alone.
func (s *SQLStore) MarkBackup(ctx context.Context, at time.Time) error {
	st, err := s.Load(ctx)
	if err != nil {
		return err
	}
	at = at.UTC()
	st.LastBackupAt = &at
	return s.Save(ctx, st)
}

func toRow(s Settings) manifest.Row {
	row := manifest.Row{
		"id":                  recordID,
		"auto_backup_enabled": s.AutoBackupEnabled,
		"frequency":           s.Frequency,
		"retain_count":        s.RetainCount,
		"last_backup_at":      nil,
	}
	if s.LastBackupAt != nil {
		row["last_backup_at"] = s.LastBackupAt.UTC().Format(time.RFC3339)
	}
	return row
}

func fromRow(r manifest.Row) (Settings, error) {
	st := Defaults()
	st.AutoBackupEnabled = asBool(r["auto_backup_enabled"])
	if f, ok := r["frequency"].(string); ok && f != "" {
		st.Frequency = f
	}
	if n, ok := asInt(r["retain_count"]); ok {
		st.RetainCount = int(n)
	}
	switch v := r["last_backup_at"].(type) {
	case nil:
	case time.Time:
		t := v.UTC()
		st.LastBackupAt = &t
	case string:
		if v == "" {
			break
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return st, fmt.Errorf("settings last_backup_at %q: %w", v, err)
		}
		st.LastBackupAt = &t
	default:
		return st, fmt.Errorf("settings last_backup_at has type %T", v)
	}
	return st, nil
}

// Drivers disagree on how booleans and integers come back: sqlite yields
// int64, postgres bool, mysql text.
func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	}
	return false
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	}
	return 0, false
}
