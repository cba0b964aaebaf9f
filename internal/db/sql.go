package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rowjay/shop-backup/internal/manifest"
)

// SQLStore implements Store and Replacer over database/sql.
type SQLStore struct {
	conn    *sql.DB
	dialect Dialect
}

func New(conn *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{conn: conn, dialect: dialect}
}

func (s *SQLStore) DB() *sql.DB { return s.conn }

func (s *SQLStore) Dialect() Dialect { return s.dialect }

func (s *SQLStore) Close() error { return s.conn.Close() }

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%s unreachable: %w", s.dialect.Name, err)
	}
	return nil
}

func (s *SQLStore) SelectAll(ctx context.Context, table string) ([]manifest.Row, error) {
	if err := ValidIdentifier(table); err != nil {
		return nil, err
	}
	rows, err := s.conn.QueryContext(ctx, s.dialect.selectAllSQL(table))
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []manifest.Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		row := make(manifest.Row, len(cols))
		for i, c := range cols {
			row[c] = scanValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return out, nil
}

func (s *SQLStore) DeleteAll(ctx context.Context, table string) error {
	if err := ValidIdentifier(table); err != nil {
		return err
	}
	if _, err := s.conn.ExecContext(ctx, s.dialect.deleteAllSQL(table)); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

// Upsert merges rows into table by key inside one transaction, so a failing
// row leaves the table as it was.
func (s *SQLStore) Upsert(ctx context.Context, table string, key []string, rows []manifest.Row) error {
	if len(rows) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.upsertTx(ctx, tx, table, key, rows)
	})
}

// ReplaceAll wipes table and inserts rows atomically.
func (s *SQLStore) ReplaceAll(ctx context.Context, table string, key []string, rows []manifest.Row) error {
	if err := ValidIdentifier(table); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.dialect.deleteAllSQL(table)); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
		if len(rows) == 0 {
			return nil
		}
		return s.upsertTx(ctx, tx, table, key, rows)
	})
}

func (s *SQLStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) upsertTx(ctx context.Context, tx *sql.Tx, table string, key []string, rows []manifest.Row) error {
	if err := ValidIdentifier(table); err != nil {
		return err
	}
	if len(key) == 0 {
		return fmt.Errorf("upsert %s: no key columns", table)
	}
	for _, k := range key {
		if err := ValidIdentifier(k); err != nil {
			return err
		}
	}

	// Rows of one table normally share a column set; statements are prepared
	// once per distinct set.
	stmts := map[string]*sql.Stmt{}
	defer func() {
		for _, st := range stmts {
			_ = st.Close()
		}
	}()

	for i, row := range rows {
		cols, err := rowColumns(row, key)
		if err != nil {
			return fmt.Errorf("upsert %s row %d: %w", table, i, err)
		}
		sig := strings.Join(cols, ",")
		st, ok := stmts[sig]
		if !ok {
			st, err = tx.PrepareContext(ctx, s.dialect.upsertSQL(table, cols, key))
			if err != nil {
				return fmt.Errorf("prepare upsert %s: %w", table, err)
			}
			stmts[sig] = st
		}
		args := make([]any, len(cols))
		for j, c := range cols {
			if args[j], err = bindValue(row[c]); err != nil {
				return fmt.Errorf("upsert %s row %d column %s: %w", table, i, c, err)
			}
		}
		if _, err := st.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("upsert %s row %d: %w", table, i, err)
		}
	}
	return nil
}

// rowColumns returns the row's columns sorted, after checking every name and
// that all key columns are present.
func rowColumns(row manifest.Row, key []string) ([]string, error) {
	cols := make([]string, 0, len(row))
	for c := range row {
		if err := ValidIdentifier(c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, k := range key {
		if _, ok := row[k]; !ok {
			return nil, fmt.Errorf("missing key column %q", k)
		}
	}
	return cols, nil
}

// bindValue converts a value decoded from a manifest into something every
// driver accepts.
func bindValue(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		if f, err := x.Float64(); err == nil {
			return f, nil
		}
		return x.String(), nil
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return v, nil
	}
}

func scanValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}
