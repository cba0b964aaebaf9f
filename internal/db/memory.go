package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/rowjay/shop-backup/internal/manifest"
)

var ErrUnavailable = errors.New("database unavailable")

// MemoryStore is an in-process Store. Values are normalized the same way
// SQLStore binds them, so json.Number rows read back as int64 or float64.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]manifest.Row
	down   bool
}

func NewMemory(tables ...string) *MemoryStore {
	m := &MemoryStore{tables: map[string][]manifest.Row{}}
	for _, t := range tables {
		m.tables[t] = nil
	}
	return m
}

// SetDown makes every call fail with ErrUnavailable.
func (m *MemoryStore) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

// Rows returns a copy of the table's rows in insertion order.
func (m *MemoryStore) Rows(table string) []manifest.Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]manifest.Row, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		out = append(out, copyRow(r))
	}
	return out
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.down {
		return ErrUnavailable
	}
	return nil
}

func (m *MemoryStore) SelectAll(ctx context.Context, table string) ([]manifest.Row, error) {
	if err := m.check(ctx, table); err != nil {
		return nil, err
	}
	return m.Rows(table), nil
}

func (m *MemoryStore) DeleteAll(ctx context.Context, table string) error {
	if err := m.check(ctx, table); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = nil
	return nil
}

func (m *MemoryStore) Upsert(ctx context.Context, table string, key []string, rows []manifest.Row) error {
	if err := m.check(ctx, table); err != nil {
		return err
	}
	normalized, err := normalizeRows(rows, key)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = merge(m.tables[table], normalized, key)
	return nil
}

func (m *MemoryStore) ReplaceAll(ctx context.Context, table string, key []string, rows []manifest.Row) error {
	if err := m.check(ctx, table); err != nil {
		return err
	}
	normalized, err := normalizeRows(rows, key)
	if err != nil {
		return fmt.Errorf("replace %s: %w", table, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = merge(nil, normalized, key)
	return nil
}

func (m *MemoryStore) check(ctx context.Context, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidIdentifier(table); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.down {
		return ErrUnavailable
	}
	if _, ok := m.tables[table]; !ok {
		return fmt.Errorf("no such table: %s", table)
	}
	return nil
}

func normalizeRows(rows []manifest.Row, key []string) ([]manifest.Row, error) {
	if len(key) == 0 {
		return nil, errors.New("no key columns")
	}
	out := make([]manifest.Row, 0, len(rows))
	for i, r := range rows {
		if _, err := rowColumns(r, key); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		n := make(manifest.Row, len(r))
		for c, v := range r {
			bv, err := bindValue(v)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, c, err)
			}
			n[c] = bv
		}
		out = append(out, n)
	}
	return out, nil
}

func merge(existing, incoming []manifest.Row, key []string) []manifest.Row {
	index := make(map[string]int, len(existing))
	for i, r := range existing {
		index[keyOf(r, key)] = i
	}
	for _, r := range incoming {
		k := keyOf(r, key)
		if i, ok := index[k]; ok {
			for c, v := range r {
				existing[i][c] = v
			}
			continue
		}
		index[k] = len(existing)
		existing = append(existing, copyRow(r))
	}
	return existing
}

func keyOf(r manifest.Row, key []string) string {
	parts := make([]string, len(key))
	for i, k := range key {
		v := keyValue(r[k])
		parts[i] = fmt.Sprintf("%T:%v", v, v)
	}
	return strings.Join(parts, "\x00")
}

// keyValue widens integer and float kinds so 1 and int64(1) match the way a
// SQL column would, while 1 and "1" stay distinct.
func keyValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint:
		if uint64(x) <= math.MaxInt64 {
			return int64(x)
		}
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	}
	return v
}

func copyRow(r manifest.Row) manifest.Row {
	out := make(manifest.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
