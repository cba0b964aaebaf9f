package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Dialect holds the per-engine SQL differences.
type Dialect struct {
	Name   string
	Driver string

	quote       func(string) string
	placeholder func(n int) string
	upsert      func(d Dialect, table string, cols, key []string) string
}

var (
	SQLite = Dialect{
		Name:        "sqlite",
		Driver:      "sqlite",
		quote:       doubleQuote,
		placeholder: func(int) string { return "?" },
		upsert:      onConflictUpsert,
	}
	Postgres = Dialect{
		Name:        "postgres",
		Driver:      "postgres",
		quote:       pq.QuoteIdentifier,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		upsert:      onConflictUpsert,
	}
	MySQL = Dialect{
		Name:        "mysql",
		Driver:      "mysql",
		quote:       func(s string) string { return "`" + s + "`" },
		placeholder: func(int) string { return "?" },
		upsert:      duplicateKeyUpsert,
	}
)

func DialectFor(dbType string) (Dialect, error) {
	switch dbType {
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	case "postgres", "postgresql":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database type: %s", dbType)
	}
}

func (d Dialect) Quote(ident string) string { return d.quote(ident) }

func (d Dialect) selectAllSQL(table string) string {
	return "SELECT * FROM " + d.Quote(table)
}

func (d Dialect) deleteAllSQL(table string) string {
	return "DELETE FROM " + d.Quote(table)
}

func (d Dialect) upsertSQL(table string, cols, key []string) string {
	return d.upsert(d, table, cols, key)
}

func (d Dialect) insertPrefix(table string, cols []string) string {
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.Quote(c)
		marks[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

func onConflictUpsert(d Dialect, table string, cols, key []string) string {
	conflict := make([]string, len(key))
	for i, k := range key {
		conflict[i] = d.Quote(k)
	}
	var sets []string
	for _, c := range nonKey(cols, key) {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", d.Quote(c), d.Quote(c)))
	}
	stmt := d.insertPrefix(table, cols) + " ON CONFLICT (" + strings.Join(conflict, ", ") + ")"
	if len(sets) == 0 {
		return stmt + " DO NOTHING"
	}
	return stmt + " DO UPDATE SET " + strings.Join(sets, ", ")
}

func duplicateKeyUpsert(d Dialect, table string, cols, key []string) string {
	var sets []string
	for _, c := range nonKey(cols, key) {
		sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", d.Quote(c), d.Quote(c)))
	}
	if len(sets) == 0 {
		// no-op assignment keeps the statement idempotent for key-only rows
		sets = append(sets, fmt.Sprintf("%s = %s", d.Quote(key[0]), d.Quote(key[0])))
	}
	return d.insertPrefix(table, cols) + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

func doubleQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func nonKey(cols, key []string) []string {
	isKey := make(map[string]bool, len(key))
	for _, k := range key {
		isKey[k] = true
	}
	var out []string
	for _, c := range cols {
		if !isKey[c] {
			out = append(out, c)
		}
	}
	return out
}
