package db

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowjay/shop-backup/internal/config"
	"github.com/rowjay/shop-backup/internal/manifest"
)

func openMemory(t *testing.T) *SQLStore {
	t.Helper()
	store, err := Open(config.DatabaseConfig{Type: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, Migrate(context.Background(), store, zerolog.Nop()))
	return store
}

func TestUpsertAndSelectRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	rows := []manifest.Row{
		{"id": json.Number("1"), "name": "Red", "hex_code": "#ff0000"},
		{"id": json.Number("2"), "name": "Blue", "hex_code": nil},
	}
	require.NoError(t, store.Upsert(ctx, "colors", []string{"id"}, rows))

	got, err := store.SelectAll(ctx, "colors")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0]["id"])
	assert.Equal(t, "Red", got[0]["name"])
	assert.Nil(t, got[1]["hex_code"])

	// same key merges instead of duplicating
	require.NoError(t, store.Upsert(ctx, "colors", []string{"id"}, []manifest.Row{
		{"id": json.Number("1"), "name": "Crimson", "hex_code": "#dc143c"},
	}))
	got, err = store.SelectAll(ctx, "colors")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Crimson", got[0]["name"])
}

func TestReplaceAllWipesFirst(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	require.NoError(t, store.Upsert(ctx, "sizes", []string{"id"}, []manifest.Row{
		{"id": json.Number("1"), "name": "S"},
		{"id": json.Number("9"), "name": "XXXL"},
	}))
	require.NoError(t, store.ReplaceAll(ctx, "sizes", []string{"id"}, []manifest.Row{
		{"id": json.Number("1"), "name": "Small"},
	}))

	got, err := store.SelectAll(ctx, "sizes")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Small", got[0]["name"])

	require.NoError(t, store.ReplaceAll(ctx, "sizes", []string{"id"}, nil))
	got, err = store.SelectAll(ctx, "sizes")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpsertRollsBackOnBadRow(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	err := store.Upsert(ctx, "colors", []string{"id"}, []manifest.Row{
		{"id": json.Number("1"), "name": "Red"},
		{"name": "no id"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing key column "id"`)

	got, err := store.SelectAll(ctx, "colors")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCompositeKeyAndNestedValues(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	roles := []manifest.Row{{"user_id": "u1", "role": "admin"}}
	require.NoError(t, store.Upsert(ctx, "user_roles", []string{"user_id", "role"}, roles))
	require.NoError(t, store.Upsert(ctx, "user_roles", []string{"user_id", "role"}, roles))
	got, err := store.SelectAll(ctx, "user_roles")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	rule := map[string]any{"min": json.Number("100"), "tiers": []any{"a", "b"}}
	require.NoError(t, store.Upsert(ctx, "pricing_rules", []string{"id"}, []manifest.Row{
		{"id": json.Number("1"), "name": "bulk", "rule": rule},
	}))
	got, err = store.SelectAll(ctx, "pricing_rules")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"min":100,"tiers":["a","b"]}`, got[0]["rule"].(string))
}

func TestIdentifiersAreValidated(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	_, err := store.SelectAll(ctx, "colors; DROP TABLE orders")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	assert.ErrorIs(t, store.DeleteAll(ctx, `colors"`), ErrInvalidIdentifier)

	err = store.Upsert(ctx, "colors", []string{"id"}, []manifest.Row{
		{"id": json.Number("1"), "name) VALUES (1); --": "x"},
	})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestDeleteAllAndUnknownTable(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	require.NoError(t, store.Upsert(ctx, "orders", []string{"id"}, []manifest.Row{
		{"id": json.Number("1"), "status": "paid", "total": json.Number("12.5")},
	}))
	got, err := store.SelectAll(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 12.5, got[0]["total"])

	require.NoError(t, store.DeleteAll(ctx, "orders"))
	got, err = store.SelectAll(ctx, "orders")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = store.SelectAll(ctx, "no_such_table")
	assert.Error(t, err)
}

func TestMigrateRejectsOtherDialects(t *testing.T) {
	store := New(nil, Postgres)
	assert.Error(t, Migrate(context.Background(), store, zerolog.Nop()))
}

func TestBindValue(t *testing.T) {
	v, err := bindValue(json.Number("42"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = bindValue(json.Number("4.25"))
	require.NoError(t, err)
	assert.Equal(t, 4.25, v)

	v, err = bindValue([]any{"x"})
	require.NoError(t, err)
	assert.Equal(t, `["x"]`, v)

	v, err = bindValue(true)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}
