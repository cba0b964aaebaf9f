package db

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowjay/shop-backup/internal/manifest"
)

func TestMemoryStoreMergesByKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("colors")

	require.NoError(t, m.Upsert(ctx, "colors", []string{"id"}, []manifest.Row{
		{"id": json.Number("1"), "name": "Red"},
		{"id": json.Number("2"), "name": "Blue"},
	}))
	require.NoError(t, m.Upsert(ctx, "colors", []string{"id"}, []manifest.Row{
		{"id": json.Number("1"), "name": "Crimson"},
	}))

	rows, err := m.SelectAll(ctx, "colors")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, manifest.Row{"id": int64(1), "name": "Crimson"}, rows[0])

	require.NoError(t, m.ReplaceAll(ctx, "colors", []string{"id"}, []manifest.Row{{"id": json.Number("3"), "name": "Green"}}))
	assert.Equal(t, []manifest.Row{{"id": int64(3), "name": "Green"}}, m.Rows("colors"))
}

func TestMemoryStoreErrors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("colors")

	_, err := m.SelectAll(ctx, "missing")
	assert.Error(t, err)
	assert.ErrorIs(t, m.DeleteAll(ctx, "bad name"), ErrInvalidIdentifier)

	m.SetDown(true)
	assert.ErrorIs(t, m.Ping(ctx), ErrUnavailable)
	_, err = m.SelectAll(ctx, "colors")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMemoryStoreKeysAreTyped(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("orders")

	require.NoError(t, m.Upsert(ctx, "orders", []string{"id"}, []manifest.Row{
		{"id": int64(1), "status": "paid"},
		{"id": "1", "status": "draft"},
	}))
	require.Len(t, m.Rows("orders"), 2, "int64(1) and \"1\" are different keys")

	// plain ints widen to the same key as int64
	require.NoError(t, m.Upsert(ctx, "orders", []string{"id"}, []manifest.Row{{"id": 1, "status": "shipped"}}))
	rows := m.Rows("orders")
	require.Len(t, rows, 2)
	assert.Equal(t, "shipped", rows[0]["status"])
	assert.Equal(t, "draft", rows[1]["status"])
}
