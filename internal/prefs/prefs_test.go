package prefs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/checkmark/internal/checkmark"
	"github.com/mind-engage/checkmark/internal/db"
	"github.com/mind-engage/checkmark/internal/export"
	"github.com/mind-engage/checkmark/internal/roster"
)

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	dbx, err := db.OpenMemory(ctx)
	require.NoError(t, err)
	defer dbx.Close()
	s := New(dbx)

	_, ok, err := s.Get(ctx, 7, "x")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, 7, "x", "1"))
	require.NoError(t, s.Set(ctx, 7, "x", "2"))
	v, ok, err := s.Get(ctx, 7, "x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	require.NoError(t, s.Delete(ctx, 7, "x"))
	_, ok, _ = s.Get(ctx, 7, "x")
	assert.False(t, ok)
}

func TestExportOptions(t *testing.T) {
	ctx := context.Background()
	dbx, err := db.OpenMemory(ctx)
	require.NoError(t, err)
	defer dbx.Close()
	s := New(dbx)

	o, err := s.ExportOptions(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, export.DefaultOptions(), o)

	o.Format = export.XLSX
	o.Orientation = "landscape"
	o.Signature = true
	o.Query = roster.Query{Filter: roster.FilterGraded}
	require.NoError(t, s.SaveExportOptions(ctx, 3, o))

	got, err := s.ExportOptions(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, export.XLSX, got.Format)
	assert.Equal(t, "landscape", got.Orientation)
	assert.True(t, got.Signature)
	assert.Empty(t, got.Query.Filter, "the table query is not a print setting")

	o.TextSize = "huge"
	assert.ErrorIs(t, s.SaveExportOptions(ctx, 3, o), checkmark.ErrInvalidArgument)

	require.NoError(t, s.Set(ctx, 3, exportPrefName, "{broken"))
	got, err = s.ExportOptions(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, export.DefaultOptions(), got)
}
