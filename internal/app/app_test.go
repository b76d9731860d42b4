package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtables/fieldtables/internal/colorrule"
	"github.com/fieldtables/fieldtables/internal/columns"
	"github.com/fieldtables/fieldtables/internal/config"
	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/internal/storage"
	"github.com/fieldtables/fieldtables/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Creator = "tester"

	m, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

var householdSpecs = []columns.ColumnSpec{
	{Name: "head", Type: types.ElementString},
	{Name: "members", Type: types.ElementInteger},
	{Name: "loc", Type: types.ElementGeopoint},
	{Name: "assets", Type: types.ElementArray, Items: &columns.ColumnSpec{Type: types.ElementString}},
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, ftErrors.GetCode(err), "unexpected error: %v", err)
}

func TestManager_CreateTable(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	oc, err := m.CreateTable(ctx, "household", householdSpecs)
	require.NoError(t, err)
	assert.True(t, oc.Contains("loc_latitude"))
	assert.True(t, oc.Contains("assets_items"))

	reloaded, err := m.OrderedColumns(ctx, "household")
	require.NoError(t, err)
	assert.Equal(t, oc.ElementKeys(), reloaded.ElementKeys())

	tables, err := m.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"household"}, tables)

	tbl, err := m.Table(ctx, "household")
	require.NoError(t, err)
	assert.Len(t, tbl.SchemaETag, 32)

	order, err := m.ColumnOrder(ctx, "household")
	require.NoError(t, err)
	assert.Equal(t, []string{"head", "members", "loc", "assets"}, order)
}

func TestManager_CreateTable_Errors(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.CreateTable(ctx, "", householdSpecs)
	assertCode(t, err, ftErrors.CodeEmptyTableName)

	_, err = m.CreateTable(ctx, "household", nil)
	assertCode(t, err, ftErrors.CodeNoColumns)

	_, err = m.CreateTable(ctx, "household", []columns.ColumnSpec{{Name: "sync_state", Type: types.ElementString}})
	assertCode(t, err, ftErrors.CodeInvalidName)

	_, err = m.CreateTable(ctx, "household", householdSpecs)
	require.NoError(t, err)
	_, err = m.CreateTable(ctx, "household", householdSpecs)
	assertCode(t, err, ftErrors.CodeDuplicateKey)

	// A failed create leaves nothing behind
	tables, err := m.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"household"}, tables)
}

func TestManager_AddColumnsPreservesRows(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.CreateTable(ctx, "household", householdSpecs)
	require.NoError(t, err)
	before, err := m.Table(ctx, "household")
	require.NoError(t, err)

	row, err := m.InsertRow(ctx, "household", types.Row{"head": "Amina", "members": 5, "loc_latitude": -1.29, "loc_longitude": 36.82})
	require.NoError(t, err)
	assert.Equal(t, "tester", row[types.ColumnSavepointCreator])

	oc, err := m.AddColumns(ctx, "household", []columns.ColumnSpec{{Name: "income", Type: types.ElementNumber}})
	require.NoError(t, err)
	assert.True(t, oc.Contains("income"))

	rows, err := m.Rows(ctx, "household")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, row.ID(), rows[0].ID())
	assert.Equal(t, "Amina", rows[0]["head"])
	assert.Equal(t, int64(5), rows[0]["members"])
	assert.True(t, rows[0].Has("income"))
	assert.Nil(t, rows[0]["income"])

	after, err := m.Table(ctx, "household")
	require.NoError(t, err)
	assert.NotEqual(t, before.SchemaETag, after.SchemaETag)

	order, err := m.ColumnOrder(ctx, "household")
	require.NoError(t, err)
	assert.Equal(t, "income", order[len(order)-1])
}

func TestManager_ColumnOrderFollowsDeclarationOrder(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.CreateTable(ctx, "survey", []columns.ColumnSpec{
		{Name: "zeta", Type: types.ElementString},
		{Name: "alpha", Type: types.ElementGeopoint},
	})
	require.NoError(t, err)
	_, err = m.AddColumns(ctx, "survey", []columns.ColumnSpec{
		{Name: "yank", Type: types.ElementInteger},
		{Name: "bravo", Type: types.ElementArray, Items: &columns.ColumnSpec{Type: types.ElementString}},
	})
	require.NoError(t, err)

	order, err := m.ColumnOrder(ctx, "survey")
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "yank", "bravo"}, order)
}

func TestManager_AddColumns_Errors(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.AddColumns(ctx, "missing", []columns.ColumnSpec{{Name: "x", Type: types.ElementString}})
	assertCode(t, err, ftErrors.CodeNotFound)

	_, err = m.CreateTable(ctx, "household", householdSpecs)
	require.NoError(t, err)

	_, err = m.AddColumns(ctx, "household", []columns.ColumnSpec{{Name: "head", Type: types.ElementString}})
	assertCode(t, err, ftErrors.CodeDuplicateKey)

	_, err = m.AddColumns(ctx, "household", nil)
	assertCode(t, err, ftErrors.CodeNoColumns)

	oc, err := m.OrderedColumns(ctx, "household")
	require.NoError(t, err)
	assert.False(t, oc.Contains("x"))
}

func TestManager_InsertRow_RejectsCollapsedColumns(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.CreateTable(ctx, "household", householdSpecs)
	require.NoError(t, err)

	_, err = m.InsertRow(ctx, "household", types.Row{"assets_items": "goat"})
	assertCode(t, err, ftErrors.CodeInvalidName)

	_, err = m.InsertRow(ctx, "household", types.Row{"nope": 1})
	assertCode(t, err, ftErrors.CodeNotFound)

	_, err = m.InsertRow(ctx, "household", types.Row{"assets": `["goat","radio"]`})
	require.NoError(t, err)
}

func TestManager_Placemarks(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.CreateTable(ctx, "household", householdSpecs)
	require.NoError(t, err)

	_, err = m.InsertRow(ctx, "household", types.Row{"loc_latitude": -1.0, "loc_longitude": 36.0})
	require.NoError(t, err)
	_, err = m.InsertRow(ctx, "household", types.Row{"loc_latitude": 2.0, "loc_longitude": 30.0})
	require.NoError(t, err)
	_, err = m.InsertRow(ctx, "household", types.Row{"head": "no location"})
	require.NoError(t, err)

	marks, bound, err := m.Placemarks(ctx, "household", "loc")
	require.NoError(t, err)
	assert.Len(t, marks, 2)
	assert.Equal(t, 30.0, bound.Min.Lon())
	assert.Equal(t, 2.0, bound.Max.Lat())

	_, _, err = m.Placemarks(ctx, "household", "head")
	assertCode(t, err, ftErrors.CodeUnknownType)
}

func TestManager_ColorRules(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.CreateTable(ctx, "household", householdSpecs)
	require.NoError(t, err)

	_, err = m.InsertRow(ctx, "household", types.Row{"head": "Amina", "members": 9})
	require.NoError(t, err)
	_, err = m.InsertRow(ctx, "household", types.Row{"head": "Juma", "members": 2})
	require.NoError(t, err)

	// Status colors come from the built-in rules
	_, guides, err := m.RowColors(ctx, "household", colorrule.ScopeStatusColumn, "")
	require.NoError(t, err)
	require.Len(t, guides, 2)
	for _, g := range guides {
		require.NotNil(t, g)
		assert.Equal(t, colorrule.ColorGreen, g.Background)
	}

	g, err := m.ColorRuleGroup(ctx, "household", colorrule.ScopeColumn, "members")
	require.NoError(t, err)
	g.Add(colorrule.Rule{ElementKey: "members", Operator: colorrule.OpGreaterThan, Value: "6", Background: colorrule.ColorRed})
	require.NoError(t, m.SaveColorRuleGroup(ctx, g))

	rows, guides, err := m.RowColors(ctx, "household", colorrule.ScopeColumn, "members")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for i, row := range rows {
		if row["head"] == "Amina" {
			require.NotNil(t, guides[i])
			assert.Equal(t, colorrule.ColorRed, guides[i].Background)
		} else {
			assert.Nil(t, guides[i])
		}
	}
}

func TestManager_ColorRules_Errors(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.CreateTable(ctx, "household", householdSpecs)
	require.NoError(t, err)

	_, err = m.ColorRuleGroup(ctx, "household", colorrule.ScopeColumn, "nope")
	assertCode(t, err, ftErrors.CodeNotFound)

	g, err := m.ColorRuleGroup(ctx, "household", colorrule.ScopeTable, "")
	require.NoError(t, err)
	g.Add(colorrule.Rule{ElementKey: "nope", Operator: colorrule.OpEqual, Value: "x"})
	assertCode(t, m.SaveColorRuleGroup(ctx, g), ftErrors.CodeUnknownColumn)

	reloaded, err := m.ColorRuleGroup(ctx, "household", colorrule.ScopeTable, "")
	require.NoError(t, err)
	assert.Empty(t, reloaded.Rules())
}

func TestManager_DropTable(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.CreateTable(ctx, "household", householdSpecs)
	require.NoError(t, err)

	require.NoError(t, m.DropTable(ctx, "household"))
	_, err = m.OrderedColumns(ctx, "household")
	assertCode(t, err, ftErrors.CodeNotFound)
	assertCode(t, m.DropTable(ctx, "household"), ftErrors.CodeNotFound)

	// The id can be reused after a drop
	_, err = m.CreateTable(ctx, "household", householdSpecs[:1])
	require.NoError(t, err)
}

func TestManager_ExportImport(t *testing.T) {
	dir := t.TempDir()
	archiveStore, err := storage.NewLocalStorage(filepath.Join(dir, "archive"))
	require.NoError(t, err)

	open := func(name string) *Manager {
		cfg := config.DefaultConfig()
		cfg.DataDir = filepath.Join(dir, name)
		cfg.Resolve()
		require.NoError(t, cfg.EnsureDirectories())
		m, err := OpenWithStorage(cfg, archiveStore)
		require.NoError(t, err)
		t.Cleanup(func() { m.Close() })
		return m
	}
	ctx := context.Background()

	src := open("src")
	_, err = src.CreateTable(ctx, "household", householdSpecs)
	require.NoError(t, err)
	g, err := src.ColorRuleGroup(ctx, "household", colorrule.ScopeTable, "")
	require.NoError(t, err)
	g.Add(colorrule.Rule{ElementKey: "members", Operator: colorrule.OpLessThan, Value: "2", Background: colorrule.ColorAmber})
	require.NoError(t, src.SaveColorRuleGroup(ctx, g))

	etag, err := src.ExportTable(ctx, "household")
	require.NoError(t, err)
	assert.NotEmpty(t, etag)

	archived, err := src.ArchivedTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"household"}, archived)

	dst := open("dst")
	oc, err := dst.ImportTable(ctx, "household")
	require.NoError(t, err)

	want, err := src.OrderedColumns(ctx, "household")
	require.NoError(t, err)
	assert.Equal(t, want.ElementKeys(), oc.ElementKeys())

	srcTbl, err := src.Table(ctx, "household")
	require.NoError(t, err)
	dstTbl, err := dst.Table(ctx, "household")
	require.NoError(t, err)
	assert.Equal(t, srcTbl.SchemaETag, dstTbl.SchemaETag)

	rules, err := dst.ColorRuleGroup(ctx, "household", colorrule.ScopeTable, "")
	require.NoError(t, err)
	require.Len(t, rules.Rules(), 1)
	assert.Equal(t, g.Rules()[0].ID, rules.Rules()[0].ID)

	// Importing over an existing table fails
	_, err = dst.ImportTable(ctx, "household")
	assertCode(t, err, ftErrors.CodeDuplicateKey)

	_, err = dst.ImportTable(ctx, "unknown")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}
