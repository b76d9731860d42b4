package colorrule

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtables/fieldtables/internal/columns"
	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/internal/metadata"
	"github.com/fieldtables/fieldtables/internal/store"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// memStore is an in-memory Store that counts writes.
type memStore struct {
	values map[string][]byte
	puts   int
	fail   error
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string][]byte)}
}

func memKey(tableID, partition, aspect, key string) string {
	return tableID + "/" + partition + "/" + aspect + "/" + key
}

func (m *memStore) GetJSON(ctx context.Context, tableID, partition, aspect, key string, v interface{}) (bool, error) {
	data, ok := m.values[memKey(tableID, partition, aspect, key)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}

func (m *memStore) PutJSON(ctx context.Context, tableID, partition, aspect, key string, v interface{}) error {
	if m.fail != nil {
		return m.fail
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.puts++
	m.values[memKey(tableID, partition, aspect, key)] = data
	return nil
}

func (m *memStore) Delete(ctx context.Context, tableID, partition, aspect, key string) error {
	if m.fail != nil {
		return m.fail
	}
	delete(m.values, memKey(tableID, partition, aspect, key))
	return nil
}

func surveyColumns(t *testing.T) *columns.OrderedColumns {
	t.Helper()
	recs, err := columns.ExpandAll([]columns.ColumnSpec{
		{Name: "name", Type: types.ElementString},
		{Name: "age", Type: types.ElementInteger},
		{Name: "weight", Type: types.ElementNumber},
		{Name: "consent", Type: types.ElementBool},
		{Name: "loc", Type: types.ElementGeopoint},
	})
	require.NoError(t, err)
	oc, err := columns.NewOrderedColumns("survey", recs)
	require.NoError(t, err)
	return oc
}

func groupOf(t *testing.T, rules ...Rule) *Group {
	t.Helper()
	g, err := NewGroup("survey", ScopeTable, "")
	require.NoError(t, err)
	for _, r := range rules {
		g.Add(r)
	}
	return g
}

var admin = types.AdminColumnNames()

func TestEvaluate_FirstMatchWins(t *testing.T) {
	g := groupOf(t,
		Rule{ElementKey: types.ColumnSyncState, Operator: OpEqual, Value: "rest", Foreground: "#A", Background: "#AA"},
		Rule{ElementKey: types.ColumnSyncState, Operator: OpEqual, Value: "rest", Foreground: "#B", Background: "#BB"},
	)

	guide, err := Evaluate(g, surveyColumns(t), types.Row{types.ColumnSyncState: "rest"}, admin)
	require.NoError(t, err)
	require.NotNil(t, guide)
	assert.Equal(t, ColorGuide{Foreground: "#A", Background: "#AA"}, *guide)
}

func TestEvaluate_NoMatch(t *testing.T) {
	g := groupOf(t, Rule{ElementKey: "name", Operator: OpEqual, Value: "Ada"})

	guide, err := Evaluate(g, surveyColumns(t), types.Row{"name": "Grace"}, admin)
	require.NoError(t, err)
	assert.Nil(t, guide)
}

func TestEvaluate_NullNeverMatches(t *testing.T) {
	g := groupOf(t,
		Rule{ElementKey: "name", Operator: OpNotEqual, Value: "Ada", Foreground: "#1"},
		Rule{ElementKey: "age", Operator: OpLessThan, Value: "10", Foreground: "#2"},
	)

	guide, err := Evaluate(g, surveyColumns(t), types.Row{"name": nil}, admin)
	require.NoError(t, err)
	assert.Nil(t, guide)
}

func TestEvaluate_Comparisons(t *testing.T) {
	oc := surveyColumns(t)
	tests := []struct {
		name  string
		rule  Rule
		row   types.Row
		match bool
	}{
		{"integer greater", Rule{ElementKey: "age", Operator: OpGreaterThan, Value: "9"}, types.Row{"age": int64(10)}, true},
		{"integer is numeric not lexical", Rule{ElementKey: "age", Operator: OpLessThan, Value: "9"}, types.Row{"age": int64(10)}, false},
		{"number less or equal", Rule{ElementKey: "weight", Operator: OpLessThanOrEqual, Value: "70.5"}, types.Row{"weight": 70.5}, true},
		{"number from integer storage", Rule{ElementKey: "weight", Operator: OpGreaterThanOrEqual, Value: "70"}, types.Row{"weight": int64(71)}, true},
		{"string lexical", Rule{ElementKey: "name", Operator: OpGreaterThan, Value: "Ada"}, types.Row{"name": "Bob"}, true},
		{"string not equal", Rule{ElementKey: "name", Operator: OpNotEqual, Value: "Ada"}, types.Row{"name": "Ada"}, false},
		{"bool equal 0/1 storage", Rule{ElementKey: "consent", Operator: OpEqual, Value: "true"}, types.Row{"consent": int64(1)}, true},
		{"bool not equal", Rule{ElementKey: "consent", Operator: OpNotEqual, Value: "true"}, types.Row{"consent": int64(0)}, true},
		{"geopoint component", Rule{ElementKey: "loc_latitude", Operator: OpLessThan, Value: "0"}, types.Row{"loc_latitude": -33.9}, true},
		{"conflict_type is integer", Rule{ElementKey: types.ColumnConflictType, Operator: OpGreaterThan, Value: "1"}, types.Row{types.ColumnConflictType: int64(10)}, true},
		{"other metadata is string", Rule{ElementKey: types.ColumnSavepointType, Operator: OpEqual, Value: "COMPLETE"}, types.Row{types.ColumnSavepointType: "COMPLETE"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.rule.Foreground = "#F"
			guide, err := Evaluate(groupOf(t, tt.rule), oc, tt.row, admin)
			require.NoError(t, err)
			assert.Equal(t, tt.match, guide != nil)
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	oc := surveyColumns(t)
	tests := []struct {
		name string
		rule Rule
		row  types.Row
		code string
	}{
		{"unknown column", Rule{ElementKey: "height", Operator: OpEqual, Value: "1"}, types.Row{"height": "1"}, ftErrors.CodeUnknownColumn},
		{"integer from text", Rule{ElementKey: "age", Operator: OpEqual, Value: "ten"}, types.Row{"age": int64(10)}, ftErrors.CodeTypeCoercionFailure},
		{"row value not numeric", Rule{ElementKey: "weight", Operator: OpEqual, Value: "1"}, types.Row{"weight": "heavy"}, ftErrors.CodeTypeCoercionFailure},
		{"bool ordering", Rule{ElementKey: "consent", Operator: OpLessThan, Value: "true"}, types.Row{"consent": int64(1)}, ftErrors.CodeTypeCoercionFailure},
		{"conflict_type text", Rule{ElementKey: types.ColumnConflictType, Operator: OpEqual, Value: "x"}, types.Row{types.ColumnConflictType: int64(1)}, ftErrors.CodeTypeCoercionFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(groupOf(t, tt.rule), oc, tt.row, admin)
			require.Error(t, err)
			assert.True(t, ftErrors.IsRuleError(err))
			assert.Equal(t, tt.code, ftErrors.GetCode(err))
		})
	}
}

func TestEvaluate_AllowlistLimitsMetadataColumns(t *testing.T) {
	g := groupOf(t, Rule{ElementKey: types.ColumnSyncState, Operator: OpEqual, Value: "synced"})

	_, err := Evaluate(g, surveyColumns(t), types.Row{types.ColumnSyncState: "synced"}, []string{types.ColumnConflictType})
	assert.True(t, ftErrors.HasCode(err, ftErrors.ErrCategoryRule, ftErrors.CodeUnknownColumn))
}

func TestEvaluateRows_ErrorOnlyDropsThatRow(t *testing.T) {
	g := groupOf(t, Rule{ElementKey: "age", Operator: OpGreaterThan, Value: "17", Foreground: "#F", Background: "#B"})
	rows := []types.Row{
		{"id": "a", "age": int64(30)},
		{"id": "b", "age": "unknown"},
		{"id": "c", "age": int64(3)},
	}

	guides := EvaluateRows(g, surveyColumns(t), rows, admin)
	require.Len(t, guides, 3)
	assert.NotNil(t, guides[0])
	assert.Nil(t, guides[1])
	assert.Nil(t, guides[2])
}

func TestGroup_StatusDefaults(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()

	g, err := Load(ctx, s, "survey", ScopeStatusColumn, "")
	require.NoError(t, err)
	assert.True(t, g.IsDefault())
	require.Len(t, g.Rules(), len(types.SyncStates()))

	// Unedited defaults are never persisted
	require.NoError(t, g.Save(ctx, s))
	assert.Equal(t, 0, s.puts)

	for _, state := range types.SyncStates() {
		guide, err := Evaluate(g, nil, types.Row{types.ColumnSyncState: state}, admin)
		require.NoError(t, err)
		assert.NotNil(t, guide, "no default color for %s", state)
	}

	// Editing makes the group persistable
	g.Add(Rule{ElementKey: types.ColumnSyncState, Operator: OpEqual, Value: "rest"})
	assert.False(t, g.IsDefault())
	require.NoError(t, g.Save(ctx, s))
	assert.Equal(t, 1, s.puts)

	reloaded, err := Load(ctx, s, "survey", ScopeStatusColumn, "")
	require.NoError(t, err)
	assert.False(t, reloaded.IsDefault())
	assert.Equal(t, g.Rules(), reloaded.Rules())
}

func TestGroup_OtherScopesHaveNoDefaults(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()

	g, err := Load(ctx, s, "survey", ScopeTable, "")
	require.NoError(t, err)
	assert.Empty(t, g.Rules())
	assert.False(t, g.IsDefault())

	g, err = Load(ctx, s, "survey", ScopeColumn, "age")
	require.NoError(t, err)
	assert.Empty(t, g.Rules())

	_, err = Load(ctx, s, "survey", ScopeColumn, "")
	assert.Error(t, err)
}

func TestGroup_EditAndSave(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()

	g, err := Load(ctx, s, "survey", ScopeColumn, "age")
	require.NoError(t, err)

	a := g.Add(Rule{ElementKey: "age", Operator: OpLessThan, Value: "18", Foreground: "#1"})
	b := g.Add(Rule{ElementKey: "age", Operator: OpGreaterThan, Value: "65", Foreground: "#2"})
	_, err = uuid.Parse(a.ID)
	assert.NoError(t, err, "Add should assign a uuid")
	assert.True(t, g.IsDirty())

	require.NoError(t, g.Replace(a.ID, Rule{ElementKey: "age", Operator: OpLessThan, Value: "21", Foreground: "#1"}))
	rules := g.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, a.ID, rules[0].ID)
	assert.Equal(t, "21", rules[0].Value)

	assert.True(t, errors.Is(g.Replace("missing", Rule{}), ErrRuleNotFound))
	assert.True(t, errors.Is(g.Remove("missing"), ErrRuleNotFound))

	require.NoError(t, g.Save(ctx, s))
	assert.False(t, g.IsDirty())

	reloaded, err := Load(ctx, s, "survey", ScopeColumn, "age")
	require.NoError(t, err)
	assert.Equal(t, g.Rules(), reloaded.Rules())

	require.NoError(t, reloaded.Remove(a.ID))
	require.NoError(t, reloaded.Remove(b.ID))
	require.NoError(t, reloaded.Save(ctx, s))
	assert.Empty(t, s.values, "saving an empty group should delete the entry")
}

func TestGroup_SaveFailureKeepsDirty(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()
	g := groupOf(t, Rule{ElementKey: "name", Operator: OpEqual, Value: "x"})

	s.fail = errors.New("disk full")
	require.Error(t, g.Save(ctx, s))
	assert.True(t, g.IsDirty())
	assert.Empty(t, s.values)
}

func TestGroup_RestoreDefaults(t *testing.T) {
	g, err := NewGroup("survey", ScopeStatusColumn, "")
	require.NoError(t, err)
	g.RestoreDefaults()
	assert.Equal(t, DefaultStatusRules(), g.Rules())
	assert.True(t, g.IsDirty())
}

func TestGroup_PersistsThroughKeyValueStore(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "rules.db"), store.Options{})
	require.NoError(t, err)
	defer db.Close()
	kvs := metadata.NewKeyValueStore(db.Writer())
	ctx := context.Background()

	g, err := Load(ctx, kvs, "survey", ScopeTable, "")
	require.NoError(t, err)
	g.Add(Rule{ElementKey: "weight", Operator: OpGreaterThanOrEqual, Value: "100", Foreground: "#FFF", Background: "#000"})
	require.NoError(t, g.Save(ctx, kvs))

	e, err := kvs.Get(ctx, "survey", metadata.PartitionTableColorRuleGroup, metadata.AspectDefault, metadata.KeyColorRules)
	require.NoError(t, err)
	assert.Equal(t, metadata.TypeArray, e.Type)
	assert.Contains(t, e.Value, `"operator":"GREATER_THAN_OR_EQUAL"`)

	reloaded, err := Load(ctx, kvs, "survey", ScopeTable, "")
	require.NoError(t, err)
	assert.Equal(t, g.Rules(), reloaded.Rules())
}

func TestOperator(t *testing.T) {
	for _, op := range []Operator{OpEqual, OpNotEqual, OpLessThan, OpLessThanOrEqual, OpGreaterThan, OpGreaterThanOrEqual} {
		data, err := json.Marshal(op)
		require.NoError(t, err)
		var back Operator
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, op, back)

		parsed, err := ParseOperator(op.Symbol())
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}

	_, err := ParseOperator("LIKE")
	assert.Error(t, err)
	var bad Operator
	assert.Error(t, json.Unmarshal([]byte(`"LIKE"`), &bad))
}
