package metadata

import (
	"context"

	"github.com/fieldtables/fieldtables/pkg/types"
)

// ColumnOrder returns the table's column order, or nil when none is stored.
func (s *KeyValueStore) ColumnOrder(ctx context.Context, tableID string) ([]string, error) {
	var order []string
	if _, err := s.GetJSON(ctx, tableID, PartitionTable, AspectDefault, KeyColumnOrder, &order); err != nil {
		return nil, err
	}
	return order, nil
}

// AppendColumnOrder appends keys to the stored column order. A key already
// present is moved to the end. The updated order is returned.
func (s *KeyValueStore) AppendColumnOrder(ctx context.Context, tableID string, keys []string) ([]string, error) {
	order, err := s.ColumnOrder(ctx, tableID)
	if err != nil {
		return nil, err
	}
	order = AppendDeduplicated(order, keys)
	if err := s.PutJSON(ctx, tableID, PartitionTable, AspectDefault, KeyColumnOrder, order); err != nil {
		return nil, err
	}
	return order, nil
}

// AppendDeduplicated appends each key to order in encounter order, first
// removing any earlier occurrence of it.
func AppendDeduplicated(order, keys []string) []string {
	out := make([]string, 0, len(order)+len(keys))
	out = append(out, order...)
	for _, k := range keys {
		filtered := out[:0]
		for _, existing := range out {
			if existing != k {
				filtered = append(filtered, existing)
			}
		}
		out = append(filtered, k)
	}
	return out
}

// PutDisplayDefaults stores the default display settings of each record:
// visible, named after the element, no choices and no joins.
func (s *KeyValueStore) PutDisplayDefaults(ctx context.Context, tableID string, records []types.Column) error {
	for _, c := range records {
		defaults := []struct {
			key   string
			value interface{}
		}{
			{KeyDisplayVisible, true},
			{KeyDisplayName, c.ElementName},
			{KeyDisplayChoicesList, []interface{}{}},
			{KeyJoins, []interface{}{}},
		}
		for _, d := range defaults {
			if err := s.PutJSON(ctx, tableID, PartitionColumn, c.ElementKey, d.key, d.value); err != nil {
				return err
			}
		}
	}
	return nil
}
