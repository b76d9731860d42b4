package metadata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fieldtables/fieldtables/internal/store"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// ColumnStore persists the flat column records of each table.
type ColumnStore struct {
	q store.Querier
}

// NewColumnStore creates a column store over q.
func NewColumnStore(q store.Querier) *ColumnStore {
	return &ColumnStore{q: q}
}

// Get returns the column records of a table in element key order.
func (s *ColumnStore) Get(ctx context.Context, tableID string) ([]types.Column, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT element_key, element_name, element_type, list_child_element_keys
		 FROM _column_definitions WHERE table_id = ? ORDER BY element_key`,
		tableID,
	)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to get columns of %s: %w", tableID, err)
	}
	defer rows.Close()

	var records []types.Column
	for rows.Next() {
		var c types.Column
		var children string
		if err := rows.Scan(&c.ElementKey, &c.ElementName, &c.ElementType, &children); err != nil {
			return nil, fmt.Errorf("metadata: failed to scan column: %w", err)
		}
		if err := json.Unmarshal([]byte(children), &c.ListChildElementKeys); err != nil {
			return nil, fmt.Errorf("metadata: failed to decode children of %s.%s: %w", tableID, c.ElementKey, err)
		}
		records = append(records, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metadata: error iterating columns: %w", err)
	}
	return records, nil
}

// Insert stores new column records. Re-inserting an existing element key fails.
func (s *ColumnStore) Insert(ctx context.Context, tableID string, records []types.Column) error {
	for _, c := range records {
		children := c.ListChildElementKeys
		if children == nil {
			children = []string{}
		}
		data, err := json.Marshal(children)
		if err != nil {
			return fmt.Errorf("metadata: failed to encode children of %s: %w", c.ElementKey, err)
		}
		_, err = s.q.ExecContext(ctx,
			`INSERT INTO _column_definitions (table_id, element_key, element_name, element_type, list_child_element_keys)
			 VALUES (?, ?, ?, ?, ?)`,
			tableID, c.ElementKey, c.ElementName, c.ElementType, string(data),
		)
		if err != nil {
			return fmt.Errorf("metadata: failed to insert column %s.%s: %w", tableID, c.ElementKey, err)
		}
	}
	return nil
}

// DeleteTable removes every column record of a table.
func (s *ColumnStore) DeleteTable(ctx context.Context, tableID string) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM _column_definitions WHERE table_id = ?", tableID); err != nil {
		return fmt.Errorf("metadata: failed to delete columns of %s: %w", tableID, err)
	}
	return nil
}
