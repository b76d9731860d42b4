// Package metadata persists per-table metadata: the flat column records, the
// table definition row, and the key-value store holding display settings,
// column order and color rules.
package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fieldtables/fieldtables/internal/store"
)

// ErrNotFound is returned when a metadata entry does not exist.
var ErrNotFound = errors.New("metadata: entry not found")

// Partitions of the key-value store.
const (
	PartitionTable                      = "Table"
	PartitionColumn                     = "Column"
	PartitionColumnColorRuleGroup       = "ColumnColorRuleGroup"
	PartitionTableColorRuleGroup        = "TableColorRuleGroup"
	PartitionStatusColumnColorRuleGroup = "StatusColumnColorRuleGroup"
)

// AspectDefault is the aspect of table-wide entries.
const AspectDefault = "default"

// Well-known keys.
const (
	KeyColumnOrder        = "colOrder"
	KeyDisplayVisible     = "displayVisible"
	KeyDisplayName        = "displayName"
	KeyDisplayChoicesList = "displayChoicesList"
	KeyJoins              = "joins"
	KeyColorRules         = "ColorRules"
)

// Value types recorded alongside each entry.
const (
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Entry is one key-value store row. Value holds JSON text.
type Entry struct {
	TableID   string `json:"table_id"`
	Partition string `json:"partition"`
	Aspect    string `json:"aspect"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// KeyValueStore reads and writes entries through a Querier, which may be a
// transaction.
type KeyValueStore struct {
	q store.Querier
}

// NewKeyValueStore creates a key-value store over q.
func NewKeyValueStore(q store.Querier) *KeyValueStore {
	return &KeyValueStore{q: q}
}

// Get returns the entry at the given address, or ErrNotFound.
func (s *KeyValueStore) Get(ctx context.Context, tableID, partition, aspect, key string) (*Entry, error) {
	e := Entry{TableID: tableID, Partition: partition, Aspect: aspect, Key: key}
	err := s.q.QueryRowContext(ctx,
		`SELECT type, value FROM _key_value_store
		 WHERE table_id = ? AND partition = ? AND aspect = ? AND key = ?`,
		tableID, partition, aspect, key,
	).Scan(&e.Type, &e.Value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("metadata: failed to get %s/%s/%s/%s: %w", tableID, partition, aspect, key, err)
	}
	return &e, nil
}

// Put inserts or replaces an entry.
func (s *KeyValueStore) Put(ctx context.Context, e Entry) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT OR REPLACE INTO _key_value_store (table_id, partition, aspect, key, type, value)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.TableID, e.Partition, e.Aspect, e.Key, e.Type, e.Value,
	)
	if err != nil {
		return fmt.Errorf("metadata: failed to put %s/%s/%s/%s: %w", e.TableID, e.Partition, e.Aspect, e.Key, err)
	}
	return nil
}

// Delete removes an entry. Deleting a missing entry is not an error.
func (s *KeyValueStore) Delete(ctx context.Context, tableID, partition, aspect, key string) error {
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM _key_value_store
		 WHERE table_id = ? AND partition = ? AND aspect = ? AND key = ?`,
		tableID, partition, aspect, key,
	)
	if err != nil {
		return fmt.Errorf("metadata: failed to delete %s/%s/%s/%s: %w", tableID, partition, aspect, key, err)
	}
	return nil
}

// List returns the entries of one partition of a table. An empty partition
// lists every entry of the table.
func (s *KeyValueStore) List(ctx context.Context, tableID, partition string) ([]Entry, error) {
	query := `SELECT table_id, partition, aspect, key, type, value FROM _key_value_store WHERE table_id = ?`
	args := []interface{}{tableID}
	if partition != "" {
		query += " AND partition = ?"
		args = append(args, partition)
	}
	query += " ORDER BY partition, aspect, key"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to list entries of %s: %w", tableID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.TableID, &e.Partition, &e.Aspect, &e.Key, &e.Type, &e.Value); err != nil {
			return nil, fmt.Errorf("metadata: failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metadata: error iterating entries: %w", err)
	}
	return entries, nil
}

// DeleteTable removes every entry of a table.
func (s *KeyValueStore) DeleteTable(ctx context.Context, tableID string) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM _key_value_store WHERE table_id = ?", tableID); err != nil {
		return fmt.Errorf("metadata: failed to delete entries of %s: %w", tableID, err)
	}
	return nil
}

// GetJSON decodes the entry at the given address into v. It reports false
// when the entry does not exist.
func (s *KeyValueStore) GetJSON(ctx context.Context, tableID, partition, aspect, key string, v interface{}) (bool, error) {
	e, err := s.Get(ctx, tableID, partition, aspect, key)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(e.Value), v); err != nil {
		return false, fmt.Errorf("metadata: failed to decode %s/%s/%s/%s: %w", tableID, partition, aspect, key, err)
	}
	return true, nil
}

// PutJSON encodes v and stores it at the given address.
func (s *KeyValueStore) PutJSON(ctx context.Context, tableID, partition, aspect, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("metadata: failed to encode %s/%s/%s/%s: %w", tableID, partition, aspect, key, err)
	}
	return s.Put(ctx, Entry{
		TableID:   tableID,
		Partition: partition,
		Aspect:    aspect,
		Key:       key,
		Type:      jsonKind(data),
		Value:     string(data),
	})
}

// jsonKind names the JSON kind of an encoded value.
func jsonKind(data []byte) string {
	if len(data) == 0 {
		return TypeString
	}
	switch data[0] {
	case '[':
		return TypeArray
	case '{':
		return TypeObject
	case 't', 'f':
		return TypeBoolean
	case '"', 'n':
		return TypeString
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if _, err := n.Int64(); err == nil {
			return TypeInteger
		}
		return TypeNumber
	}
	return TypeString
}
