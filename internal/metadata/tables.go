package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldtables/fieldtables/internal/store"
)

// TableDefinition is the per-table definition row.
type TableDefinition struct {
	TableID      string    `json:"table_id"`
	SchemaETag   string    `json:"schema_etag"`
	LastDataETag string    `json:"last_data_etag,omitempty"`
	LastSyncTime string    `json:"last_sync_time"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableStore persists table definitions.
type TableStore struct {
	q store.Querier
}

// NewTableStore creates a table store over q.
func NewTableStore(q store.Querier) *TableStore {
	return &TableStore{q: q}
}

// Create registers a new table with its initial schema etag.
func (s *TableStore) Create(ctx context.Context, tableID, schemaETag string) error {
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO _table_definitions (table_id, schema_etag, created_at) VALUES (?, ?, ?)",
		tableID, schemaETag, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("metadata: failed to create table definition %s: %w", tableID, err)
	}
	return nil
}

// Get returns a table definition, or ErrNotFound.
func (s *TableStore) Get(ctx context.Context, tableID string) (*TableDefinition, error) {
	var def TableDefinition
	var schemaETag, dataETag sql.NullString
	var createdAt int64
	err := s.q.QueryRowContext(ctx,
		`SELECT table_id, schema_etag, last_data_etag, last_sync_time, created_at
		 FROM _table_definitions WHERE table_id = ?`,
		tableID,
	).Scan(&def.TableID, &schemaETag, &dataETag, &def.LastSyncTime, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("metadata: failed to get table definition %s: %w", tableID, err)
	}
	def.SchemaETag = schemaETag.String
	def.LastDataETag = dataETag.String
	def.CreatedAt = time.Unix(createdAt, 0)
	return &def, nil
}

// SetSchemaETag records a new schema etag for a table.
func (s *TableStore) SetSchemaETag(ctx context.Context, tableID, schemaETag string) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE _table_definitions SET schema_etag = ? WHERE table_id = ?",
		schemaETag, tableID,
	)
	if err != nil {
		return fmt.Errorf("metadata: failed to update schema etag of %s: %w", tableID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the ids of all tables in order.
func (s *TableStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT table_id FROM _table_definitions ORDER BY table_id")
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to list tables: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("metadata: failed to scan table id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metadata: error iterating tables: %w", err)
	}
	return ids, nil
}

// Delete removes a table definition.
func (s *TableStore) Delete(ctx context.Context, tableID string) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM _table_definitions WHERE table_id = ?", tableID); err != nil {
		return fmt.Errorf("metadata: failed to delete table definition %s: %w", tableID, err)
	}
	return nil
}
