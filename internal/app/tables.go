package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/fieldtables/fieldtables/internal/columns"
	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/internal/metadata"
	"github.com/fieldtables/fieldtables/internal/schema"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// CreateTable declares a new data table. The specs are expanded into column
// records, built into a tree and written as the physical table plus its
// metadata in one transaction.
func (m *Manager) CreateTable(ctx context.Context, tableID string, specs []columns.ColumnSpec) (*columns.OrderedColumns, error) {
	if err := columns.ValidateTableID(tableID); err != nil {
		return nil, err
	}
	records, err := columns.ExpandAll(specs)
	if err != nil {
		return nil, err
	}
	oc, err := columns.NewOrderedColumns(tableID, records)
	if err != nil {
		return nil, err
	}

	err = m.withTx(ctx, func(tx *sql.Tx, s stores) error {
		return createTable(ctx, tx, s, oc, records, schema.Fingerprint(oc.Records()))
	})
	if err != nil {
		return nil, err
	}
	log.Printf("app: created table %s (%d columns)", tableID, oc.Len())
	return oc, nil
}

// createTable writes the physical table and the metadata of a new table.
func createTable(ctx context.Context, tx *sql.Tx, s stores, oc *columns.OrderedColumns, records []types.Column, etag string) error {
	tableID := oc.TableID()
	_, err := s.tables.Get(ctx, tableID)
	if err == nil {
		return ftErrors.NewSchemaError(ftErrors.CodeDuplicateKey, fmt.Sprintf("table %s already exists", tableID))
	}
	if !errors.Is(err, metadata.ErrNotFound) {
		return ftErrors.NewStorageFailure(fmt.Sprintf("failed to read definition of %s", tableID), err)
	}

	if err := schema.CreateTable(ctx, tx, tableID, oc); err != nil {
		return err
	}
	if err := s.tables.Create(ctx, tableID, etag); err != nil {
		return ftErrors.NewStorageFailure(fmt.Sprintf("failed to record table %s", tableID), err)
	}
	return writeColumnMetadata(ctx, s, tableID, records, topLevelKeys(records))
}

// writeColumnMetadata stores new column records, their display defaults and
// their place in the column order.
func writeColumnMetadata(ctx context.Context, s stores, tableID string, records []types.Column, orderKeys []string) error {
	if err := s.columns.Insert(ctx, tableID, records); err != nil {
		return ftErrors.NewStorageFailure(fmt.Sprintf("failed to store columns of %s", tableID), err)
	}
	if err := s.kvs.PutDisplayDefaults(ctx, tableID, records); err != nil {
		return ftErrors.NewStorageFailure(fmt.Sprintf("failed to store display settings of %s", tableID), err)
	}
	if _, err := s.kvs.AppendColumnOrder(ctx, tableID, orderKeys); err != nil {
		return ftErrors.NewStorageFailure(fmt.Sprintf("failed to store column order of %s", tableID), err)
	}
	return nil
}

// topLevelKeys returns the keys of records that are no other record's child,
// in the order the records were given.
func topLevelKeys(records []types.Column) []string {
	children := make(map[string]bool)
	for _, c := range records {
		for _, k := range c.ListChildElementKeys {
			children[k] = true
		}
	}
	var keys []string
	for _, c := range records {
		if !children[c.ElementKey] {
			keys = append(keys, c.ElementKey)
		}
	}
	return keys
}

// AddColumns adds columns to an existing table. The table is rebuilt with
// its rows preserved; the new columns are NULL for every existing row.
func (m *Manager) AddColumns(ctx context.Context, tableID string, specs []columns.ColumnSpec) (*columns.OrderedColumns, error) {
	added, err := columns.ExpandAll(specs)
	if err != nil {
		return nil, err
	}

	var combined *columns.OrderedColumns
	err = m.withTx(ctx, func(tx *sql.Tx, s stores) error {
		existing, err := loadColumns(ctx, s, tableID)
		if err != nil {
			return err
		}
		combined, err = schema.AddColumn(ctx, tx, tableID, existing, added)
		if err != nil {
			return err
		}

		if err := writeColumnMetadata(ctx, s, tableID, added, topLevelKeys(added)); err != nil {
			return err
		}
		if err := s.tables.SetSchemaETag(ctx, tableID, schema.Fingerprint(combined.Records())); err != nil {
			return ftErrors.NewStorageFailure(fmt.Sprintf("failed to update schema etag of %s", tableID), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("app: added %d columns to %s", len(added), tableID)
	return combined, nil
}

// OrderedColumns returns the current column definitions of tableID.
func (m *Manager) OrderedColumns(ctx context.Context, tableID string) (*columns.OrderedColumns, error) {
	return loadColumns(ctx, storesOver(m.db.Reader()), tableID)
}

// Table returns the stored definition row of tableID.
func (m *Manager) Table(ctx context.Context, tableID string) (*metadata.TableDefinition, error) {
	return requireTable(ctx, storesOver(m.db.Reader()), tableID)
}

// ColumnOrder returns the display order of the table's top-level columns.
func (m *Manager) ColumnOrder(ctx context.Context, tableID string) ([]string, error) {
	s := storesOver(m.db.Reader())
	if _, err := requireTable(ctx, s, tableID); err != nil {
		return nil, err
	}
	return s.kvs.ColumnOrder(ctx, tableID)
}

// ListTables returns the ids of all tables in id order.
func (m *Manager) ListTables(ctx context.Context) ([]string, error) {
	return metadata.NewTableStore(m.db.Reader()).List(ctx)
}

// DropTable removes a table, its rows and all of its metadata.
func (m *Manager) DropTable(ctx context.Context, tableID string) error {
	err := m.withTx(ctx, func(tx *sql.Tx, s stores) error {
		if _, err := requireTable(ctx, s, tableID); err != nil {
			return err
		}
		if err := schema.DropTable(ctx, tx, tableID); err != nil {
			return err
		}
		if err := s.columns.DeleteTable(ctx, tableID); err != nil {
			return ftErrors.NewStorageFailure(fmt.Sprintf("failed to delete columns of %s", tableID), err)
		}
		if err := s.kvs.DeleteTable(ctx, tableID); err != nil {
			return ftErrors.NewStorageFailure(fmt.Sprintf("failed to delete metadata of %s", tableID), err)
		}
		if err := s.tables.Delete(ctx, tableID); err != nil {
			return ftErrors.NewStorageFailure(fmt.Sprintf("failed to delete definition of %s", tableID), err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("app: dropped table %s", tableID)
	return nil
}
