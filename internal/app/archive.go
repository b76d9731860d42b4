package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/fieldtables/fieldtables/internal/archive"
	"github.com/fieldtables/fieldtables/internal/columns"
	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/internal/schema"
)

// ExportTable writes the definition of tableID (its column records and every
// metadata entry) to archive storage and returns the object's etag. Rows are
// not exported.
func (m *Manager) ExportTable(ctx context.Context, tableID string) (string, error) {
	s := storesOver(m.db.Reader())
	tbl, err := requireTable(ctx, s, tableID)
	if err != nil {
		return "", err
	}
	records, err := s.columns.Get(ctx, tableID)
	if err != nil {
		return "", ftErrors.NewStorageFailure(fmt.Sprintf("failed to read columns of %s", tableID), err)
	}
	entries, err := s.kvs.List(ctx, tableID, "")
	if err != nil {
		return "", ftErrors.NewStorageFailure(fmt.Sprintf("failed to read metadata of %s", tableID), err)
	}

	return m.archive.Save(ctx, &archive.Definition{
		TableID:    tableID,
		SchemaETag: tbl.SchemaETag,
		Columns:    records,
		Entries:    entries,
	})
}

// ImportTable recreates an exported table from archive storage. The column
// records are rebuilt and validated like any new table; the table must not
// already exist.
func (m *Manager) ImportTable(ctx context.Context, tableID string) (*columns.OrderedColumns, error) {
	if err := columns.ValidateTableID(tableID); err != nil {
		return nil, err
	}
	def, err := m.archive.Load(ctx, tableID)
	if err != nil {
		return nil, err
	}
	oc, err := columns.NewOrderedColumns(tableID, def.Columns)
	if err != nil {
		return nil, err
	}

	err = m.withTx(ctx, func(tx *sql.Tx, s stores) error {
		if err := createTable(ctx, tx, s, oc, def.Columns, schemaETagOf(def, oc)); err != nil {
			return err
		}
		// Exported entries override the defaults written for new columns
		for _, e := range def.Entries {
			e.TableID = tableID
			if err := s.kvs.Put(ctx, e); err != nil {
				return ftErrors.NewStorageFailure(fmt.Sprintf("failed to restore metadata of %s", tableID), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("app: imported table %s (%d columns, %d metadata entries)", tableID, oc.Len(), len(def.Entries))
	return oc, nil
}

// ArchivedTables lists the tables with an exported definition.
func (m *Manager) ArchivedTables(ctx context.Context) ([]string, error) {
	return m.archive.List(ctx)
}

func schemaETagOf(def *archive.Definition, oc *columns.OrderedColumns) string {
	etag := schema.Fingerprint(oc.Records())
	if def.SchemaETag != "" && def.SchemaETag != etag {
		log.Printf("[WARN] app: archived schema etag of %s is %s, recomputed %s", def.TableID, def.SchemaETag, etag)
	}
	return etag
}
