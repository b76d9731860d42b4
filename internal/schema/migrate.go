package schema

import (
	"context"
	"fmt"
	"log"

	"github.com/fieldtables/fieldtables/internal/columns"
	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/internal/store"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// backupTable is the temporary table rows are parked in while the data table
// is recreated.
const backupTable = "backup_"

// AddColumn adds the records in added to table by rebuilding it: the rows
// are copied to a temporary table, the table is dropped and recreated with
// the combined column set, and the rows are copied back. Columns new to the
// table are NULL for existing rows.
//
// q must be a transaction. Any failure leaves the caller to roll back, which
// restores the original table.
func AddColumn(ctx context.Context, q store.Querier, table string, existing *columns.OrderedColumns, added []types.Column) (*columns.OrderedColumns, error) {
	if err := columns.ValidateTableID(table); err != nil {
		return nil, err
	}
	if len(added) == 0 {
		return nil, ftErrors.NewSchemaError(ftErrors.CodeNoColumns,
			fmt.Sprintf("no columns to add to %s", table))
	}

	var records []types.Column
	if existing != nil {
		records = existing.Records()
	}
	combined, err := columns.NewOrderedColumns(table, append(records, added...))
	if err != nil {
		return nil, err
	}

	// Read the current physical column list
	oldCols, err := store.TableColumns(ctx, q, table)
	if err != nil {
		return nil, ftErrors.NewStorageFailure(fmt.Sprintf("failed to read columns of %s", table), err)
	}

	newCols := FullColumnSet(combined)
	newNames := make(map[string]bool, len(newCols))
	for _, c := range newCols {
		newNames[c.Name] = true
	}
	for _, c := range oldCols {
		if !newNames[c] {
			return nil, ftErrors.NewStorageFailure(
				fmt.Sprintf("column %s of %s has no definition", c, table), nil)
		}
	}

	stmt, err := CreateTableStatement(table, PhysicalColumnsFor(combined))
	if err != nil {
		return nil, err
	}

	oldList := store.QuoteIdents(oldCols)
	steps := []struct {
		name string
		sql  string
	}{
		{"create backup", fmt.Sprintf("CREATE TEMPORARY TABLE %s (%s)", backupTable, oldList)},
		{"copy rows to backup", fmt.Sprintf("INSERT INTO %s SELECT %s FROM %s", backupTable, oldList, store.QuoteIdent(table))},
		{"drop table", "DROP TABLE " + store.QuoteIdent(table)},
		{"recreate table", stmt},
		{"restore rows", fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", store.QuoteIdent(table), oldList, oldList, backupTable)},
		{"drop backup", "DROP TABLE " + backupTable},
	}
	for _, step := range steps {
		if _, err := q.ExecContext(ctx, step.sql); err != nil {
			return nil, ftErrors.NewStorageFailure(
				fmt.Sprintf("add column to %s: %s failed", table, step.name), err)
		}
	}

	log.Printf("schema: rebuilt %s with %d physical columns (was %d)", table, len(newCols), len(oldCols))
	return combined, nil
}
