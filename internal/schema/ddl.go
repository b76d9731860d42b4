package schema

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/fieldtables/fieldtables/internal/columns"
	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/internal/store"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// CreateTableStatement renders the CREATE TABLE statement for table: the
// metadata columns first, then cols. Every user column is nullable.
func CreateTableStatement(table string, cols []types.PhysicalColumn) (string, error) {
	if err := columns.ValidateTableID(table); err != nil {
		return "", err
	}

	defs := make([]string, 0, len(types.AdminColumns())+len(cols))
	for _, c := range MetadataColumns() {
		defs = append(defs, columnDefinitionSQL(c))
	}
	for _, c := range cols {
		if types.IsAdminColumn(c.Name) {
			return "", ftErrors.NewSchemaError(ftErrors.CodeInvalidName,
				fmt.Sprintf("column %q collides with a metadata column", c.Name))
		}
		c.Nullable = true
		c.PrimaryKey = false
		defs = append(defs, columnDefinitionSQL(c))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", store.QuoteIdent(table), strings.Join(defs, ",\n    ")), nil
}

func columnDefinitionSQL(c types.PhysicalColumn) string {
	var b strings.Builder
	b.WriteString(store.QuoteIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(string(c.Type))
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	return b.String()
}

// CreateTable creates the table backing oc. The table must carry at least
// one retained user column.
func CreateTable(ctx context.Context, q store.Querier, table string, oc *columns.OrderedColumns) error {
	cols := PhysicalColumnsFor(oc)
	if len(cols) == 0 {
		return ftErrors.NewSchemaError(ftErrors.CodeNoColumns,
			fmt.Sprintf("table %s has no user columns", table))
	}

	stmt, err := CreateTableStatement(table, cols)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return ftErrors.NewStorageFailure(fmt.Sprintf("failed to create table %s", table), err)
	}
	log.Printf("schema: created table %s with %d user columns", table, len(cols))
	return nil
}

// DropTable removes the table backing a data table.
func DropTable(ctx context.Context, q store.Querier, table string) error {
	if err := columns.ValidateTableID(table); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, "DROP TABLE IF EXISTS "+store.QuoteIdent(table)); err != nil {
		return ftErrors.NewStorageFailure(fmt.Sprintf("failed to drop table %s", table), err)
	}
	return nil
}
