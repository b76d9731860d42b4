package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldtables/fieldtables/pkg/types"
)

// SavepointComplete marks a row saved as a finished form.
const SavepointComplete = "COMPLETE"

// TimestampLayout is the nanosecond-precision UTC layout of savepoint_timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000000000"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// InsertRow inserts row into table, filling in the metadata columns the
// caller left unset. The stored row is returned.
func InsertRow(ctx context.Context, q Querier, table string, row types.Row, creator string) (types.Row, error) {
	physical, err := TableColumns(ctx, q, table)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(physical))
	for _, c := range physical {
		known[c] = true
	}

	out := make(types.Row, len(row)+4)
	for k, v := range row {
		if !known[k] {
			return nil, fmt.Errorf("store: table %s has no column %s", table, k)
		}
		out[k] = v
	}
	if !out.Has(types.ColumnID) {
		out[types.ColumnID] = uuid.NewString()
	}
	if !out.Has(types.ColumnSyncState) {
		out[types.ColumnSyncState] = types.SyncStateNewRow
	}
	if !out.Has(types.ColumnSavepointType) {
		out[types.ColumnSavepointType] = SavepointComplete
	}
	if !out.Has(types.ColumnSavepointTimestamp) {
		out[types.ColumnSavepointTimestamp] = FormatTimestamp(time.Now())
	}
	if !out.Has(types.ColumnSavepointCreator) && creator != "" {
		out[types.ColumnSavepointCreator] = creator
	}

	names := make([]string, 0, len(out))
	for k := range out {
		names = append(names, k)
	}
	sort.Strings(names)
	args := make([]interface{}, len(names))
	for i, n := range names {
		args[i] = out[n]
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(table), QuoteIdents(names), strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "))
	if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("store: failed to insert row into %s: %w", table, err)
	}
	return out, nil
}

// ReadRows returns every row of table ordered by savepoint time, then id.
func ReadRows(ctx context.Context, q Querier, table string) ([]types.Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s, %s",
		QuoteIdent(table), QuoteIdent(types.ColumnSavepointTimestamp), QuoteIdent(types.ColumnID))
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: failed to query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("store: failed to read columns of %s: %w", table, err)
	}

	var result []types.Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("store: failed to scan row of %s: %w", table, err)
		}
		row := make(types.Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: error iterating rows of %s: %w", table, err)
	}
	return result, nil
}

// CountRows returns the number of rows in table.
func CountRows(ctx context.Context, q Querier, table string) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+QuoteIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: failed to count rows of %s: %w", table, err)
	}
	return n, nil
}
