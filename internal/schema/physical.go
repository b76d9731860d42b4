// Package schema synthesizes the relational tables that back data tables and
// migrates them when columns are added.
package schema

import (
	"github.com/fieldtables/fieldtables/internal/columns"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// StorageTypeOf maps a logical data type onto its SQLite storage class.
// Booleans are stored as 0/1 integers; arrays and objects as JSON text.
func StorageTypeOf(dt types.ElementDataType) types.StorageType {
	switch dt {
	case types.DataInteger, types.DataBool:
		return types.StorageInteger
	case types.DataNumber:
		return types.StorageReal
	default:
		return types.StorageText
	}
}

// PhysicalColumnsFor returns one nullable physical column per retained
// definition, in element key order.
func PhysicalColumnsFor(oc *columns.OrderedColumns) []types.PhysicalColumn {
	retained := oc.RetainedDefinitions()
	cols := make([]types.PhysicalColumn, 0, len(retained))
	for _, def := range retained {
		cols = append(cols, types.PhysicalColumn{
			Name:     def.ElementKey(),
			Type:     StorageTypeOf(def.DataType()),
			Nullable: true,
		})
	}
	return cols
}

// MetadataColumns returns the fixed metadata columns every table starts with.
func MetadataColumns() []types.PhysicalColumn {
	return types.AdminColumns()
}

// FullColumnSet returns the metadata columns followed by the physical columns of oc.
func FullColumnSet(oc *columns.OrderedColumns) []types.PhysicalColumn {
	return append(MetadataColumns(), PhysicalColumnsFor(oc)...)
}
