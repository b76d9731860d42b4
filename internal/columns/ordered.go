package columns

import (
	"fmt"
	"sort"

	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// OrderedColumns is the immutable, element-key ordered set of definitions of
// one table. A schema change always produces a new OrderedColumns.
type OrderedColumns struct {
	tableID string
	defs    []*ColumnDefinition
}

// NewOrderedColumns builds and validates the definitions of tableID.
func NewOrderedColumns(tableID string, records []types.Column) (*OrderedColumns, error) {
	defs, err := Build(records)
	if err != nil {
		return nil, err
	}
	return &OrderedColumns{tableID: tableID, defs: defs}, nil
}

// TableID returns the table these columns belong to.
func (oc *OrderedColumns) TableID() string { return oc.tableID }

// Len returns the number of definitions.
func (oc *OrderedColumns) Len() int { return len(oc.defs) }

// At returns the i-th definition in key order.
func (oc *OrderedColumns) At(i int) *ColumnDefinition { return oc.defs[i] }

// All returns every definition in key order.
func (oc *OrderedColumns) All() []*ColumnDefinition {
	return append([]*ColumnDefinition(nil), oc.defs...)
}

// Find looks up elementKey by binary search.
func (oc *OrderedColumns) Find(elementKey string) (*ColumnDefinition, error) {
	i := sort.Search(len(oc.defs), func(i int) bool {
		return oc.defs[i].ElementKey() >= elementKey
	})
	if i < len(oc.defs) && oc.defs[i].ElementKey() == elementKey {
		return oc.defs[i], nil
	}
	return nil, ftErrors.NewSchemaError(ftErrors.CodeNotFound,
		fmt.Sprintf("table %q has no column %q", oc.tableID, elementKey))
}

// Contains reports whether elementKey is defined.
func (oc *OrderedColumns) Contains(elementKey string) bool {
	_, err := oc.Find(elementKey)
	return err == nil
}

// RetainedDefinitions returns the definitions that own a physical column.
func (oc *OrderedColumns) RetainedDefinitions() []*ColumnDefinition {
	var out []*ColumnDefinition
	for _, def := range oc.defs {
		if def.IsUnitOfRetention() {
			out = append(out, def)
		}
	}
	return out
}

// TopLevel returns the definitions without a parent.
func (oc *OrderedColumns) TopLevel() []*ColumnDefinition {
	var out []*ColumnDefinition
	for _, def := range oc.defs {
		if def.Parent() == nil {
			out = append(out, def)
		}
	}
	return out
}

// ElementKeys returns every element key in order.
func (oc *OrderedColumns) ElementKeys() []string {
	keys := make([]string, len(oc.defs))
	for i, def := range oc.defs {
		keys[i] = def.ElementKey()
	}
	return keys
}

// Records returns copies of the underlying column records in key order.
func (oc *OrderedColumns) Records() []types.Column {
	out := make([]types.Column, len(oc.defs))
	for i, def := range oc.defs {
		out[i] = def.Column()
	}
	return out
}

// GeopointDefinitions returns the geopoint-typed definitions.
func (oc *OrderedColumns) GeopointDefinitions() []*ColumnDefinition {
	var out []*ColumnDefinition
	for _, def := range oc.defs {
		if def.ElementType() == types.ElementGeopoint {
			out = append(out, def)
		}
	}
	return out
}

// LatitudeOf returns the latitude component of a geopoint definition.
func (oc *OrderedColumns) LatitudeOf(geopoint *ColumnDefinition) (*ColumnDefinition, error) {
	return oc.componentOf(geopoint, types.GeopointLatitude)
}

// LongitudeOf returns the longitude component of a geopoint definition.
func (oc *OrderedColumns) LongitudeOf(geopoint *ColumnDefinition) (*ColumnDefinition, error) {
	return oc.componentOf(geopoint, types.GeopointLongitude)
}

func (oc *OrderedColumns) componentOf(geopoint *ColumnDefinition, name string) (*ColumnDefinition, error) {
	if geopoint == nil || geopoint.ElementType() != types.ElementGeopoint {
		return nil, ftErrors.NewSchemaError(ftErrors.CodeNotFound, "not a geopoint column")
	}
	return oc.Find(ChildElementKey(geopoint.ElementKey(), name))
}

// IsLatitude reports whether def is the latitude component of a geopoint.
func IsLatitude(def *ColumnDefinition) bool {
	return isGeopointComponent(def, types.GeopointLatitude)
}

// IsLongitude reports whether def is the longitude component of a geopoint.
func IsLongitude(def *ColumnDefinition) bool {
	return isGeopointComponent(def, types.GeopointLongitude)
}

func isGeopointComponent(def *ColumnDefinition, name string) bool {
	if def == nil || def.ElementName() != name {
		return false
	}
	parent := def.Parent()
	return parent != nil && parent.ElementType() == types.ElementGeopoint
}
