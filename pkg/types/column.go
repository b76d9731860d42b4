// Package types provides core data types for the fieldtables engine.
package types

// Column is the flat, persisted record of one logical column.
type Column struct {
	// ElementKey is unique within a table and encodes the column's position in the type tree
	ElementKey string `json:"element_key" yaml:"element_key"`

	// ElementName is the leaf-local name (not unique)
	ElementName string `json:"element_name" yaml:"element_name"`

	// ElementType is the persisted logical type name (see ParseElementType)
	ElementType string `json:"element_type" yaml:"element_type"`

	// ListChildElementKeys holds the ordered child element keys; empty for leaves
	ListChildElementKeys []string `json:"list_child_element_keys" yaml:"list_child_element_keys"`
}

// Equal reports whether two records are identical, including child order.
func (c Column) Equal(o Column) bool {
	if c.ElementKey != o.ElementKey || c.ElementName != o.ElementName || c.ElementType != o.ElementType {
		return false
	}
	if len(c.ListChildElementKeys) != len(o.ListChildElementKeys) {
		return false
	}
	for i := range c.ListChildElementKeys {
		if c.ListChildElementKeys[i] != o.ListChildElementKeys[i] {
			return false
		}
	}
	return true
}

// StorageType is the SQLite storage class of a physical column.
type StorageType string

const (
	StorageText    StorageType = "TEXT"
	StorageInteger StorageType = "INTEGER"
	StorageReal    StorageType = "REAL"
)

// PhysicalColumn is one column of the relational table backing a data table.
type PhysicalColumn struct {
	// Name is the column name (the element key for user columns)
	Name string `json:"name"`

	// Type is the SQLite type: TEXT, INTEGER, REAL
	Type StorageType `json:"type"`

	// Nullable indicates whether the column can contain NULL values
	Nullable bool `json:"nullable"`

	// PrimaryKey indicates whether this column is the row key
	PrimaryKey bool `json:"primary_key"`
}
