// Package columns builds the logical column tree of a data table from its
// flat column records and exposes it as an immutable, element-key ordered view.
package columns

import (
	"github.com/fieldtables/fieldtables/pkg/types"
)

const noParent = -1

// arena owns every definition of one build. Children and parent edges are
// indexes into defs, so a definition can never hold a cycle or be reparented.
type arena struct {
	defs []*ColumnDefinition
}

// ColumnDefinition is a Column record placed in its type tree.
type ColumnDefinition struct {
	column      types.Column
	elementType types.ElementType

	arena    *arena
	index    int
	parent   int
	children []int
	retained bool
}

func newDefinition(a *arena, index int, col types.Column, et types.ElementType) *ColumnDefinition {
	return &ColumnDefinition{
		column:      col,
		elementType: et,
		arena:       a,
		index:       index,
		parent:      noParent,
		retained:    true,
	}
}

// ElementKey returns the table-unique key.
func (d *ColumnDefinition) ElementKey() string { return d.column.ElementKey }

// ElementName returns the leaf-local name.
func (d *ColumnDefinition) ElementName() string { return d.column.ElementName }

// ElementType returns the logical type.
func (d *ColumnDefinition) ElementType() types.ElementType { return d.elementType }

// DataType returns the physical category of the logical type.
func (d *ColumnDefinition) DataType() types.ElementDataType { return types.Classify(d.elementType) }

// ListChildElementKeys returns a copy of the persisted child key list.
func (d *ColumnDefinition) ListChildElementKeys() []string {
	return append([]string(nil), d.column.ListChildElementKeys...)
}

// Column returns a copy of the underlying record.
func (d *ColumnDefinition) Column() types.Column {
	c := d.column
	c.ListChildElementKeys = d.ListChildElementKeys()
	return c
}

// IsUnitOfRetention reports whether the definition has its own physical column.
func (d *ColumnDefinition) IsUnitOfRetention() bool { return d.retained }

// Parent returns the owning definition, or nil for top-level columns.
func (d *ColumnDefinition) Parent() *ColumnDefinition {
	if d.parent == noParent {
		return nil
	}
	return d.arena.defs[d.parent]
}

// Children returns the owned child definitions in attachment order.
func (d *ColumnDefinition) Children() []*ColumnDefinition {
	out := make([]*ColumnDefinition, len(d.children))
	for i, idx := range d.children {
		out[i] = d.arena.defs[idx]
	}
	return out
}

// HasChildren reports whether any child is attached.
func (d *ColumnDefinition) HasChildren() bool { return len(d.children) > 0 }

// Equal compares the underlying records only.
func (d *ColumnDefinition) Equal(o *ColumnDefinition) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.column.Equal(o.column)
}

// Less orders definitions by element key.
func (d *ColumnDefinition) Less(o *ColumnDefinition) bool {
	return d.column.ElementKey < o.column.ElementKey
}

// addChild is the only step that assigns ownership.
func (d *ColumnDefinition) addChild(child *ColumnDefinition) {
	child.parent = d.index
	d.children = append(d.children, child.index)
}

// descendants returns every definition below d, breadth-first and de-duplicated.
func (d *ColumnDefinition) descendants() []*ColumnDefinition {
	seen := make(map[int]bool)
	queue := append([]int(nil), d.children...)
	var out []*ColumnDefinition
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		if seen[idx] {
			continue
		}
		seen[idx] = true
		def := d.arena.defs[idx]
		out = append(out, def)
		queue = append(queue, def.children...)
	}
	return out
}
