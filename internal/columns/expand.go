package columns

import (
	"fmt"

	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// ColumnSpec is a user-level column declaration. Composite members are
// synthesized from the type catalog (geopoint, mimeUri) or taken from Items
// (array) and Properties (object).
type ColumnSpec struct {
	Name       string            `json:"name" yaml:"name"`
	Type       types.ElementType `json:"type" yaml:"type"`
	Items      *ColumnSpec       `json:"items,omitempty" yaml:"items,omitempty"`
	Properties []ColumnSpec      `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Expand flattens a top-level declaration into column records, parent first.
func Expand(spec ColumnSpec) ([]types.Column, error) {
	return expandUnder("", spec)
}

// ExpandAll flattens several top-level declarations in order.
func ExpandAll(specs []ColumnSpec) ([]types.Column, error) {
	var out []types.Column
	for _, spec := range specs {
		recs, err := Expand(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

func expandUnder(parentKey string, spec ColumnSpec) ([]types.Column, error) {
	if !spec.Type.Valid() {
		return nil, ftErrors.NewSchemaError(ftErrors.CodeUnknownType,
			fmt.Sprintf("column %q has an unknown type", spec.Name))
	}
	key := spec.Name
	if parentKey != "" {
		key = ChildElementKey(parentKey, spec.Name)
	}
	if err := ValidateElementKey(key); err != nil {
		return nil, err
	}

	var members []ColumnSpec
	switch t := spec.Type; {
	case t == types.ElementArray:
		if spec.Items == nil {
			return nil, ftErrors.NewSchemaError(ftErrors.CodeArrayArity,
				fmt.Sprintf("array column %q declares no item type", key))
		}
		if len(spec.Properties) > 0 {
			return nil, ftErrors.NewSchemaError(ftErrors.CodeArrayArity,
				fmt.Sprintf("array column %q cannot declare properties", key))
		}
		item := *spec.Items
		item.Name = types.ChildSpecsOf(t, item.Type)[0].Name
		members = []ColumnSpec{item}
	case types.HasFixedChildren(t):
		if spec.Items != nil || len(spec.Properties) > 0 {
			return nil, ftErrors.NewSchemaError(ftErrors.CodeChildCountMismatch,
				fmt.Sprintf("%s column %q has fixed components", t, key))
		}
		for _, cs := range types.ChildSpecsOf(t, types.ElementString) {
			members = append(members, ColumnSpec{Name: cs.Name, Type: cs.Type})
		}
	case t == types.ElementObject:
		if spec.Items != nil {
			return nil, ftErrors.NewSchemaError(ftErrors.CodeChildCountMismatch,
				fmt.Sprintf("object column %q cannot declare items", key))
		}
		members = spec.Properties
	default:
		if spec.Items != nil || len(spec.Properties) > 0 {
			return nil, ftErrors.NewSchemaError(ftErrors.CodeChildCountMismatch,
				fmt.Sprintf("%s column %q cannot have members", t, key))
		}
	}

	rec := types.Column{
		ElementKey:           key,
		ElementName:          spec.Name,
		ElementType:          spec.Type.String(),
		ListChildElementKeys: []string{},
	}
	out := []types.Column{rec}
	for _, m := range members {
		recs, err := expandUnder(key, m)
		if err != nil {
			return nil, err
		}
		out[0].ListChildElementKeys = append(out[0].ListChildElementKeys, recs[0].ElementKey)
		out = append(out, recs...)
	}
	return out, nil
}
