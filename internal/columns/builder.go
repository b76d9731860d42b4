package columns

import (
	"fmt"
	"sort"

	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// Build turns the flat column records of one table into definitions wired
// into their type tree, validated, with retention marked. The result is
// sorted by element key. Any violation fails the whole build.
func Build(records []types.Column) ([]*ColumnDefinition, error) {
	for _, rec := range records {
		if err := ValidateElementKey(rec.ElementKey); err != nil {
			return nil, err
		}
	}

	a := &arena{defs: make([]*ColumnDefinition, 0, len(records))}
	byKey := make(map[string]*ColumnDefinition, len(records))
	for i, rec := range records {
		if _, dup := byKey[rec.ElementKey]; dup {
			return nil, ftErrors.NewSchemaError(ftErrors.CodeDuplicateKey,
				fmt.Sprintf("element key %q is defined more than once", rec.ElementKey))
		}
		et, err := types.ParseElementType(rec.ElementType)
		if err != nil {
			return nil, ftErrors.Wrap(ftErrors.ErrCategorySchema, ftErrors.CodeUnknownType,
				fmt.Sprintf("column %q", rec.ElementKey), err)
		}
		rec.ListChildElementKeys = append([]string(nil), rec.ListChildElementKeys...)
		def := newDefinition(a, i, rec, et)
		a.defs = append(a.defs, def)
		byKey[rec.ElementKey] = def
	}

	sorted := make([]*ColumnDefinition, len(a.defs))
	copy(sorted, a.defs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	for _, def := range sorted {
		for _, childKey := range def.column.ListChildElementKeys {
			child, ok := byKey[childKey]
			if !ok {
				return nil, ftErrors.NewSchemaError(ftErrors.CodeUnknownChild,
					fmt.Sprintf("column %q lists undefined child %q", def.ElementKey(), childKey)).
					WithDetails(map[string]interface{}{"element_key": def.ElementKey(), "child": childKey})
			}
			switch child.parent {
			case noParent:
				def.addChild(child)
			case def.index:
				// listed twice by the same parent; caught by the count check
			default:
				return nil, ftErrors.NewSchemaError(ftErrors.CodeMultipleParents,
					fmt.Sprintf("column %q is a child of both %q and %q",
						childKey, child.Parent().ElementKey(), def.ElementKey()))
			}
		}
	}

	for _, def := range sorted {
		if err := validateDefinition(def); err != nil {
			return nil, err
		}
	}

	markUnitOfRetention(a.defs)

	return sorted, nil
}

func validateDefinition(def *ColumnDefinition) error {
	key := def.ElementKey()

	if len(def.column.ListChildElementKeys) != len(def.children) {
		return ftErrors.NewSchemaError(ftErrors.CodeChildCountMismatch,
			fmt.Sprintf("column %q lists %d child keys but resolves %d distinct children",
				key, len(def.column.ListChildElementKeys), len(def.children)))
	}

	switch et := def.elementType; {
	case et == types.ElementArray:
		if len(def.children) != 1 {
			return ftErrors.NewSchemaError(ftErrors.CodeArrayArity,
				fmt.Sprintf("array column %q must have exactly one child, has %d", key, len(def.children)))
		}
	case types.HasFixedChildren(et):
		specs := types.ChildSpecsOf(et, types.ElementString)
		if len(def.children) != len(specs) {
			return ftErrors.NewSchemaError(ftErrors.CodeChildCountMismatch,
				fmt.Sprintf("%s column %q must have %d children, has %d", et, key, len(specs), len(def.children)))
		}
		byName := make(map[string]*ColumnDefinition, len(def.children))
		for _, child := range def.Children() {
			byName[child.ElementName()] = child
		}
		for _, spec := range specs {
			child, ok := byName[spec.Name]
			if !ok {
				return ftErrors.NewSchemaError(ftErrors.CodeNamingConventionViolation,
					fmt.Sprintf("%s column %q is missing its %q component", et, key, spec.Name))
			}
			if child.ElementType() != spec.Type {
				return ftErrors.NewSchemaError(ftErrors.CodeNamingConventionViolation,
					fmt.Sprintf("%s component %q of %q is %s, want %s", et, spec.Name, key, child.ElementType(), spec.Type))
			}
		}
	case et == types.ElementObject:
	default:
		if len(def.children) > 0 {
			return ftErrors.NewSchemaError(ftErrors.CodeChildCountMismatch,
				fmt.Sprintf("%s column %q cannot have children", et, key))
		}
	}

	for _, child := range def.Children() {
		if want := ChildElementKey(key, child.ElementName()); child.ElementKey() != want {
			return ftErrors.NewSchemaError(ftErrors.CodeNamingConventionViolation,
				fmt.Sprintf("child of %q has key %q, want %q", key, child.ElementKey(), want))
		}
	}
	return nil
}

// markUnitOfRetention runs two passes. Arrays first: the array keeps its own
// column and every descendant loses it. Then every other definition with
// children becomes a pure grouping node. Both passes only ever clear the
// flag, so the fixed point does not depend on the order of defs.
func markUnitOfRetention(defs []*ColumnDefinition) {
	for _, def := range defs {
		if def.elementType != types.ElementArray {
			continue
		}
		for _, desc := range def.descendants() {
			desc.retained = false
		}
	}
	for _, def := range defs {
		if def.elementType == types.ElementArray || !def.retained {
			continue
		}
		if def.HasChildren() {
			def.retained = false
		}
	}
}
