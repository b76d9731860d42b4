package columns

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/fieldtables/fieldtables/pkg/types"
)

// Element sets of the data model.
const (
	ElementSetData             = "data"
	ElementSetInstanceMetadata = "instanceMetadata"
)

// ElementSchema describes one node of a table's data model.
type ElementSchema struct {
	Type               types.ElementDataType     `json:"type"`
	ElementType        string                    `json:"elementType"`
	ElementKey         string                    `json:"elementKey"`
	ElementName        string                    `json:"elementName"`
	ElementSet         string                    `json:"elementSet"`
	ElementPath        string                    `json:"elementPath"`
	IsNotNullable      bool                      `json:"isNotNullable"`
	NotUnitOfRetention bool                      `json:"notUnitOfRetention,omitempty"`
	Properties         map[string]*ElementSchema `json:"properties,omitempty"`
	Items              *ElementSchema            `json:"items,omitempty"`
}

// DataModel describes the full type tree keyed by top-level element name,
// followed by the metadata columns.
func (oc *OrderedColumns) DataModel() map[string]*ElementSchema {
	model := make(map[string]*ElementSchema)
	for _, def := range oc.TopLevel() {
		model[def.ElementName()] = elementSchema(def, nil)
	}
	for _, col := range types.AdminColumns() {
		dt := types.DataString
		if col.Type == types.StorageInteger {
			dt = types.DataInteger
		}
		model[col.Name] = &ElementSchema{
			Type:          dt,
			ElementType:   string(dt),
			ElementKey:    col.Name,
			ElementName:   col.Name,
			ElementSet:    ElementSetInstanceMetadata,
			ElementPath:   col.Name,
			IsNotNullable: !col.Nullable,
		}
	}
	return model
}

func elementSchema(def *ColumnDefinition, path []string) *ElementSchema {
	path = append(path, def.ElementName())
	s := &ElementSchema{
		Type:               def.DataType(),
		ElementType:        def.ElementType().String(),
		ElementKey:         def.ElementKey(),
		ElementName:        def.ElementName(),
		ElementSet:         ElementSetData,
		ElementPath:        strings.Join(path, "."),
		NotUnitOfRetention: !def.IsUnitOfRetention(),
	}
	children := def.Children()
	if def.ElementType() == types.ElementArray {
		if len(children) == 1 {
			s.Items = elementSchema(children[0], path)
		}
		return s
	}
	if len(children) > 0 {
		s.Properties = make(map[string]*ElementSchema, len(children))
		for _, child := range children {
			s.Properties[child.ElementName()] = elementSchema(child, path)
		}
	}
	return s
}

// GeopointValue reads the latitude and longitude components of a geopoint
// column from row. ok is false when either is missing or not numeric.
func (oc *OrderedColumns) GeopointValue(geopoint *ColumnDefinition, row types.Row) (orb.Point, bool) {
	lat, err := oc.LatitudeOf(geopoint)
	if err != nil {
		return orb.Point{}, false
	}
	lon, err := oc.LongitudeOf(geopoint)
	if err != nil {
		return orb.Point{}, false
	}
	latV, ok := toFloat(row[lat.ElementKey()])
	if !ok {
		return orb.Point{}, false
	}
	lonV, ok := toFloat(row[lon.ElementKey()])
	if !ok {
		return orb.Point{}, false
	}
	return orb.Point{lonV, latV}, true
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
		return f, err == nil
	}
	return 0, false
}
