package types

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ElementType is the logical type of a column.
type ElementType int

const (
	ElementString ElementType = iota
	ElementInteger
	ElementNumber
	ElementBool
	ElementArray
	ElementObject
	ElementGeopoint
	ElementMimeURI
	ElementDate
	ElementDateTime
	ElementTime
	ElementRowPath
	ElementConfigPath
)

var elementTypeNames = [...]string{
	ElementString:     "string",
	ElementInteger:    "integer",
	ElementNumber:     "number",
	ElementBool:       "bool",
	ElementArray:      "array",
	ElementObject:     "object",
	ElementGeopoint:   "geopoint",
	ElementMimeURI:    "mimeUri",
	ElementDate:       "date",
	ElementDateTime:   "datetime",
	ElementTime:       "time",
	ElementRowPath:    "rowpath",
	ElementConfigPath: "configpath",
}

// AllElementTypes lists every logical type in declaration order.
func AllElementTypes() []ElementType {
	out := make([]ElementType, len(elementTypeNames))
	for i := range elementTypeNames {
		out[i] = ElementType(i)
	}
	return out
}

// String returns the persisted name of the type.
func (t ElementType) String() string {
	if t < 0 || int(t) >= len(elementTypeNames) {
		return fmt.Sprintf("ElementType(%d)", int(t))
	}
	return elementTypeNames[t]
}

// Valid reports whether t is one of the declared types.
func (t ElementType) Valid() bool {
	return t >= 0 && int(t) < len(elementTypeNames)
}

// ParseElementType resolves a persisted type name.
func ParseElementType(s string) (ElementType, error) {
	for i, name := range elementTypeNames {
		if name == s {
			return ElementType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownElementType, s)
}

// ElementDataType is the physical category a logical type falls into.
type ElementDataType string

const (
	DataString  ElementDataType = "string"
	DataInteger ElementDataType = "integer"
	DataNumber  ElementDataType = "number"
	DataBool    ElementDataType = "bool"
	DataArray   ElementDataType = "array"
	DataObject  ElementDataType = "object"
)

// Classify maps a logical type to its physical category.
func Classify(t ElementType) ElementDataType {
	switch t {
	case ElementString, ElementDate, ElementDateTime, ElementTime, ElementRowPath, ElementConfigPath:
		return DataString
	case ElementInteger:
		return DataInteger
	case ElementNumber:
		return DataNumber
	case ElementBool:
		return DataBool
	case ElementArray:
		return DataArray
	case ElementObject, ElementGeopoint, ElementMimeURI:
		return DataObject
	default:
		panic(fmt.Sprintf("types: unclassified element type %d", int(t)))
	}
}

// ChildSpec names one synthetic child of a composite type.
type ChildSpec struct {
	Name string
	Type ElementType
}

// Component names of the fixed composite types.
const (
	ArrayItemsName     = "items"
	GeopointLatitude   = "latitude"
	GeopointLongitude  = "longitude"
	GeopointAltitude   = "altitude"
	GeopointAccuracy   = "accuracy"
	MimeURIFragment    = "uriFragment"
	MimeURIContentType = "contentType"
)

// ChildSpecsOf returns the ordered synthetic children of t. itemType is only
// consulted for arrays. Non-composite types and objects (whose members are
// user-declared) return nil.
func ChildSpecsOf(t ElementType, itemType ElementType) []ChildSpec {
	switch t {
	case ElementArray:
		return []ChildSpec{{Name: ArrayItemsName, Type: itemType}}
	case ElementGeopoint:
		return []ChildSpec{
			{Name: GeopointLatitude, Type: ElementNumber},
			{Name: GeopointLongitude, Type: ElementNumber},
			{Name: GeopointAltitude, Type: ElementNumber},
			{Name: GeopointAccuracy, Type: ElementNumber},
		}
	case ElementMimeURI:
		return []ChildSpec{
			{Name: MimeURIFragment, Type: ElementString},
			{Name: MimeURIContentType, Type: ElementString},
		}
	case ElementString, ElementInteger, ElementNumber, ElementBool, ElementObject,
		ElementDate, ElementDateTime, ElementTime, ElementRowPath, ElementConfigPath:
		return nil
	default:
		panic(fmt.Sprintf("types: no child specs for element type %d", int(t)))
	}
}

// HasFixedChildren reports whether the catalog dictates t's children
// (geopoint, mimeUri). Arrays have a fixed arity but a declared item type.
func HasFixedChildren(t ElementType) bool {
	return t == ElementGeopoint || t == ElementMimeURI
}

// IsComposite reports whether t decomposes into child columns.
func IsComposite(t ElementType) bool {
	switch t {
	case ElementArray, ElementObject, ElementGeopoint, ElementMimeURI:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (t ElementType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownElementType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ElementType) UnmarshalText(text []byte) error {
	parsed, err := ParseElementType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON encodes the type by name.
func (t ElementType) MarshalJSON() ([]byte, error) {
	text, err := t.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON decodes a type name.
func (t *ElementType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return t.UnmarshalText([]byte(s))
}

// UnmarshalYAML decodes a type name from a YAML scalar.
func (t *ElementType) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return t.UnmarshalText([]byte(s))
}
