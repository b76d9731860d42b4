package columns

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// MaxElementKeyLength bounds element keys so that derived column names stay
// well inside SQLite's identifier limits.
const MaxElementKeyLength = 64

var sqlKeywords = map[string]struct{}{
	"abort": {}, "add": {}, "all": {}, "alter": {}, "and": {}, "as": {}, "asc": {},
	"between": {}, "by": {}, "case": {}, "check": {}, "column": {}, "commit": {},
	"constraint": {}, "create": {}, "cross": {}, "default": {}, "delete": {},
	"desc": {}, "distinct": {}, "drop": {}, "else": {}, "end": {}, "escape": {},
	"except": {}, "exists": {}, "foreign": {}, "from": {}, "full": {}, "group": {},
	"having": {}, "in": {}, "index": {}, "inner": {}, "insert": {}, "intersect": {},
	"into": {}, "is": {}, "join": {}, "key": {}, "left": {}, "like": {}, "limit": {},
	"natural": {}, "not": {}, "null": {}, "offset": {}, "on": {}, "or": {}, "order": {},
	"outer": {}, "primary": {}, "references": {}, "right": {}, "rollback": {},
	"rowid": {}, "select": {}, "set": {}, "table": {}, "temporary": {}, "then": {},
	"to": {}, "transaction": {}, "union": {}, "unique": {}, "update": {}, "using": {},
	"values": {}, "when": {}, "where": {}, "with": {},
}

// IsValidIdentifier reports whether s may be used as a user-defined column or
// table identifier: a letter first, then letters, digits or underscores.
func IsValidIdentifier(s string) bool {
	if s == "" || utf8.RuneCountInString(s) > MaxElementKeyLength {
		return false
	}
	for i, r := range s {
		switch {
		case unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || r == '_'):
		default:
			return false
		}
	}
	return true
}

// ValidateElementKey checks that key is usable as a user column name.
func ValidateElementKey(key string) error {
	if !IsValidIdentifier(key) {
		return ftErrors.NewSchemaError(ftErrors.CodeInvalidName,
			fmt.Sprintf("element key %q is not a valid identifier", key))
	}
	if types.IsAdminColumn(key) {
		return ftErrors.NewSchemaError(ftErrors.CodeInvalidName,
			fmt.Sprintf("element key %q collides with a metadata column", key))
	}
	if _, ok := sqlKeywords[strings.ToLower(key)]; ok {
		return ftErrors.NewSchemaError(ftErrors.CodeInvalidName,
			fmt.Sprintf("element key %q is a reserved word", key))
	}
	return nil
}

// ValidateTableID checks that id is usable as a table name.
func ValidateTableID(id string) error {
	if id == "" {
		return ftErrors.NewSchemaError(ftErrors.CodeEmptyTableName, "table id is empty")
	}
	if !IsValidIdentifier(id) {
		return ftErrors.NewSchemaError(ftErrors.CodeInvalidName,
			fmt.Sprintf("table id %q is not a valid identifier", id))
	}
	if _, ok := sqlKeywords[strings.ToLower(id)]; ok {
		return ftErrors.NewSchemaError(ftErrors.CodeInvalidName,
			fmt.Sprintf("table id %q is a reserved word", id))
	}
	return nil
}

// ChildElementKey derives a child's key from its parent key and name.
func ChildElementKey(parentKey, childName string) string {
	return parentKey + "_" + childName
}
