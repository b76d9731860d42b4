package types

// Row is one record of a data table keyed by physical column name. Values are
// what the SQLite driver yields: nil, int64, float64, string or []byte.
type Row map[string]interface{}

// ID returns the row's id column as a string, or "" when missing.
func (r Row) ID() string {
	switch v := r["id"].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

// Has reports whether the row holds a non-NULL value for column.
func (r Row) Has(column string) bool {
	v, ok := r[column]
	return ok && v != nil
}
