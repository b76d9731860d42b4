package types

import "errors"

// Catalog errors
var (
	// ErrUnknownElementType is returned when a persisted type name is not in the catalog
	ErrUnknownElementType = errors.New("unknown element type")
)
