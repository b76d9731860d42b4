package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spaolacci/murmur3"

	"github.com/fieldtables/fieldtables/pkg/types"
)

// Fingerprint returns a stable etag for a set of column records. Records are
// hashed in element key order, so the input order does not matter.
func Fingerprint(records []types.Column) string {
	sorted := make([]types.Column, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ElementKey < sorted[j].ElementKey
	})
	for i := range sorted {
		if sorted[i].ListChildElementKeys == nil {
			sorted[i].ListChildElementKeys = []string{}
		}
	}

	data, err := json.Marshal(sorted)
	if err != nil {
		// Column only holds strings; Marshal cannot fail
		panic(fmt.Sprintf("schema: fingerprint marshal: %v", err))
	}
	h1, h2 := murmur3.Sum128(data)
	return fmt.Sprintf("%016x%016x", h1, h2)
}
