package columns

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/pkg/types"
)

var leafTypes = []string{"string", "integer", "number", "bool", "date", "datetime", "time", "rowpath", "configpath", "object"}

func elementKeyGen() gopter.Gen {
	return gen.Identifier().
		Map(func(s string) string {
			if len(s) > 32 {
				return s[:32]
			}
			return s
		}).
		SuchThat(func(s string) bool { return ValidateElementKey(s) == nil })
}

func leafRecords(keys []string) []types.Column {
	seen := make(map[string]bool)
	var recs []types.Column
	for i, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		recs = append(recs, leaf(k, k, leafTypes[i%len(leafTypes)]))
	}
	return recs
}

// TestProperty_KeysUniqueAndAscending: every element key of a built
// OrderedColumns is unique and the sequence is strictly ascending.
func TestProperty_KeysUniqueAndAscending(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("element keys strictly ascend", prop.ForAll(
		func(keys []string) bool {
			oc, err := NewOrderedColumns("t", leafRecords(keys))
			if err != nil {
				return false
			}
			ks := oc.ElementKeys()
			for i := 1; i < len(ks); i++ {
				if ks[i-1] >= ks[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(elementKeyGen()),
	))

	properties.TestingRun(t)
}

// TestProperty_FindBinarySearch: Find returns the exact definition for every
// present key and NOT_FOUND for absent ones, never a neighbour.
func TestProperty_FindBinarySearch(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("find hits present keys and misses absent ones", prop.ForAll(
		func(keys []string, probes []string) bool {
			recs := leafRecords(keys)
			oc, err := NewOrderedColumns("t", recs)
			if err != nil {
				return false
			}
			present := make(map[string]bool)
			for _, r := range recs {
				present[r.ElementKey] = true
				def, err := oc.Find(r.ElementKey)
				if err != nil || def.ElementKey() != r.ElementKey {
					return false
				}
			}
			for _, p := range probes {
				if present[p] {
					continue
				}
				def, err := oc.Find(p)
				if def != nil || !ftErrors.HasCode(err, ftErrors.ErrCategorySchema, ftErrors.CodeNotFound) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(elementKeyGen()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func mixedTableRecords() []types.Column {
	recs := []types.Column{
		leaf("name", "name", "string"),
		leaf("age", "age", "integer"),
		parent("tags", "tags", "array", "tags_items"),
		leaf("tags_items", "items", "string"),
		parent("photo", "photo", "mimeUri", "photo_uriFragment", "photo_contentType"),
		leaf("photo_uriFragment", "uriFragment", "string"),
		leaf("photo_contentType", "contentType", "string"),
		parent("household", "household", "object", "household_head", "household_members"),
		leaf("household_head", "head", "string"),
		parent("household_members", "members", "array", "household_members_items"),
		parent("household_members_items", "items", "object", "household_members_items_name"),
		leaf("household_members_items_name", "name", "string"),
	}
	return append(recs, geopointRecords("loc")...)
}

// TestProperty_RetentionIsOrderIndependent: the retention fixed point does not
// depend on the order the records are supplied in.
func TestProperty_RetentionIsOrderIndependent(t *testing.T) {
	base := mixedTableRecords()
	defs, err := Build(base)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want := retention(defs)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("any permutation reaches the same retention", prop.ForAll(
		func(seed int64) bool {
			shuffled := append([]types.Column(nil), base...)
			r := rand.New(rand.NewSource(seed))
			r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

			defs, err := Build(shuffled)
			if err != nil {
				return false
			}
			got := retention(defs)
			for k, v := range want {
				if got[k] != v {
					return false
				}
			}
			return len(got) == len(want)
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestOrderedColumns_Views(t *testing.T) {
	oc, err := NewOrderedColumns("survey", mixedTableRecords())
	if err != nil {
		t.Fatalf("NewOrderedColumns failed: %v", err)
	}

	var top []string
	for _, d := range oc.TopLevel() {
		top = append(top, d.ElementKey())
	}
	wantTop := []string{"age", "household", "loc", "name", "photo", "tags"}
	if len(top) != len(wantTop) {
		t.Fatalf("top level = %v, want %v", top, wantTop)
	}
	for i := range top {
		if top[i] != wantTop[i] {
			t.Errorf("top level = %v, want %v", top, wantTop)
		}
	}

	var retained []string
	for _, d := range oc.RetainedDefinitions() {
		retained = append(retained, d.ElementKey())
	}
	wantRetained := []string{
		"age", "household_head", "household_members",
		"loc_accuracy", "loc_altitude", "loc_latitude", "loc_longitude",
		"name", "photo_contentType", "photo_uriFragment", "tags",
	}
	if !sort.StringsAreSorted(retained) || len(retained) != len(wantRetained) {
		t.Fatalf("retained = %v, want %v", retained, wantRetained)
	}
	for i := range retained {
		if retained[i] != wantRetained[i] {
			t.Errorf("retained = %v, want %v", retained, wantRetained)
		}
	}

	if oc.TableID() != "survey" || oc.Len() != len(mixedTableRecords()) {
		t.Errorf("unexpected table id %q or length %d", oc.TableID(), oc.Len())
	}
	if !oc.Contains("photo_uriFragment") || oc.Contains("photo_uri") {
		t.Error("Contains disagrees with Find")
	}
}

func TestOrderedColumns_GeopointHelpers(t *testing.T) {
	oc, err := NewOrderedColumns("survey", mixedTableRecords())
	if err != nil {
		t.Fatalf("NewOrderedColumns failed: %v", err)
	}

	geos := oc.GeopointDefinitions()
	if len(geos) != 1 || geos[0].ElementKey() != "loc" {
		t.Fatalf("GeopointDefinitions = %v", geos)
	}

	lat, err := oc.LatitudeOf(geos[0])
	if err != nil || lat.ElementKey() != "loc_latitude" {
		t.Fatalf("LatitudeOf = %v, %v", lat, err)
	}
	lon, err := oc.LongitudeOf(geos[0])
	if err != nil || lon.ElementKey() != "loc_longitude" {
		t.Fatalf("LongitudeOf = %v, %v", lon, err)
	}
	if !IsLatitude(lat) || IsLatitude(lon) || !IsLongitude(lon) {
		t.Error("latitude/longitude classification is wrong")
	}

	name, _ := oc.Find("name")
	if _, err := oc.LatitudeOf(name); err == nil {
		t.Error("LatitudeOf a string column should fail")
	}

	pt, ok := oc.GeopointValue(geos[0], types.Row{"loc_latitude": 45.5, "loc_longitude": int64(-122)})
	if !ok || pt.Lat() != 45.5 || pt.Lon() != -122 {
		t.Errorf("GeopointValue = %v, %v", pt, ok)
	}
	if _, ok := oc.GeopointValue(geos[0], types.Row{"loc_latitude": 45.5}); ok {
		t.Error("GeopointValue should fail without a longitude")
	}
	if _, ok := oc.GeopointValue(geos[0], types.Row{"loc_latitude": "north", "loc_longitude": "1"}); ok {
		t.Error("GeopointValue should fail on non-numeric values")
	}
}

func TestOrderedColumns_DataModel(t *testing.T) {
	oc, err := NewOrderedColumns("survey", mixedTableRecords())
	if err != nil {
		t.Fatalf("NewOrderedColumns failed: %v", err)
	}
	model := oc.DataModel()

	loc := model["loc"]
	if loc == nil || loc.Type != types.DataObject || !loc.NotUnitOfRetention {
		t.Fatalf("unexpected loc schema: %+v", loc)
	}
	if lat := loc.Properties["latitude"]; lat == nil || lat.ElementPath != "loc.latitude" || lat.ElementKey != "loc_latitude" {
		t.Errorf("unexpected latitude schema: %+v", lat)
	}

	tags := model["tags"]
	if tags == nil || tags.Items == nil || tags.Items.ElementKey != "tags_items" || !tags.Items.NotUnitOfRetention {
		t.Errorf("unexpected tags schema: %+v", tags)
	}

	members := model["household"].Properties["members"]
	if members == nil || members.Items == nil || members.Items.Properties["name"] == nil {
		t.Fatalf("nested array of objects missing from model: %+v", members)
	}

	sync := model[types.ColumnSyncState]
	if sync == nil || sync.ElementSet != ElementSetInstanceMetadata || !sync.IsNotNullable {
		t.Errorf("unexpected sync_state schema: %+v", sync)
	}
	if model[types.ColumnConflictType].Type != types.DataInteger {
		t.Error("conflict_type should be modelled as integer")
	}
}
