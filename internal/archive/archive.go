// Package archive exports table definitions (column records and metadata
// entries) as snappy-compressed JSON documents on object storage.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/golang/snappy"

	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/internal/metadata"
	"github.com/fieldtables/fieldtables/internal/storage"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// FormatVersion is the version of the definition document written by Encode.
const FormatVersion = 1

const (
	prefix   = "tables/"
	fileName = "definition.json.sz"
)

// Definition is everything needed to recreate a table's schema and metadata.
type Definition struct {
	Version    int              `json:"version"`
	TableID    string           `json:"table_id"`
	SchemaETag string           `json:"schema_etag"`
	Columns    []types.Column   `json:"columns"`
	Entries    []metadata.Entry `json:"entries"`
	ExportedAt time.Time        `json:"exported_at"`
}

// ObjectPath returns where a table's definition is stored.
func ObjectPath(tableID string) string {
	return path.Join(prefix, tableID, fileName)
}

// Encode serializes and compresses a definition.
func Encode(def *Definition) ([]byte, error) {
	raw, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to marshal definition of %s: %w", def.TableID, err)
	}
	return snappy.Encode(nil, raw), nil
}

// Decode decompresses and parses a definition. Damaged or foreign documents
// fail with CORRUPT_ARCHIVE.
func Decode(data []byte) (*Definition, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, ftErrors.NewArchiveError("failed to decompress definition", err)
	}

	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, ftErrors.NewArchiveError("failed to parse definition", err)
	}
	if def.Version != FormatVersion {
		return nil, ftErrors.NewArchiveError(fmt.Sprintf("unsupported definition version %d", def.Version), nil)
	}
	if def.TableID == "" {
		return nil, ftErrors.NewArchiveError("definition has no table id", nil)
	}
	return &def, nil
}

// Archive stores definitions on an ObjectStorage.
type Archive struct {
	storage storage.ObjectStorage
}

// New creates an archive over s.
func New(s storage.ObjectStorage) *Archive {
	return &Archive{storage: s}
}

// Save writes def, replacing any earlier export of the same table. The
// object's etag is returned.
func (a *Archive) Save(ctx context.Context, def *Definition) (string, error) {
	def.Version = FormatVersion
	if def.ExportedAt.IsZero() {
		def.ExportedAt = time.Now().UTC()
	}
	data, err := Encode(def)
	if err != nil {
		return "", err
	}

	etag, err := a.storage.Put(ctx, ObjectPath(def.TableID), data)
	if err != nil {
		return "", fmt.Errorf("archive: failed to store definition of %s: %w", def.TableID, err)
	}
	log.Printf("archive: exported %s (%d columns, %d entries, %d bytes)",
		def.TableID, len(def.Columns), len(def.Entries), len(data))
	return etag, nil
}

// Load reads the stored definition of tableID.
func (a *Archive) Load(ctx context.Context, tableID string) (*Definition, error) {
	data, err := a.storage.Get(ctx, ObjectPath(tableID))
	if err != nil {
		return nil, fmt.Errorf("archive: failed to read definition of %s: %w", tableID, err)
	}
	def, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if def.TableID != tableID {
		return nil, ftErrors.NewArchiveError(
			fmt.Sprintf("definition at %s belongs to %s", ObjectPath(tableID), def.TableID), nil)
	}
	return def, nil
}

// List returns the ids of all exported tables.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	objects, err := a.storage.List(ctx, strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return nil, fmt.Errorf("archive: failed to list definitions: %w", err)
	}

	var ids []string
	for _, obj := range objects {
		rest := strings.TrimPrefix(obj, prefix)
		if rest == obj {
			continue
		}
		if id, ok := strings.CutSuffix(rest, "/"+fileName); ok && !strings.Contains(id, "/") {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Delete removes the stored definition of tableID.
func (a *Archive) Delete(ctx context.Context, tableID string) error {
	if err := a.storage.Delete(ctx, ObjectPath(tableID)); err != nil {
		return fmt.Errorf("archive: failed to delete definition of %s: %w", tableID, err)
	}
	return nil
}
