package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paulmach/orb"

	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/internal/store"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// InsertRow adds a row to tableID. Keys of row must be retained element keys
// or metadata columns; unset metadata columns are filled in.
func (m *Manager) InsertRow(ctx context.Context, tableID string, row types.Row) (types.Row, error) {
	var stored types.Row
	err := m.withTx(ctx, func(tx *sql.Tx, s stores) error {
		oc, err := loadColumns(ctx, s, tableID)
		if err != nil {
			return err
		}
		for key := range row {
			if types.IsAdminColumn(key) {
				continue
			}
			def, err := oc.Find(key)
			if err != nil {
				return err
			}
			if !def.IsUnitOfRetention() {
				return ftErrors.NewSchemaError(ftErrors.CodeInvalidName,
					fmt.Sprintf("column %s of %s is not stored on its own", key, tableID))
			}
		}
		stored, err = store.InsertRow(ctx, tx, tableID, row, m.cfg.Creator)
		if err != nil {
			return ftErrors.NewStorageFailure(fmt.Sprintf("failed to insert into %s", tableID), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Rows returns every row of tableID ordered by savepoint time.
func (m *Manager) Rows(ctx context.Context, tableID string) ([]types.Row, error) {
	if _, err := requireTable(ctx, storesOver(m.db.Reader()), tableID); err != nil {
		return nil, err
	}
	rows, err := store.ReadRows(ctx, m.db.Reader(), tableID)
	if err != nil {
		return nil, ftErrors.NewStorageFailure(fmt.Sprintf("failed to read rows of %s", tableID), err)
	}
	return rows, nil
}

// Placemark is one row's location for a geopoint column.
type Placemark struct {
	RowID string
	Point orb.Point
}

// Placemarks returns the location of every row with both coordinates of the
// geopoint column geopointKey set, with the bounds enclosing them.
func (m *Manager) Placemarks(ctx context.Context, tableID, geopointKey string) ([]Placemark, orb.Bound, error) {
	oc, err := m.OrderedColumns(ctx, tableID)
	if err != nil {
		return nil, orb.Bound{}, err
	}
	def, err := oc.Find(geopointKey)
	if err != nil {
		return nil, orb.Bound{}, err
	}
	if def.ElementType() != types.ElementGeopoint {
		return nil, orb.Bound{}, ftErrors.NewSchemaError(ftErrors.CodeUnknownType,
			fmt.Sprintf("column %s of %s is %s, not geopoint", geopointKey, tableID, def.ElementType()))
	}

	rows, err := m.Rows(ctx, tableID)
	if err != nil {
		return nil, orb.Bound{}, err
	}

	var marks []Placemark
	var points orb.MultiPoint
	for _, row := range rows {
		p, ok := oc.GeopointValue(def, row)
		if !ok {
			continue
		}
		marks = append(marks, Placemark{RowID: row.ID(), Point: p})
		points = append(points, p)
	}
	return marks, points.Bound(), nil
}

