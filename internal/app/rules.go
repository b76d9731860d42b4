package app

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/fieldtables/fieldtables/internal/colorrule"
	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// ColorRuleGroup loads the rule group of one scope of tableID. elementKey
// names the column of a COLUMN-scoped group and is ignored otherwise.
func (m *Manager) ColorRuleGroup(ctx context.Context, tableID string, scope colorrule.Scope, elementKey string) (*colorrule.Group, error) {
	s := storesOver(m.db.Reader())
	oc, err := loadColumns(ctx, s, tableID)
	if err != nil {
		return nil, err
	}
	if scope == colorrule.ScopeColumn {
		if _, err := oc.Find(elementKey); err != nil {
			return nil, err
		}
	}
	return colorrule.Load(ctx, s.kvs, tableID, scope, elementKey)
}

// SaveColorRuleGroup persists g after checking that every rule names a
// column of the table or an allowed metadata column.
func (m *Manager) SaveColorRuleGroup(ctx context.Context, g *colorrule.Group) error {
	return m.withTx(ctx, func(_ *sql.Tx, s stores) error {
		oc, err := loadColumns(ctx, s, g.TableID())
		if err != nil {
			return err
		}
		for _, r := range g.Rules() {
			if oc.Contains(r.ElementKey) || slices.Contains(m.cfg.Rules.AdminColumns, r.ElementKey) {
				continue
			}
			return ftErrors.NewRuleError(ftErrors.CodeUnknownColumn,
				fmt.Sprintf("rule %s references unknown column %s of %s", r.ID, r.ElementKey, g.TableID()))
		}
		if err := g.Save(ctx, s.kvs); err != nil {
			return ftErrors.NewStorageFailure(fmt.Sprintf("failed to save %s rules of %s", g.Scope(), g.TableID()), err)
		}
		return nil
	})
}

// RowColors evaluates the rule group of one scope against every row of
// tableID. guides[i] is nil when no rule matched rows[i] or evaluation
// failed for it.
func (m *Manager) RowColors(ctx context.Context, tableID string, scope colorrule.Scope, elementKey string) (rows []types.Row, guides []*colorrule.ColorGuide, err error) {
	g, err := m.ColorRuleGroup(ctx, tableID, scope, elementKey)
	if err != nil {
		return nil, nil, err
	}
	oc, err := m.OrderedColumns(ctx, tableID)
	if err != nil {
		return nil, nil, err
	}
	rows, err = m.Rows(ctx, tableID)
	if err != nil {
		return nil, nil, err
	}
	return rows, colorrule.EvaluateRows(g, oc, rows, m.cfg.Rules.AdminColumns), nil
}
