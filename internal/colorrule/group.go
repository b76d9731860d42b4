package colorrule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fieldtables/fieldtables/internal/metadata"
)

// ErrRuleNotFound is returned when a rule id is not in the group.
var ErrRuleNotFound = errors.New("colorrule: rule not found")

// Scope is the granularity a group applies at.
type Scope int

const (
	ScopeColumn Scope = iota
	ScopeTable
	ScopeStatusColumn
)

// String returns the scope's name.
func (s Scope) String() string {
	switch s {
	case ScopeColumn:
		return "COLUMN"
	case ScopeTable:
		return "TABLE"
	case ScopeStatusColumn:
		return "STATUS_COLUMN"
	}
	return fmt.Sprintf("Scope(%d)", int(s))
}

// ParseScope parses a scope name.
func ParseScope(s string) (Scope, error) {
	for _, sc := range []Scope{ScopeColumn, ScopeTable, ScopeStatusColumn} {
		if s == sc.String() {
			return sc, nil
		}
	}
	return 0, fmt.Errorf("colorrule: unknown scope %q", s)
}

func (s Scope) partition() string {
	switch s {
	case ScopeColumn:
		return metadata.PartitionColumnColorRuleGroup
	case ScopeTable:
		return metadata.PartitionTableColorRuleGroup
	default:
		return metadata.PartitionStatusColumnColorRuleGroup
	}
}

// Store is the slice of the metadata key-value store rule groups persist to.
type Store interface {
	GetJSON(ctx context.Context, tableID, partition, aspect, key string, v interface{}) (bool, error)
	PutJSON(ctx context.Context, tableID, partition, aspect, key string, v interface{}) error
	Delete(ctx context.Context, tableID, partition, aspect, key string) error
}

// Group is an ordered rule list for one scope of a table. Rule order is
// priority order.
type Group struct {
	tableID    string
	scope      Scope
	elementKey string
	rules      []Rule
	isDefault  bool
	dirty      bool
}

// NewGroup returns an empty group. A column-scoped group needs the element key
// of its column.
func NewGroup(tableID string, scope Scope, elementKey string) (*Group, error) {
	if scope == ScopeColumn && elementKey == "" {
		return nil, fmt.Errorf("colorrule: column scope requires an element key")
	}
	if scope != ScopeColumn {
		elementKey = ""
	}
	return &Group{tableID: tableID, scope: scope, elementKey: elementKey}, nil
}

// Load reads a group from s. A status-column group with no persisted rules
// starts out with DefaultStatusRules and is not written back until edited.
func Load(ctx context.Context, s Store, tableID string, scope Scope, elementKey string) (*Group, error) {
	g, err := NewGroup(tableID, scope, elementKey)
	if err != nil {
		return nil, err
	}

	var rules []Rule
	if _, err := s.GetJSON(ctx, tableID, scope.partition(), g.aspect(), metadata.KeyColorRules, &rules); err != nil {
		return nil, fmt.Errorf("colorrule: failed to load %s rules of %s: %w", scope, tableID, err)
	}
	g.rules = rules

	if len(g.rules) == 0 && scope == ScopeStatusColumn {
		g.rules = DefaultStatusRules()
		g.isDefault = true
	}
	return g, nil
}

func (g *Group) aspect() string {
	if g.scope == ScopeColumn {
		return g.elementKey
	}
	return metadata.AspectDefault
}

// TableID returns the table the group belongs to.
func (g *Group) TableID() string { return g.tableID }

// Scope returns the group's scope.
func (g *Group) Scope() Scope { return g.scope }

// ElementKey returns the column of a column-scoped group.
func (g *Group) ElementKey() string { return g.elementKey }

// IsDefault reports whether the group still holds the unedited built-in rules.
func (g *Group) IsDefault() bool { return g.isDefault && !g.dirty }

// IsDirty reports whether the group has unsaved edits.
func (g *Group) IsDirty() bool { return g.dirty }

// Rules returns a copy of the rules in priority order.
func (g *Group) Rules() []Rule {
	out := make([]Rule, len(g.rules))
	copy(out, g.rules)
	return out
}

// Add appends a rule, assigning it an id when it has none. The stored rule is
// returned.
func (g *Group) Add(r Rule) Rule {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	g.rules = append(g.rules, r)
	g.dirty = true
	return r
}

// Replace swaps the rule with the given id for r, keeping its position.
func (g *Group) Replace(id string, r Rule) error {
	for i := range g.rules {
		if g.rules[i].ID == id {
			if r.ID == "" {
				r.ID = id
			}
			g.rules[i] = r
			g.dirty = true
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
}

// Remove deletes the rule with the given id.
func (g *Group) Remove(id string) error {
	for i := range g.rules {
		if g.rules[i].ID == id {
			g.rules = append(g.rules[:i], g.rules[i+1:]...)
			g.dirty = true
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
}

// RestoreDefaults replaces the rules with the scope's built-in set, which is
// empty except for the status column.
func (g *Group) RestoreDefaults() {
	if g.scope == ScopeStatusColumn {
		g.rules = DefaultStatusRules()
	} else {
		g.rules = nil
	}
	g.dirty = true
}

// Save writes the whole rule list in one put. An empty list removes the
// persisted entry. Unedited defaults are not written.
func (g *Group) Save(ctx context.Context, s Store) error {
	if g.isDefault && !g.dirty {
		return nil
	}

	partition := g.scope.partition()
	var err error
	if len(g.rules) == 0 {
		err = s.Delete(ctx, g.tableID, partition, g.aspect(), metadata.KeyColorRules)
	} else {
		err = s.PutJSON(ctx, g.tableID, partition, g.aspect(), metadata.KeyColorRules, g.rules)
	}
	if err != nil {
		return fmt.Errorf("colorrule: failed to save %s rules of %s: %w", g.scope, g.tableID, err)
	}

	g.dirty = false
	g.isDefault = false
	return nil
}
