// Package colorrule evaluates ordered color rules against table rows.
package colorrule

import (
	"encoding/json"
	"fmt"
)

// Operator is the comparison a rule applies.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
)

var operatorNames = [...]string{
	OpEqual:              "EQUAL",
	OpNotEqual:           "NOT_EQUAL",
	OpLessThan:           "LESS_THAN",
	OpLessThanOrEqual:    "LESS_THAN_OR_EQUAL",
	OpGreaterThan:        "GREATER_THAN",
	OpGreaterThanOrEqual: "GREATER_THAN_OR_EQUAL",
}

var operatorSymbols = [...]string{
	OpEqual:              "=",
	OpNotEqual:           "!=",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
}

// String returns the operator's persisted name.
func (o Operator) String() string {
	if o < 0 || int(o) >= len(operatorNames) {
		return fmt.Sprintf("Operator(%d)", int(o))
	}
	return operatorNames[o]
}

// Symbol returns the operator's infix symbol.
func (o Operator) Symbol() string {
	if o < 0 || int(o) >= len(operatorSymbols) {
		return "?"
	}
	return operatorSymbols[o]
}

// ParseOperator accepts either an operator name or its symbol.
func ParseOperator(s string) (Operator, error) {
	for i, name := range operatorNames {
		if s == name || s == operatorSymbols[i] {
			return Operator(i), nil
		}
	}
	return 0, fmt.Errorf("colorrule: unknown operator %q", s)
}

// isOrdering reports whether the operator needs an ordered type.
func (o Operator) isOrdering() bool {
	return o != OpEqual && o != OpNotEqual
}

// MarshalJSON encodes the operator by name.
func (o Operator) MarshalJSON() ([]byte, error) {
	if o < 0 || int(o) >= len(operatorNames) {
		return nil, fmt.Errorf("colorrule: invalid operator %d", int(o))
	}
	return json.Marshal(operatorNames[o])
}

// UnmarshalJSON decodes an operator name.
func (o *Operator) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	op, err := ParseOperator(s)
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Rule colors a row or cell when the value at ElementKey compares true
// against Value.
type Rule struct {
	ID         string   `json:"id"`
	ElementKey string   `json:"elementKey"`
	Operator   Operator `json:"operator"`
	Value      string   `json:"value"`
	Foreground string   `json:"foreground"`
	Background string   `json:"background"`
}

// String renders the rule's predicate.
func (r Rule) String() string {
	return fmt.Sprintf("%s %s %q", r.ElementKey, r.Operator.Symbol(), r.Value)
}

// SameAs reports whether two rules are identical apart from their ids.
func (r Rule) SameAs(o Rule) bool {
	return r.ElementKey == o.ElementKey &&
		r.Operator == o.Operator &&
		r.Value == o.Value &&
		r.Foreground == o.Foreground &&
		r.Background == o.Background
}

// ColorGuide is the presentation chosen for a row or cell.
type ColorGuide struct {
	Foreground string `json:"foreground"`
	Background string `json:"background"`
}
