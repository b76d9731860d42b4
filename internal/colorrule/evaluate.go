package colorrule

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/fieldtables/fieldtables/internal/columns"
	ftErrors "github.com/fieldtables/fieldtables/internal/errors"
	"github.com/fieldtables/fieldtables/pkg/types"
)

// Evaluate returns the colors of the first rule in g that matches row, or nil
// when none does. Rule columns are resolved against oc, then against the
// metadata columns in adminAllowlist. A NULL or missing value never matches.
func Evaluate(g *Group, oc *columns.OrderedColumns, row types.Row, adminAllowlist []string) (*ColorGuide, error) {
	for _, r := range g.rules {
		dt, err := resolveDataType(r.ElementKey, oc, adminAllowlist)
		if err != nil {
			return nil, err
		}
		ok, err := matches(r, dt, row[r.ElementKey])
		if err != nil {
			return nil, err
		}
		if ok {
			return &ColorGuide{Foreground: r.Foreground, Background: r.Background}, nil
		}
	}
	return nil, nil
}

// EvaluateRows evaluates g against each row. A row whose evaluation fails is
// logged and gets a nil guide.
func EvaluateRows(g *Group, oc *columns.OrderedColumns, rows []types.Row, adminAllowlist []string) []*ColorGuide {
	guides := make([]*ColorGuide, len(rows))
	for i, row := range rows {
		guide, err := Evaluate(g, oc, row, adminAllowlist)
		if err != nil {
			log.Printf("[WARN] colorrule: row %s of %s: %v", row.ID(), g.tableID, err)
			continue
		}
		guides[i] = guide
	}
	return guides
}

func resolveDataType(elementKey string, oc *columns.OrderedColumns, adminAllowlist []string) (types.ElementDataType, error) {
	if oc != nil {
		if def, err := oc.Find(elementKey); err == nil {
			return def.DataType(), nil
		}
	}
	for _, name := range adminAllowlist {
		if name == elementKey {
			if elementKey == types.ColumnConflictType {
				return types.DataInteger, nil
			}
			return types.DataString, nil
		}
	}
	return "", ftErrors.NewRuleError(ftErrors.CodeUnknownColumn,
		fmt.Sprintf("rule column %q is neither a table column nor an allowed metadata column", elementKey))
}

func matches(r Rule, dt types.ElementDataType, value interface{}) (bool, error) {
	if value == nil {
		return false, nil
	}

	var cmp int
	switch dt {
	case types.DataInteger:
		a, err := toInt(value)
		if err != nil {
			return false, coercionError(r, dt, err)
		}
		b, err := toInt(r.Value)
		if err != nil {
			return false, coercionError(r, dt, err)
		}
		cmp = compareOrdered(a, b)
	case types.DataNumber:
		a, err := toFloat(value)
		if err != nil {
			return false, coercionError(r, dt, err)
		}
		b, err := toFloat(r.Value)
		if err != nil {
			return false, coercionError(r, dt, err)
		}
		cmp = compareOrdered(a, b)
	case types.DataBool:
		if r.Operator.isOrdering() {
			return false, coercionError(r, dt, fmt.Errorf("operator %s does not apply to booleans", r.Operator))
		}
		a, err := toBool(value)
		if err != nil {
			return false, coercionError(r, dt, err)
		}
		b, err := toBool(r.Value)
		if err != nil {
			return false, coercionError(r, dt, err)
		}
		if a != b {
			cmp = 1
		}
	default:
		cmp = strings.Compare(toString(value), r.Value)
	}

	switch r.Operator {
	case OpEqual:
		return cmp == 0, nil
	case OpNotEqual:
		return cmp != 0, nil
	case OpLessThan:
		return cmp < 0, nil
	case OpLessThanOrEqual:
		return cmp <= 0, nil
	case OpGreaterThan:
		return cmp > 0, nil
	case OpGreaterThanOrEqual:
		return cmp >= 0, nil
	}
	return false, ftErrors.NewRuleError(ftErrors.CodeTypeCoercionFailure,
		fmt.Sprintf("rule %s has invalid operator %d", r.ID, int(r.Operator)))
}

func coercionError(r Rule, dt types.ElementDataType, cause error) error {
	return ftErrors.Wrap(ftErrors.ErrCategoryRule, ftErrors.CodeTypeCoercionFailure,
		fmt.Sprintf("rule %s (%s) cannot compare as %s", r.ID, r, dt), cause)
}

func compareOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

func toInt(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		if x != float64(int64(x)) {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return strconv.ParseInt(strings.TrimSpace(toString(v)), 10, 64)
}

func toFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(toString(v)), 64)
}

func toBool(v interface{}) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case int:
		return x != 0, nil
	}
	return strconv.ParseBool(strings.TrimSpace(toString(v)))
}
