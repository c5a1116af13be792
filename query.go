// Query operators shared by Database.Find and RangeLockService's
// range-aware conflict detection — both need the exact same "does value
// w satisfy op against values" semantics (spec.md §4.3, §4.6).
package vellum

import "regexp"

// Operator enumerates the comparison operators a range query or a range
// lock token may carry.
type Operator int

const (
	OpEquals Operator = iota + 1
	OpNotEquals
	OpGreaterThan
	OpGreaterThanOrEquals
	OpLessThan
	OpLessThanOrEquals
	OpBetween
	OpRegex
	OpNotRegex
	// OpLinksTo is normalized to OpEquals on a link-typed value before
	// it reaches Satisfies; it is kept here only so callers can accept
	// it at the API boundary.
	OpLinksTo
)

// NormalizeOperator converts LINKS_TO into an EQUALS query against a
// link-typed value, per spec.md §4.3.
func NormalizeOperator(op Operator, values []Value) (Operator, []Value) {
	if op == OpLinksTo && len(values) == 1 {
		return OpEquals, values
	}
	return op, values
}

// Satisfies reports whether value w matches op against values. BETWEEN is
// half-open: [values[0], values[1]).
func Satisfies(w Value, op Operator, values []Value) bool {
	switch op {
	case OpEquals:
		return len(values) == 1 && w.Equal(values[0])
	case OpNotEquals:
		return len(values) == 1 && !w.Equal(values[0])
	case OpGreaterThan:
		return len(values) == 1 && w.Compare(values[0]) > 0
	case OpGreaterThanOrEquals:
		return len(values) == 1 && w.Compare(values[0]) >= 0
	case OpLessThan:
		return len(values) == 1 && w.Compare(values[0]) < 0
	case OpLessThanOrEquals:
		return len(values) == 1 && w.Compare(values[0]) <= 0
	case OpBetween:
		return len(values) == 2 && w.Compare(values[0]) >= 0 && w.Compare(values[1]) < 0
	case OpRegex:
		if len(values) != 1 || values[0].Type() != TypeString {
			return false
		}
		re, err := regexp.Compile(values[0].Str())
		if err != nil {
			return false
		}
		return w.Type() == TypeString && re.MatchString(w.Str())
	case OpNotRegex:
		return !Satisfies(w, OpRegex, values)
	default:
		return false
	}
}
