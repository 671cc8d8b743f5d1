// Package expr holds the scan predicates an executor records while scanning,
// so serializable commits can re-check them against concurrent writes.
package expr

import (
	"fmt"
	"strings"

	"mvdb/engine/tuple"
)

type Op int

const (
	Equals Op = iota
	NotEqual
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
)

func (op Op) String() string {
	switch op {
	case Equals:
		return "="
	case NotEqual:
		return "!="
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	default:
		return "?"
	}
}

type Predicate interface {
	Matches(t tuple.Tuple) bool
	String() string
}

// Compare matches tuples whose column satisfies `column op value`. Nulls and
// mismatched kinds never match.
type Compare struct {
	Column int
	Op     Op
	Value  tuple.Value
}

func ColumnCompare(column int, op Op, value tuple.Value) Compare {
	return Compare{Column: column, Op: op, Value: value}
}

func (c Compare) Matches(t tuple.Tuple) bool {
	if c.Column < 0 || c.Column >= t.Len() {
		return false
	}

	cmp, err := t.Value(c.Column).Compare(c.Value)
	if err != nil {
		return false
	}

	switch c.Op {
	case Equals:
		return cmp == 0
	case NotEqual:
		return cmp != 0
	case LessThan:
		return cmp < 0
	case LessThanOrEqual:
		return cmp <= 0
	case GreaterThan:
		return cmp > 0
	case GreaterThanOrEqual:
		return cmp >= 0
	default:
		return false
	}
}

func (c Compare) String() string {
	return fmt.Sprintf("#%d %s %s", c.Column, c.Op, c.Value)
}

type and []Predicate

// And matches when every operand matches. No operands means always.
func And(predicates ...Predicate) Predicate {
	return and(predicates)
}

func (a and) Matches(t tuple.Tuple) bool {
	for _, p := range a {
		if !p.Matches(t) {
			return false
		}
	}
	return true
}

func (a and) String() string {
	if len(a) == 0 {
		return "true"
	}
	parts := make([]string, len(a))
	for i, p := range a {
		parts[i] = p.String()
	}
	return strings.Join(parts, " AND ")
}

// True matches every tuple; a full scan records it.
func True() Predicate {
	return and(nil)
}
