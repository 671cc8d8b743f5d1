package tuple

import (
	"strings"
)

// Tuple is an immutable row. Undo logs hold partial tuples: the values of
// the modified columns only, in schema order.
type Tuple struct {
	values []Value
}

func New(values ...Value) Tuple {
	vals := make([]Value, len(values))
	copy(vals, values)
	return Tuple{values: vals}
}

// Empty is the zero-column tuple.
func Empty() Tuple {
	return Tuple{}
}

func (t Tuple) Len() int {
	return len(t.values)
}

func (t Tuple) Value(i int) Value {
	return t.values[i]
}

func (t Tuple) Values() []Value {
	vals := make([]Value, len(t.values))
	copy(vals, t.values)
	return vals
}

// With returns a copy with column i replaced.
func (t Tuple) With(i int, v Value) Tuple {
	vals := t.Values()
	vals[i] = v
	return Tuple{values: vals}
}

func (t Tuple) Equals(other Tuple) bool {
	if len(t.values) != len(other.values) {
		return false
	}
	for i := range t.values {
		if !t.values[i].Equals(other.values[i]) {
			return false
		}
	}
	return true
}

// Project keeps the values whose mask bit is set.
func (t Tuple) Project(mask []bool) Tuple {
	var vals []Value
	for i, v := range t.values {
		if i < len(mask) && mask[i] {
			vals = append(vals, v)
		}
	}
	return Tuple{values: vals}
}

func (t Tuple) String() string {
	parts := make([]string, len(t.values))
	for i, v := range t.values {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
