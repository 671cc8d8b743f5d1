package tuple

import (
	"strings"
)

type Column struct {
	Name string
	Kind Kind
}

// Schema is an ordered, immutable list of columns.
type Schema struct {
	columns []Column
}

func NewSchema(columns ...Column) *Schema {
	cols := make([]Column, len(columns))
	copy(cols, columns)
	return &Schema{columns: cols}
}

func (s *Schema) ColumnCount() int {
	return len(s.columns)
}

func (s *Schema) Column(i int) Column {
	return s.columns[i]
}

// IndexOf returns the position of the named column, or -1.
func (s *Schema) IndexOf(name string) int {
	for i, c := range s.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Project keeps the columns whose mask bit is set, in schema order. Undo logs
// store their partial tuples in this shape.
func (s *Schema) Project(mask []bool) *Schema {
	var cols []Column
	for i, c := range s.columns {
		if i < len(mask) && mask[i] {
			cols = append(cols, c)
		}
	}
	return &Schema{columns: cols}
}

func (s *Schema) String() string {
	parts := make([]string, len(s.columns))
	for i, c := range s.columns {
		parts[i] = c.Name + ":" + c.Kind.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
