package query

import (
	"strconv"
	"strings"

	"mvdb/engine/expr"
	"mvdb/engine/tuple"

	"github.com/pkg/errors"
)

var (
	ErrUnknownColumn = errors.New("query: unknown column")
	ErrUnknownType   = errors.New("query: unknown column type")
	ErrUnknownOp     = errors.New("query: unknown operator")
	ErrInvalidValue  = errors.New("query: invalid value")
)

const null = "NULL"

// Schema builds the schema described by a CREATE command.
func (c *Command) Schema() (*tuple.Schema, error) {
	columns := make([]tuple.Column, len(c.Columns))
	for i, def := range c.Columns {
		kind, err := parseKind(def.Type)
		if err != nil {
			return nil, err
		}
		columns[i] = tuple.Column{Name: def.Name, Kind: kind}
	}
	return tuple.NewSchema(columns...), nil
}

// Tuple binds INSERT values to schema.
func (c *Command) Tuple(schema *tuple.Schema) (tuple.Tuple, error) {
	if len(c.Values) != schema.ColumnCount() {
		return tuple.Tuple{}, errors.Wrapf(ErrInvalidNumberOfTokens, "got %d values, want %d", len(c.Values), schema.ColumnCount())
	}

	values := make([]tuple.Value, len(c.Values))
	for i, raw := range c.Values {
		v, err := ParseValue(schema.Column(i).Kind, raw)
		if err != nil {
			return tuple.Tuple{}, err
		}
		values[i] = v
	}
	return tuple.New(values...), nil
}

// Predicate binds the WHERE clause to schema. No clause matches every row.
func (c *Command) Predicate(schema *tuple.Schema) (expr.Predicate, error) {
	if c.Where == nil {
		return expr.True(), nil
	}

	idx := schema.IndexOf(c.Where.Column)
	if idx < 0 {
		return nil, errors.Wrapf(ErrUnknownColumn, "%q", c.Where.Column)
	}

	op, err := parseOp(c.Where.Op)
	if err != nil {
		return nil, err
	}

	v, err := ParseValue(schema.Column(idx).Kind, c.Where.Value)
	if err != nil {
		return nil, err
	}
	return expr.ColumnCompare(idx, op, v), nil
}

// Assign binds the SET clause to schema and returns the row rewrite it describes.
func (c *Command) Assign(schema *tuple.Schema) (func(tuple.Tuple) tuple.Tuple, error) {
	if c.Set == nil {
		return nil, ErrInvalidCommand
	}

	idx := schema.IndexOf(c.Set.Column)
	if idx < 0 {
		return nil, errors.Wrapf(ErrUnknownColumn, "%q", c.Set.Column)
	}

	v, err := ParseValue(schema.Column(idx).Kind, c.Set.Value)
	if err != nil {
		return nil, err
	}

	return func(t tuple.Tuple) tuple.Tuple {
		return t.With(idx, v)
	}, nil
}

func ParseValue(kind tuple.Kind, raw string) (tuple.Value, error) {
	if strings.ToUpper(raw) == null {
		return tuple.Null(kind), nil
	}

	switch kind {
	case tuple.KindInteger:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return tuple.Value{}, errors.Wrapf(ErrInvalidValue, "%q is not an integer", raw)
		}
		return tuple.Integer(i), nil

	case tuple.KindBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return tuple.Value{}, errors.Wrapf(ErrInvalidValue, "%q is not a boolean", raw)
		}
		return tuple.Boolean(b), nil

	case tuple.KindVarchar:
		return tuple.Varchar(raw), nil

	default:
		return tuple.Value{}, errors.Wrapf(ErrUnknownType, "%s", kind)
	}
}

func parseKind(name string) (tuple.Kind, error) {
	switch strings.ToLower(name) {
	case "integer", "int":
		return tuple.KindInteger, nil
	case "varchar", "text":
		return tuple.KindVarchar, nil
	case "boolean", "bool":
		return tuple.KindBoolean, nil
	default:
		return tuple.KindInvalid, errors.Wrapf(ErrUnknownType, "%q", name)
	}
}

func parseOp(op string) (expr.Op, error) {
	switch op {
	case "=", "==":
		return expr.Equals, nil
	case "!=", "<>":
		return expr.NotEqual, nil
	case "<":
		return expr.LessThan, nil
	case "<=":
		return expr.LessThanOrEqual, nil
	case ">":
		return expr.GreaterThan, nil
	case ">=":
		return expr.GreaterThanOrEqual, nil
	default:
		return 0, errors.Wrapf(ErrUnknownOp, "%q", op)
	}
}
