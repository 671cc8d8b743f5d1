package tuple

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

var ErrIncomparable = errors.New("tuple: values are not comparable")

type Kind uint8

const (
	KindInvalid Kind = iota
	KindInteger
	KindVarchar
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "INTEGER"
	case KindVarchar:
		return "VARCHAR"
	case KindBoolean:
		return "BOOLEAN"
	default:
		return "INVALID"
	}
}

// Value is an immutable column value. A null value still carries its kind.
type Value struct {
	kind Kind
	null bool
	i    int64
	s    string
	b    bool
}

func Integer(v int64) Value {
	return Value{kind: KindInteger, i: v}
}

func Varchar(v string) Value {
	return Value{kind: KindVarchar, s: v}
}

func Boolean(v bool) Value {
	return Value{kind: KindBoolean, b: v}
}

func Null(kind Kind) Value {
	return Value{kind: kind, null: true}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.null
}

func (v Value) AsInteger() int64 {
	return v.i
}

func (v Value) AsVarchar() string {
	return v.s
}

func (v Value) AsBoolean() bool {
	return v.b
}

// Equals is content equality. Two nulls of the same kind are equal, which is
// what version diffing needs, not SQL three-valued logic.
func (v Value) Equals(other Value) bool {
	if v.kind != other.kind || v.null != other.null {
		return false
	}
	if v.null {
		return true
	}

	switch v.kind {
	case KindInteger:
		return v.i == other.i
	case KindVarchar:
		return v.s == other.s
	case KindBoolean:
		return v.b == other.b
	default:
		return true
	}
}

// Compare returns -1, 0 or 1. Comparing a null or mixing kinds is an error.
func (v Value) Compare(other Value) (int, error) {
	if v.kind != other.kind {
		return 0, errors.Wrapf(ErrIncomparable, "%s vs %s", v.kind, other.kind)
	}
	if v.null || other.null {
		return 0, errors.Wrap(ErrIncomparable, "null operand")
	}

	switch v.kind {
	case KindInteger:
		return compareOrdered(v.i, other.i), nil
	case KindVarchar:
		return compareOrdered(v.s, other.s), nil
	case KindBoolean:
		return compareOrdered(boolRank(v.b), boolRank(other.b)), nil
	default:
		return 0, errors.Wrapf(ErrIncomparable, "kind %s", v.kind)
	}
}

func (v Value) String() string {
	if v.null {
		return "<NULL>"
	}

	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindVarchar:
		return v.s
	case KindBoolean:
		return strconv.FormatBool(v.b)
	default:
		return fmt.Sprintf("<%s>", v.kind)
	}
}

func compareOrdered[T int64 | string | int](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
