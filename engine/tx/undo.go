package tx

import (
	"fmt"

	"mvdb/engine/primitives"
	"mvdb/engine/tuple"
)

// UndoLink points at one undo log inside another transaction's buffer. It
// is resolved through the manager's registry and never owns the log.
type UndoLink struct {
	PrevTxn    primitives.TxnID
	PrevLogIdx int
}

// InvalidUndoLink terminates a version chain.
var InvalidUndoLink = UndoLink{PrevTxn: primitives.InvalidTxnID}

func (l UndoLink) IsValid() bool {
	return l.PrevTxn.IsValid()
}

func (l UndoLink) String() string {
	if !l.IsValid() {
		return "none"
	}
	return fmt.Sprintf("%s@%d", l.PrevTxn, l.PrevLogIdx)
}

// UndoLog is a reverse delta: applied to a newer version it yields the
// version that was current at TS.
type UndoLog struct {
	IsDeleted      bool
	ModifiedFields []bool
	Tuple          tuple.Tuple
	TS             primitives.Timestamp
	PrevVersion    UndoLink
}

// Clone copies the modified-fields bitmap so callers can't alias it.
func (l UndoLog) Clone() UndoLog {
	fields := make([]bool, len(l.ModifiedFields))
	copy(fields, l.ModifiedFields)
	l.ModifiedFields = fields
	return l
}

// ModifiedCount is the number of columns captured in Tuple.
func (l UndoLog) ModifiedCount() int {
	n := 0
	for _, m := range l.ModifiedFields {
		if m {
			n++
		}
	}
	return n
}

// ApplyTo patches the captured columns onto base. Deletion is left to the caller.
func (l UndoLog) ApplyTo(base tuple.Tuple) tuple.Tuple {
	values := base.Values()
	for len(values) < len(l.ModifiedFields) {
		values = append(values, tuple.Value{})
	}
	next := 0

	for i, modified := range l.ModifiedFields {
		if !modified || next >= l.Tuple.Len() {
			continue
		}
		values[i] = l.Tuple.Value(next)
		next++
	}

	return tuple.New(values...)
}
