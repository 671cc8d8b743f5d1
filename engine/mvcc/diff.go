package mvcc

import (
	"mvdb/engine/primitives"
	"mvdb/engine/tuple"
	"mvdb/engine/tx"
)

// GenerateNewUndoLog builds the log that turns target back into base. A nil
// base means the row did not exist before; a nil target means it is being
// deleted.
func GenerateNewUndoLog(schema *tuple.Schema, base, target *tuple.Tuple, ts primitives.Timestamp, prev tx.UndoLink) tx.UndoLog {
	n := schema.ColumnCount()
	fields := make([]bool, n)
	undo := tx.UndoLog{
		ModifiedFields: fields,
		Tuple:          tuple.Empty(),
		TS:             ts,
		PrevVersion:    prev,
	}

	switch {
	case base == nil:
		undo.IsDeleted = true
	case target == nil:
		for i := range fields {
			fields[i] = true
		}
		undo.Tuple = fit(schema, *base)
	default:
		before, after := fit(schema, *base), fit(schema, *target)
		for i := range fields {
			fields[i] = !before.Value(i).Equals(after.Value(i))
		}
		undo.Tuple = before.Project(fields)
	}

	return undo
}

// GenerateUpdatedUndoLog folds another change by the same transaction into
// existing. base is the row as the transaction last left it; existing keeps
// the oldest value of every column it already holds.
func GenerateUpdatedUndoLog(schema *tuple.Schema, base, target *tuple.Tuple, existing tx.UndoLog) tx.UndoLog {
	if existing.IsDeleted || base == nil {
		return existing.Clone()
	}

	current := fit(schema, *base)
	original := fit(schema, existing.ApplyTo(current))
	fields := make([]bool, schema.ColumnCount())

	for i := range fields {
		switch {
		case i < len(existing.ModifiedFields) && existing.ModifiedFields[i]:
			fields[i] = true
		case target == nil:
			fields[i] = true
		default:
			fields[i] = !current.Value(i).Equals(fit(schema, *target).Value(i))
		}
	}

	return tx.UndoLog{
		ModifiedFields: fields,
		Tuple:          original.Project(fields),
		TS:             existing.TS,
		PrevVersion:    existing.PrevVersion,
	}
}
