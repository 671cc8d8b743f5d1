// Package mvcc reconstructs row versions from undo-log chains and provides
// the compound heap and directory operations an executor writes through.
package mvcc

import (
	"mvdb/engine/primitives"
	"mvdb/engine/table"
	"mvdb/engine/tx"

	"github.com/pkg/errors"
)

// ErrWriteWriteConflict is returned when a row was changed by a transaction
// the writer cannot see.
var ErrWriteWriteConflict = errors.WithMessage(tx.ErrConflict, "mvcc: write-write conflict")

// IsVisible reports whether a version stamped with ts is part of reader's snapshot.
func IsVisible(ts primitives.Timestamp, reader *tx.Transaction) bool {
	if ts == reader.TempTS() {
		return true
	}
	return ts.IsCommitted() && ts <= reader.ReadTS()
}

// IsWriteWriteConflict reports whether writer may not overwrite a row
// carrying meta: the row was modified by someone else after writer's
// snapshot, or is still held by another uncommitted writer.
func IsWriteWriteConflict(meta table.TupleMeta, writer *tx.Transaction) bool {
	if meta.TS == writer.TempTS() {
		return false
	}
	if meta.TS.IsTemporary() {
		return true
	}
	return meta.TS > writer.ReadTS()
}
