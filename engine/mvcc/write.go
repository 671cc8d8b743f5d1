package mvcc

import (
	"mvdb/engine/primitives"
	"mvdb/engine/table"
	"mvdb/engine/tuple"
	"mvdb/engine/tx"

	"github.com/pkg/errors"
)

var ErrTupleNotFound = errors.New("mvcc: tuple does not exist")

// InsertTuple appends a new row owned by txn. The row has no history, so no
// chain is created.
func InsertTuple(txn *tx.Transaction, info *table.Info, t tuple.Tuple) (primitives.RID, error) {
	rid, err := info.Heap.InsertTuple(table.TupleMeta{TS: txn.TempTS()}, t)
	if err != nil {
		return primitives.RID{}, err
	}

	txn.AppendWriteSet(info.ID, rid)
	return rid, nil
}

// ModifyTuple replaces the row at rid with target on behalf of txn, or
// deletes it when target is nil. The replaced version is preserved in an
// undo log. A conflicting write taints txn and returns ErrWriteWriteConflict.
func ModifyTuple(mgr *tx.Manager, txn *tx.Transaction, info *table.Info, rid primitives.RID, target *tuple.Tuple) error {
	meta, base, head, found, err := GetTupleAndUndoLink(mgr, info.Heap, rid)
	if err != nil {
		return err
	}

	if IsWriteWriteConflict(meta, txn) {
		txn.SetTainted()
		return errors.Wrapf(ErrWriteWriteConflict, "%s on %s", txn.ID(), rid)
	}
	if meta.IsDeleted {
		return errors.Wrapf(ErrTupleNotFound, "rid %s", rid)
	}

	next := table.TupleMeta{TS: txn.TempTS(), IsDeleted: target == nil}
	nextTuple := base
	if target != nil {
		nextTuple = *target
	}

	if meta.TS == txn.TempTS() {
		return modifyOwnTuple(mgr, txn, info, rid, base, head, found, target, next, nextTuple)
	}

	var link tx.UndoLink
	ok, err := UpdateTupleAndUndoLink(mgr, rid, &link, info.Heap, next, nextTuple,
		overwriteCheck(txn, info.Schema, meta, base, target, &link))
	if err != nil {
		return err
	}
	if !ok {
		txn.SetTainted()
		return errors.Wrapf(ErrWriteWriteConflict, "%s lost the race on %s", txn.ID(), rid)
	}

	txn.AppendWriteSet(info.ID, rid)
	return nil
}

// overwriteCheck accepts the row only while it still holds the version txn
// read as meta. The undo log is built inside the check, under the page write
// lock, so it links to the chain head as it is then rather than as it was
// read; GC may have pruned the chain in between. It is appended to txn and
// stored in link only when the check passes.
func overwriteCheck(txn *tx.Transaction, schema *tuple.Schema, meta table.TupleMeta, base tuple.Tuple, target *tuple.Tuple, link *tx.UndoLink) CheckFunc {
	return func(current table.TupleMeta, _ tuple.Tuple, head tx.UndoLink, found bool) bool {
		if current != meta || IsWriteWriteConflict(current, txn) {
			return false
		}

		prev := tx.InvalidUndoLink
		if found {
			prev = head
		}
		*link = txn.AppendUndoLog(GenerateNewUndoLog(schema, &base, target, meta.TS, prev))
		return true
	}
}

// modifyOwnTuple rewrites a row txn already changed. Its existing undo log,
// if any, is widened first so the chain always leads back to the version
// txn replaced.
func modifyOwnTuple(mgr *tx.Manager, txn *tx.Transaction, info *table.Info, rid primitives.RID, base tuple.Tuple, head tx.UndoLink, found bool, target *tuple.Tuple, next table.TupleMeta, nextTuple tuple.Tuple) error {
	if found && head.PrevTxn == txn.ID() {
		existing, ok := txn.GetUndoLog(head.PrevLogIdx)
		if ok {
			txn.ModifyUndoLog(head.PrevLogIdx, GenerateUpdatedUndoLog(info.Schema, &base, target, existing))
		}
	}

	ok, err := UpdateTupleAndUndoLink(mgr, rid, nil, info.Heap, next, nextTuple,
		func(current table.TupleMeta, _ tuple.Tuple, _ tx.UndoLink, _ bool) bool {
			return current.TS == txn.TempTS()
		})
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(tx.ErrInvariantViolation, "%s lost ownership of %s", txn.ID(), rid)
	}

	txn.AppendWriteSet(info.ID, rid)
	return nil
}
