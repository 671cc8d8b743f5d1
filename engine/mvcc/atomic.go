package mvcc

import (
	"mvdb/engine/primitives"
	"mvdb/engine/table"
	"mvdb/engine/tuple"
	"mvdb/engine/tx"
)

// CheckFunc inspects the row as it is under the page write lock and decides
// whether an update may proceed.
type CheckFunc func(meta table.TupleMeta, t tuple.Tuple, head tx.UndoLink, found bool) bool

// GetTupleAndUndoLink reads a row and its chain head as one consistent pair.
func GetTupleAndUndoLink(mgr *tx.Manager, heap table.Heap, rid primitives.RID) (table.TupleMeta, tuple.Tuple, tx.UndoLink, bool, error) {
	guard, err := heap.AcquireReadLock(rid)
	if err != nil {
		return table.TupleMeta{}, tuple.Tuple{}, tx.InvalidUndoLink, false, err
	}
	defer guard.Release()

	meta, t, err := guard.GetTuple(rid)
	if err != nil {
		return table.TupleMeta{}, tuple.Tuple{}, tx.InvalidUndoLink, false, err
	}

	head, found := mgr.GetUndoLink(rid)
	return meta, t, head, found, nil
}

// UpdateTupleAndUndoLink overwrites a row and installs link as its chain
// head while holding the page write lock, provided check accepts the row's
// current state. A nil link leaves the chain as is; a nil check always
// passes. It reports false, changing nothing, when check rejects. link is
// dereferenced only after check passes, so check may fill it in.
func UpdateTupleAndUndoLink(mgr *tx.Manager, rid primitives.RID, link *tx.UndoLink, heap table.Heap, meta table.TupleMeta, t tuple.Tuple, check CheckFunc) (bool, error) {
	guard, err := heap.AcquireWriteLock(rid)
	if err != nil {
		return false, err
	}
	defer guard.Release()

	currentMeta, current, err := guard.GetTuple(rid)
	if err != nil {
		return false, err
	}

	head, found := mgr.GetUndoLink(rid)
	if check != nil && !check(currentMeta, current, head, found) {
		return false, nil
	}

	if err := guard.UpdateTupleInPlace(meta, t, rid); err != nil {
		return false, err
	}

	if link != nil {
		mgr.UpdateUndoLink(rid, *link, nil)
	}
	return true, nil
}
