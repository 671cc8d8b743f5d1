package mvcc

import (
	"mvdb/engine/expr"
	"mvdb/engine/primitives"
	"mvdb/engine/table"
	"mvdb/engine/tuple"
	"mvdb/engine/tx"

	"github.com/rs/zerolog/log"
)

// PredicateValidator checks a serializable transaction's scan predicates
// against every row written by transactions that committed after it began.
// Any committed version newer than its snapshot, or the version its
// snapshot saw, that matches a predicate fails the check. It never lets a
// real conflict through but may reject harmless interleavings.
type PredicateValidator struct {
	mgr *tx.Manager
}

func NewPredicateValidator(mgr *tx.Manager) *PredicateValidator {
	return &PredicateValidator{mgr: mgr}
}

func (v *PredicateValidator) Validate(txn *tx.Transaction, committedAfter []*tx.Transaction) bool {
	predicates := txn.ScanPredicates()
	if len(predicates) == 0 {
		return true
	}

	for _, other := range committedAfter {
		for tableID, rids := range other.WriteSet() {
			preds := predicates[tableID]
			if len(preds) == 0 {
				continue
			}

			info, ok := v.mgr.Catalog().Table(tableID)
			if !ok {
				continue
			}

			for _, rid := range rids {
				if v.conflicts(info, rid, txn.ReadTS(), preds) {
					log.Debug().
						Stringer("txn", txn.ID()).
						Stringer("writer", other.ID()).
						Stringer("rid", rid).
						Msg("mvcc: scan predicate overlaps a concurrent write")
					return false
				}
			}
		}
	}

	return true
}

func (v *PredicateValidator) conflicts(info *table.Info, rid primitives.RID, readTS primitives.Timestamp, preds []expr.Predicate) bool {
	meta, base, head, _, err := GetTupleAndUndoLink(v.mgr, info.Heap, rid)
	if err != nil {
		return true
	}

	var logs []tx.UndoLog
	ts := meta.TS
	link := head

	for {
		if ts.IsCommitted() {
			if version, ok := ReconstructTuple(info.Schema, base, meta, logs); ok && matchesAny(preds, version) {
				return true
			}
			if ts <= readTS {
				return false
			}
		}

		if !link.IsValid() {
			return false
		}
		undo, ok := v.mgr.GetUndoLogOptional(link)
		if !ok {
			return false
		}

		logs = append(logs, undo)
		ts = undo.TS
		link = undo.PrevVersion
	}
}

func matchesAny(preds []expr.Predicate, t tuple.Tuple) bool {
	for _, p := range preds {
		if p.Matches(t) {
			return true
		}
	}
	return false
}
