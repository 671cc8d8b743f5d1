package tx

import (
	"sync"
	"sync/atomic"

	"mvdb/engine/expr"
	"mvdb/engine/primitives"

	"github.com/rs/zerolog/log"
)

// Transaction is the per-session state the manager hands out on Begin.
type Transaction struct {
	id        primitives.TxnID
	isolation IsolationLevel
	readTS    primitives.Timestamp

	state    atomic.Int32
	commitTS atomic.Uint64

	// repairHorizon is the highest transaction id allocated when GC finished
	// repairing this aborted transaction's rows. Zero until then. Anyone at or
	// below it may still hold a chain head naming this transaction.
	repairHorizon atomic.Uint64

	// endMutex keeps Commit and Abort of the same transaction from interleaving.
	endMutex sync.Mutex

	mutex          sync.Mutex
	undoLogs       []UndoLog
	writeSet       map[primitives.TableID]map[primitives.RID]struct{}
	scanPredicates map[primitives.TableID][]expr.Predicate
}

func newTransaction(id primitives.TxnID, isolation IsolationLevel, readTS primitives.Timestamp) *Transaction {
	txn := &Transaction{
		id:             id,
		isolation:      isolation,
		readTS:         readTS,
		writeSet:       make(map[primitives.TableID]map[primitives.RID]struct{}),
		scanPredicates: make(map[primitives.TableID][]expr.Predicate),
	}
	txn.commitTS.Store(uint64(primitives.InvalidTimestamp))
	return txn
}

func (txn *Transaction) ID() primitives.TxnID {
	return txn.id
}

// TempTS is the timestamp stamped on tuples this transaction wrote and has
// not committed yet.
func (txn *Transaction) TempTS() primitives.Timestamp {
	return txn.id.TempTS()
}

func (txn *Transaction) IsolationLevel() IsolationLevel {
	return txn.isolation
}

func (txn *Transaction) ReadTS() primitives.Timestamp {
	return txn.readTS
}

func (txn *Transaction) CommitTS() primitives.Timestamp {
	return primitives.Timestamp(txn.commitTS.Load())
}

func (txn *Transaction) State() State {
	return State(txn.state.Load())
}

// SetTainted marks a running transaction as doomed by a detected conflict.
// Tainting from any other state is a caller bug.
func (txn *Transaction) SetTainted() {
	if txn.state.CompareAndSwap(int32(Running), int32(Tainted)) {
		log.Debug().Stringer("txn", txn.id).Msg("tx: tainted")
		return
	}

	invariant("tx: only a running transaction can be tainted", txn)
}

// AppendUndoLog stores a copy of l and returns the link that names it.
func (txn *Transaction) AppendUndoLog(l UndoLog) UndoLink {
	txn.mutex.Lock()
	defer txn.mutex.Unlock()

	txn.undoLogs = append(txn.undoLogs, l.Clone())
	return UndoLink{PrevTxn: txn.id, PrevLogIdx: len(txn.undoLogs) - 1}
}

// ModifyUndoLog replaces the log at idx. Links to it stay valid.
func (txn *Transaction) ModifyUndoLog(idx int, l UndoLog) {
	txn.mutex.Lock()
	defer txn.mutex.Unlock()

	if idx < 0 || idx >= len(txn.undoLogs) {
		invariant("tx: undo log index out of range", txn)
	}
	txn.undoLogs[idx] = l.Clone()
}

func (txn *Transaction) GetUndoLog(idx int) (UndoLog, bool) {
	txn.mutex.Lock()
	defer txn.mutex.Unlock()

	if idx < 0 || idx >= len(txn.undoLogs) {
		return UndoLog{}, false
	}
	return txn.undoLogs[idx].Clone(), true
}

func (txn *Transaction) UndoLogCount() int {
	txn.mutex.Lock()
	defer txn.mutex.Unlock()

	return len(txn.undoLogs)
}

func (txn *Transaction) AppendWriteSet(table primitives.TableID, rid primitives.RID) {
	txn.mutex.Lock()
	defer txn.mutex.Unlock()

	rids, ok := txn.writeSet[table]
	if !ok {
		rids = make(map[primitives.RID]struct{})
		txn.writeSet[table] = rids
	}
	rids[rid] = struct{}{}
}

// WriteSet returns a copy of the rows this transaction inserted or modified.
func (txn *Transaction) WriteSet() map[primitives.TableID][]primitives.RID {
	txn.mutex.Lock()
	defer txn.mutex.Unlock()

	ws := make(map[primitives.TableID][]primitives.RID, len(txn.writeSet))
	for table, rids := range txn.writeSet {
		for rid := range rids {
			ws[table] = append(ws[table], rid)
		}
	}
	return ws
}

func (txn *Transaction) AppendScanPredicate(table primitives.TableID, p expr.Predicate) {
	txn.mutex.Lock()
	defer txn.mutex.Unlock()

	txn.scanPredicates[table] = append(txn.scanPredicates[table], p)
}

func (txn *Transaction) ScanPredicates() map[primitives.TableID][]expr.Predicate {
	txn.mutex.Lock()
	defer txn.mutex.Unlock()

	preds := make(map[primitives.TableID][]expr.Predicate, len(txn.scanPredicates))
	for table, ps := range txn.scanPredicates {
		preds[table] = append([]expr.Predicate(nil), ps...)
	}
	return preds
}

func (txn *Transaction) markRepaired(horizon primitives.TxnID) {
	txn.repairHorizon.CompareAndSwap(0, uint64(horizon))
}

func (txn *Transaction) repaired() (primitives.TxnID, bool) {
	h := txn.repairHorizon.Load()
	return primitives.TxnID(h), h != 0
}

func (txn *Transaction) transition(from, to State) bool {
	return txn.state.CompareAndSwap(int32(from), int32(to))
}

func invariant(msg string, txn *Transaction) {
	log.Panic().
		Stringer("txn", txn.id).
		Stringer("state", txn.State()).
		Msg(msg)
}
