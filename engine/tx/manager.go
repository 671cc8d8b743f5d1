package tx

import (
	"sort"
	"sync"
	"sync/atomic"

	"mvdb/engine/primitives"
	"mvdb/engine/table"
	"mvdb/observability"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultGCWorkers = 8

type ManagerOptions struct {
	// MaxActiveTransactions bounds running and tainted transactions; 0 means unbounded.
	MaxActiveTransactions int
	// GCWorkers bounds how many pages garbage collection scans at once.
	GCWorkers int
}

// Validator decides at commit time whether a serializable transaction may
// commit, given every transaction that committed after it began.
type Validator interface {
	Validate(txn *Transaction, committedAfter []*Transaction) bool
}

// Manager owns the transaction registry, the version-chain directory and the
// watermark. Commits are serialized; everything else runs concurrently.
type Manager struct {
	catalog   *table.Catalog
	directory *VersionDirectory
	watermark *Watermark
	validator Validator

	commitMutex sync.Mutex

	txnMapMutex sync.RWMutex
	txnMap      map[primitives.TxnID]*Transaction
	activeCount int

	nextTxnID    atomic.Uint64
	lastCommitTS atomic.Uint64

	options ManagerOptions
}

func NewManager(catalog *table.Catalog, options ManagerOptions) *Manager {
	if options.GCWorkers <= 0 {
		options.GCWorkers = defaultGCWorkers
	}

	tm := &Manager{
		catalog:   catalog,
		directory: NewVersionDirectory(),
		watermark: NewWatermark(0),
		txnMap:    make(map[primitives.TxnID]*Transaction),
		options:   options,
	}
	tm.nextTxnID.Store(uint64(primitives.TxnStartID))
	return tm
}

// SetValidator installs the serializable commit check. Without one,
// serializable transactions commit like snapshot ones.
func (tm *Manager) SetValidator(v Validator) {
	tm.commitMutex.Lock()
	defer tm.commitMutex.Unlock()

	tm.validator = v
}

func (tm *Manager) Catalog() *table.Catalog {
	return tm.catalog
}

func (tm *Manager) Begin(isolation IsolationLevel) (*Transaction, error) {
	tm.txnMapMutex.Lock()
	defer tm.txnMapMutex.Unlock()

	if tm.options.MaxActiveTransactions > 0 && tm.activeCount >= tm.options.MaxActiveTransactions {
		return nil, ErrMaxActiveTransactionsExceeded
	}

	id := primitives.TxnID(tm.nextTxnID.Add(1) - 1)
	readTS := primitives.Timestamp(tm.lastCommitTS.Load())
	txn := newTransaction(id, isolation, readTS)

	if err := tm.watermark.AddTxn(readTS); err != nil {
		log.Panic().Err(err).Stringer("txn", id).Msg("tx: failed to register snapshot")
	}

	tm.txnMap[id] = txn
	tm.activeCount++

	observability.TxnCounter.WithLabelValues(observability.EventBegin).Inc()
	observability.TxnRegistryGauge.Set(float64(len(tm.txnMap)))

	log.Debug().
		Stringer("txn", id).
		Stringer("isolation", isolation).
		Uint64("read_ts", uint64(readTS)).
		Msg("tx: begin")

	return txn, nil
}

// Commit assigns the next commit timestamp and makes every write of txn
// visible at it. A tainted transaction, or a serializable one that fails
// validation, is aborted instead; both errors wrap ErrConflict.
func (tm *Manager) Commit(txn *Transaction) error {
	txn.endMutex.Lock()
	defer txn.endMutex.Unlock()

	tm.commitMutex.Lock()
	defer tm.commitMutex.Unlock()

	switch txn.State() {
	case Running:
	case Tainted:
		tm.finishAbort(txn)
		return errors.Wrapf(ErrTransactionTainted, "commit %s", txn.id)
	default:
		return errors.Wrapf(ErrTransactionNotRunning, "commit %s in state %s", txn.id, txn.State())
	}

	if txn.isolation == Serializable && tm.validator != nil {
		if !tm.validator.Validate(txn, tm.committedAfter(txn.readTS)) {
			tm.finishAbort(txn)
			observability.TxnCounter.WithLabelValues(observability.EventConflict).Inc()
			return errors.Wrapf(ErrSerializationFailure, "commit %s", txn.id)
		}
	}

	commitTS := primitives.Timestamp(tm.lastCommitTS.Load() + 1)

	if err := tm.restamp(txn, commitTS); err != nil {
		log.Panic().Err(err).Stringer("txn", txn.id).Msg("tx: failed to stamp commit timestamp")
	}

	tm.txnMapMutex.Lock()
	txn.commitTS.Store(uint64(commitTS))
	tm.lastCommitTS.Store(uint64(commitTS))
	tm.watermark.UpdateCommitTs(commitTS)
	tm.watermark.RemoveTxn(txn.readTS)
	if !txn.transition(Running, Committed) {
		tm.txnMapMutex.Unlock()
		invariant("tx: transaction tainted while committing", txn)
	}
	tm.activeCount--
	tm.txnMapMutex.Unlock()

	observability.TxnCounter.WithLabelValues(observability.EventCommit).Inc()
	observability.WatermarkGauge.Set(float64(tm.watermark.GetWatermark()))

	log.Debug().
		Stringer("txn", txn.id).
		Uint64("commit_ts", uint64(commitTS)).
		Msg("tx: commit")

	return nil
}

// Abort ends a running or tainted transaction. Its rows stay in the heap
// under its temporary timestamp, invisible to everyone else, until garbage
// collection restores them.
func (tm *Manager) Abort(txn *Transaction) error {
	txn.endMutex.Lock()
	defer txn.endMutex.Unlock()

	if state := txn.State(); state.IsTerminal() {
		return errors.Wrapf(ErrTransactionNotRunning, "abort %s in state %s", txn.id, state)
	}

	tm.finishAbort(txn)
	return nil
}

// finishAbort moves a running or tainted transaction to Aborted. A statement
// may taint it concurrently, so both source states are tried.
func (tm *Manager) finishAbort(txn *Transaction) {
	tm.txnMapMutex.Lock()
	defer tm.txnMapMutex.Unlock()

	from := Running
	if !txn.transition(Running, Aborted) {
		from = Tainted
		if !txn.transition(Tainted, Aborted) {
			invariant("tx: abort of a finished transaction", txn)
		}
	}
	tm.watermark.RemoveTxn(txn.readTS)
	tm.activeCount--

	observability.TxnCounter.WithLabelValues(observability.EventAbort).Inc()

	log.Debug().
		Stringer("txn", txn.id).
		Stringer("from", from).
		Msg("tx: abort")
}

// restamp moves every row txn wrote from its temporary timestamp to commitTS.
// Undo logs need no restamp: a log always carries the timestamp of the
// version it replaced, never the writer's own.
func (tm *Manager) restamp(txn *Transaction, commitTS primitives.Timestamp) error {
	temp := txn.TempTS()

	for tableID, rids := range txn.WriteSet() {
		info, ok := tm.catalog.Table(tableID)
		if !ok {
			return errors.Wrapf(table.ErrTableNotFound, "table %d", tableID)
		}

		for _, rid := range rids {
			if err := restampRow(info.Heap, rid, temp, commitTS); err != nil {
				return err
			}
		}
	}
	return nil
}

func restampRow(heap table.Heap, rid primitives.RID, from, to primitives.Timestamp) error {
	guard, err := heap.AcquireWriteLock(rid)
	if err != nil {
		return err
	}
	defer guard.Release()

	meta, tup, err := guard.GetTuple(rid)
	if err != nil {
		return err
	}

	if meta.TS != from {
		return nil
	}

	meta.TS = to
	return guard.UpdateTupleInPlace(meta, tup, rid)
}

func (tm *Manager) committedAfter(ts primitives.Timestamp) []*Transaction {
	tm.txnMapMutex.RLock()
	defer tm.txnMapMutex.RUnlock()

	var txns []*Transaction
	for _, txn := range tm.txnMap {
		if txn.State() == Committed && txn.CommitTS() > ts {
			txns = append(txns, txn)
		}
	}
	return txns
}

// Transaction looks a transaction up in the registry.
func (tm *Manager) Transaction(id primitives.TxnID) (*Transaction, bool) {
	tm.txnMapMutex.RLock()
	defer tm.txnMapMutex.RUnlock()

	txn, ok := tm.txnMap[id]
	return txn, ok
}

// Transactions returns the registry ordered by id.
func (tm *Manager) Transactions() []*Transaction {
	tm.txnMapMutex.RLock()
	txns := make([]*Transaction, 0, len(tm.txnMap))
	for _, txn := range tm.txnMap {
		txns = append(txns, txn)
	}
	tm.txnMapMutex.RUnlock()

	sort.Slice(txns, func(i, j int) bool {
		return txns[i].id < txns[j].id
	})
	return txns
}

func (tm *Manager) LastCommitTS() primitives.Timestamp {
	return primitives.Timestamp(tm.lastCommitTS.Load())
}

// Watermark returns the current low-water mark.
func (tm *Manager) Watermark() primitives.Timestamp {
	return tm.watermark.GetWatermark()
}

// GetUndoLink returns the head of rid's version chain.
func (tm *Manager) GetUndoLink(rid primitives.RID) (UndoLink, bool) {
	return tm.directory.Get(rid)
}

// UpdateUndoLink installs link as rid's chain head if check accepts the
// current head. An invalid link clears the chain.
func (tm *Manager) UpdateUndoLink(rid primitives.RID, link UndoLink, check func(current UndoLink, found bool) bool) bool {
	return tm.directory.Update(rid, link, check)
}

// GetUndoLogOptional resolves link, reporting false when its owner has been
// garbage collected or the index is unknown.
func (tm *Manager) GetUndoLogOptional(link UndoLink) (UndoLog, bool) {
	if !link.IsValid() {
		return UndoLog{}, false
	}

	txn, ok := tm.Transaction(link.PrevTxn)
	if !ok {
		return UndoLog{}, false
	}
	return txn.GetUndoLog(link.PrevLogIdx)
}

// GetUndoLog resolves a link that must still be reachable.
func (tm *Manager) GetUndoLog(link UndoLink) UndoLog {
	l, ok := tm.GetUndoLogOptional(link)
	if !ok {
		log.Panic().Stringer("link", link).Msg("tx: dangling undo link")
	}
	return l
}
