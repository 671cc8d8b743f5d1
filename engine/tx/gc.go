package tx

import (
	"sync"
	"time"

	"mvdb/engine/primitives"
	"mvdb/engine/table"
	"mvdb/observability"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// GCStats summarizes one garbage collection pass.
type GCStats struct {
	Watermark       primitives.Timestamp
	ErasedTxns      int
	PrunedChains    int
	TruncatedChains int
	RepairedRows    int
}

// GarbageCollection reclaims history no running transaction can read. It
// first restores rows left behind by aborted transactions, then cuts every
// chain below the watermark, and finally forgets finished transactions
// whose undo logs are no longer reachable.
func (tm *Manager) GarbageCollection() GCStats {
	start := time.Now()
	wm := tm.watermark.GetWatermark()
	stats := GCStats{Watermark: wm}

	aborted := tm.abortedTransactions()
	stats.RepairedRows = tm.repairAborted(aborted)

	reachable, pruned, truncated := tm.scanChains(wm)
	stats.PrunedChains = pruned
	stats.TruncatedChains = truncated

	stats.ErasedTxns = tm.eraseUnreachable(wm, reachable, aborted)

	observability.GCCounter.WithLabelValues("txn").Add(float64(stats.ErasedTxns))
	observability.GCCounter.WithLabelValues("pruned").Add(float64(stats.PrunedChains))
	observability.GCCounter.WithLabelValues("truncated").Add(float64(stats.TruncatedChains))
	observability.GCCounter.WithLabelValues("repaired").Add(float64(stats.RepairedRows))
	observability.GCDuration.Observe(time.Since(start).Seconds())

	log.Debug().
		Uint64("watermark", uint64(wm)).
		Int("erased", stats.ErasedTxns).
		Int("pruned", stats.PrunedChains).
		Int("truncated", stats.TruncatedChains).
		Int("repaired", stats.RepairedRows).
		Msg("tx: garbage collection finished")

	return stats
}

func (tm *Manager) abortedTransactions() map[primitives.TxnID]*Transaction {
	tm.txnMapMutex.RLock()
	defer tm.txnMapMutex.RUnlock()

	aborted := make(map[primitives.TxnID]*Transaction)
	for id, txn := range tm.txnMap {
		if txn.State() == Aborted {
			aborted[id] = txn
		}
	}
	return aborted
}

// repairAborted puts back the version each aborted writer replaced. Rows it
// inserted become deleted tuples at timestamp 0. Every fully repaired
// transaction is then stamped with the highest id allocated so far;
// transactions begun later can no longer reach it through a chain head.
func (tm *Manager) repairAborted(aborted map[primitives.TxnID]*Transaction) int {
	repaired := 0
	failed := make(map[primitives.TxnID]struct{})

	for _, txn := range aborted {
		for tableID, rids := range txn.WriteSet() {
			info, ok := tm.catalog.Table(tableID)
			if !ok {
				continue
			}

			for _, rid := range rids {
				ok, err := tm.repairRow(info.Heap, rid, txn)
				if err != nil {
					log.Error().Err(err).Stringer("rid", rid).Stringer("txn", txn.id).Msg("tx: failed to repair aborted row")
					failed[txn.id] = struct{}{}
					continue
				}
				if ok {
					repaired++
				}
			}
		}
	}

	horizon := primitives.TxnID(tm.nextTxnID.Load() - 1)
	for id, txn := range aborted {
		if _, ok := failed[id]; !ok {
			txn.markRepaired(horizon)
		}
	}
	return repaired
}

func (tm *Manager) repairRow(heap table.Heap, rid primitives.RID, txn *Transaction) (bool, error) {
	guard, err := heap.AcquireWriteLock(rid)
	if err != nil {
		return false, err
	}
	defer guard.Release()

	meta, base, err := guard.GetTuple(rid)
	if err != nil {
		return false, err
	}

	if meta.TS != txn.TempTS() {
		return false, nil
	}

	head, found := tm.directory.Get(rid)
	if !found || head.PrevTxn != txn.id {
		meta = table.TupleMeta{TS: 0, IsDeleted: true}
		return true, guard.UpdateTupleInPlace(meta, base, rid)
	}

	undo, ok := txn.GetUndoLog(head.PrevLogIdx)
	if !ok {
		invariant("tx: aborted transaction lost its undo log", txn)
	}

	meta = table.TupleMeta{TS: undo.TS, IsDeleted: undo.IsDeleted}
	if err := guard.UpdateTupleInPlace(meta, undo.ApplyTo(base), rid); err != nil {
		return false, err
	}
	tm.directory.Update(rid, undo.PrevVersion, nil)
	return true, nil
}

type chainScan struct {
	reachable map[primitives.TxnID]struct{}
	pruned    int
	truncated int
}

// scanChains visits every row that has a chain. Pages are scanned in
// parallel, each row under its page write lock.
func (tm *Manager) scanChains(wm primitives.Timestamp) (map[primitives.TxnID]struct{}, int, int) {
	var mutex sync.Mutex
	total := chainScan{reachable: make(map[primitives.TxnID]struct{})}

	var g errgroup.Group
	g.SetLimit(tm.options.GCWorkers)

	for _, info := range tm.catalog.Tables() {
		heap := info.Heap
		for _, pageID := range heap.PageIDs() {
			g.Go(func() error {
				scan := tm.scanPage(heap, pageID, wm)

				mutex.Lock()
				defer mutex.Unlock()
				for id := range scan.reachable {
					total.reachable[id] = struct{}{}
				}
				total.pruned += scan.pruned
				total.truncated += scan.truncated
				return nil
			})
		}
	}

	_ = g.Wait()
	return total.reachable, total.pruned, total.truncated
}

func (tm *Manager) scanPage(heap table.Heap, pageID primitives.PageID, wm primitives.Timestamp) chainScan {
	scan := chainScan{reachable: make(map[primitives.TxnID]struct{})}

	for _, rid := range heap.RIDs(pageID) {
		if err := tm.scanRow(heap, rid, wm, &scan); err != nil {
			log.Error().Err(err).Stringer("rid", rid).Msg("tx: failed to scan version chain")
		}
	}
	return scan
}

func (tm *Manager) scanRow(heap table.Heap, rid primitives.RID, wm primitives.Timestamp, scan *chainScan) error {
	guard, err := heap.AcquireWriteLock(rid)
	if err != nil {
		return err
	}
	defer guard.Release()

	head, found := tm.directory.Get(rid)
	if !found || !head.IsValid() {
		return nil
	}

	meta, _, err := guard.GetTuple(rid)
	if err != nil {
		return err
	}

	if meta.TS.IsCommitted() && meta.TS <= wm {
		tm.directory.Remove(rid)
		scan.pruned++
		return nil
	}

	for link := head; link.IsValid(); {
		owner, ok := tm.Transaction(link.PrevTxn)
		if !ok {
			break
		}
		undo, ok := owner.GetUndoLog(link.PrevLogIdx)
		if !ok {
			break
		}
		scan.reachable[owner.id] = struct{}{}

		if undo.TS.IsCommitted() && undo.TS <= wm {
			if undo.PrevVersion.IsValid() {
				undo.PrevVersion = InvalidUndoLink
				owner.ModifyUndoLog(link.PrevLogIdx, undo)
				scan.truncated++
			}
			break
		}
		link = undo.PrevVersion
	}

	return nil
}

// eraseUnreachable drops finished transactions no chain leads to. An aborted
// transaction also waits until every transaction that was live when its rows
// were repaired has ended, since those may still hold a pre-repair head.
func (tm *Manager) eraseUnreachable(wm primitives.Timestamp, reachable map[primitives.TxnID]struct{}, aborted map[primitives.TxnID]*Transaction) int {
	tm.txnMapMutex.Lock()
	defer tm.txnMapMutex.Unlock()

	oldestLive := primitives.InvalidTxnID
	for id, txn := range tm.txnMap {
		if !txn.State().IsTerminal() && (oldestLive == primitives.InvalidTxnID || id < oldestLive) {
			oldestLive = id
		}
	}

	erased := 0
	for id, txn := range tm.txnMap {
		if _, ok := reachable[id]; ok {
			continue
		}

		switch txn.State() {
		case Aborted:
			if _, ok := aborted[id]; !ok {
				continue
			}
			horizon, ok := txn.repaired()
			if !ok || (oldestLive != primitives.InvalidTxnID && oldestLive <= horizon) {
				continue
			}
		case Committed:
			if txn.CommitTS() > wm {
				continue
			}
		default:
			continue
		}

		delete(tm.txnMap, id)
		erased++
	}

	observability.TxnRegistryGauge.Set(float64(len(tm.txnMap)))
	return erased
}
