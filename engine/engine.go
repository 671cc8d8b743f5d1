// Package engine runs statements against tables on top of the MVCC core. It
// plays the executor: reads go through snapshot reconstruction and writes
// through the conflict-checked compound update.
package engine

import (
	"mvdb/engine/expr"
	"mvdb/engine/mvcc"
	"mvdb/engine/primitives"
	"mvdb/engine/table"
	"mvdb/engine/tuple"
	"mvdb/engine/tx"
	"mvdb/observability"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Row is a visible version together with the physical row it came from.
type Row struct {
	RID   primitives.RID
	Tuple tuple.Tuple
}

type Engine struct {
	catalog *table.Catalog
	tm      *tx.Manager
}

func New(catalog *table.Catalog, options tx.ManagerOptions) *Engine {
	tm := tx.NewManager(catalog, options)
	tm.SetValidator(mvcc.NewPredicateValidator(tm))

	return &Engine{
		catalog: catalog,
		tm:      tm,
	}
}

func (e *Engine) Manager() *tx.Manager {
	return e.tm
}

func (e *Engine) Begin(isolation tx.IsolationLevel) (*tx.Transaction, error) {
	return e.tm.Begin(isolation)
}

func (e *Engine) Commit(txn *tx.Transaction) error {
	return e.tm.Commit(txn)
}

func (e *Engine) Abort(txn *tx.Transaction) error {
	return e.tm.Abort(txn)
}

func (e *Engine) CreateTable(name string, schema *tuple.Schema) (*table.Info, error) {
	return e.catalog.CreateTable(name, schema)
}

func (e *Engine) Insert(txn *tx.Transaction, tableName string, t tuple.Tuple) (primitives.RID, error) {
	info, err := e.prepare(txn, tableName)
	if err != nil {
		return primitives.RID{}, err
	}

	if t.Len() != info.Schema.ColumnCount() {
		return primitives.RID{}, errors.Wrapf(table.ErrSchemaMismatch, "insert into %s: got %d columns, want %d", tableName, t.Len(), info.Schema.ColumnCount())
	}

	return mvcc.InsertTuple(txn, info, t)
}

// Get returns the version of rid visible to txn.
func (e *Engine) Get(txn *tx.Transaction, tableName string, rid primitives.RID) (tuple.Tuple, error) {
	info, err := e.prepare(txn, tableName)
	if err != nil {
		return tuple.Tuple{}, err
	}

	t, ok, err := e.read(txn, info, rid)
	if err != nil {
		return tuple.Tuple{}, err
	}
	if !ok {
		return tuple.Tuple{}, errors.Wrapf(mvcc.ErrTupleNotFound, "rid %s", rid)
	}
	return t, nil
}

// Scan returns the visible rows matching p, oldest row first, and records p
// for serializable validation.
func (e *Engine) Scan(txn *tx.Transaction, tableName string, p expr.Predicate) ([]Row, error) {
	info, err := e.prepare(txn, tableName)
	if err != nil {
		return nil, err
	}

	return e.scan(txn, info, p)
}

// Update rewrites every visible row matching p with fn and returns how many
// rows changed.
func (e *Engine) Update(txn *tx.Transaction, tableName string, p expr.Predicate, fn func(tuple.Tuple) tuple.Tuple) (int, error) {
	info, err := e.prepare(txn, tableName)
	if err != nil {
		return 0, err
	}

	rows, err := e.scan(txn, info, p)
	if err != nil {
		return 0, err
	}

	for i, row := range rows {
		target := fn(row.Tuple)
		if target.Len() != info.Schema.ColumnCount() {
			return i, errors.Wrapf(table.ErrSchemaMismatch, "update %s", tableName)
		}
		if err := e.modify(txn, info, row.RID, &target); err != nil {
			return i, err
		}
	}
	return len(rows), nil
}

// Delete removes every visible row matching p and returns how many rows it removed.
func (e *Engine) Delete(txn *tx.Transaction, tableName string, p expr.Predicate) (int, error) {
	info, err := e.prepare(txn, tableName)
	if err != nil {
		return 0, err
	}

	rows, err := e.scan(txn, info, p)
	if err != nil {
		return 0, err
	}

	for i, row := range rows {
		if err := e.modify(txn, info, row.RID, nil); err != nil {
			return i, err
		}
	}
	return len(rows), nil
}

func (e *Engine) prepare(txn *tx.Transaction, tableName string) (*table.Info, error) {
	switch state := txn.State(); state {
	case tx.Running:
	case tx.Tainted:
		return nil, errors.Wrapf(tx.ErrTransactionTainted, "statement in %s", txn.ID())
	default:
		return nil, errors.Wrapf(tx.ErrTransactionNotRunning, "statement in %s (%s)", txn.ID(), state)
	}

	info, ok := e.catalog.TableByName(tableName)
	if !ok {
		return nil, errors.Wrapf(table.ErrTableNotFound, "table %q", tableName)
	}
	return info, nil
}

func (e *Engine) scan(txn *tx.Transaction, info *table.Info, p expr.Predicate) ([]Row, error) {
	if p == nil {
		p = expr.True()
	}
	txn.AppendScanPredicate(info.ID, p)

	var rows []Row
	for _, rid := range table.AllRIDs(info.Heap) {
		t, ok, err := e.read(txn, info, rid)
		if err != nil {
			return nil, err
		}
		if ok && p.Matches(t) {
			rows = append(rows, Row{RID: rid, Tuple: t})
		}
	}
	return rows, nil
}

func (e *Engine) read(txn *tx.Transaction, info *table.Info, rid primitives.RID) (tuple.Tuple, bool, error) {
	meta, base, head, _, err := mvcc.GetTupleAndUndoLink(e.tm, info.Heap, rid)
	if err != nil {
		return tuple.Tuple{}, false, err
	}

	logs, ok := mvcc.CollectUndoLogs(rid, meta, base, head, txn, e.tm)
	if !ok {
		return tuple.Tuple{}, false, nil
	}

	t, ok := mvcc.ReconstructTuple(info.Schema, base, meta, logs)
	return t, ok, nil
}

func (e *Engine) modify(txn *tx.Transaction, info *table.Info, rid primitives.RID, target *tuple.Tuple) error {
	err := mvcc.ModifyTuple(e.tm, txn, info, rid, target)
	if errors.Is(err, tx.ErrConflict) {
		observability.TxnCounter.WithLabelValues(observability.EventTaint).Inc()
		log.Debug().Err(err).Stringer("txn", txn.ID()).Stringer("rid", rid).Msg("engine: transaction tainted")
	}
	return err
}
