package mvcc

import (
	"testing"

	"mvdb/engine/primitives"
	"mvdb/engine/table"
	"mvdb/engine/tuple"
	"mvdb/engine/tx"
	"mvdb/test"

	"github.com/stretchr/testify/require"
)

var testSchema = tuple.NewSchema(
	tuple.Column{Name: "a", Kind: tuple.KindInteger},
	tuple.Column{Name: "b", Kind: tuple.KindInteger},
)

func row(a, b int64) tuple.Tuple {
	return tuple.New(tuple.Integer(a), tuple.Integer(b))
}

func ptr(t tuple.Tuple) *tuple.Tuple {
	return &t
}

func setup(t *testing.T) (*tx.Manager, *table.Info) {
	t.Helper()
	test.DisableLogging()

	catalog := table.NewCatalog(4)
	info, err := catalog.CreateTable("t", testSchema)
	require.NoError(t, err)

	mgr := tx.NewManager(catalog, tx.ManagerOptions{})
	mgr.SetValidator(NewPredicateValidator(mgr))
	return mgr, info
}

func beginTransaction(t *testing.T, mgr *tx.Manager, isolation tx.IsolationLevel) *tx.Transaction {
	t.Helper()

	txn, err := mgr.Begin(isolation)
	require.NoError(t, err)
	return txn
}

// read returns the version of rid txn sees.
func read(t *testing.T, mgr *tx.Manager, info *table.Info, txn *tx.Transaction, rid primitives.RID) (tuple.Tuple, bool) {
	t.Helper()

	meta, base, head, _, err := GetTupleAndUndoLink(mgr, info.Heap, rid)
	require.NoError(t, err)

	logs, ok := CollectUndoLogs(rid, meta, base, head, txn, mgr)
	if !ok {
		return tuple.Tuple{}, false
	}
	return ReconstructTuple(info.Schema, base, meta, logs)
}

func givenCommittedInsert(t *testing.T, mgr *tx.Manager, info *table.Info, tup tuple.Tuple) primitives.RID {
	t.Helper()

	txn := beginTransaction(t, mgr, tx.SnapshotIsolation)
	rid, err := InsertTuple(txn, info, tup)
	require.NoError(t, err)
	require.NoError(t, mgr.Commit(txn))
	return rid
}

func givenCommittedUpdate(t *testing.T, mgr *tx.Manager, info *table.Info, rid primitives.RID, target *tuple.Tuple) {
	t.Helper()

	txn := beginTransaction(t, mgr, tx.SnapshotIsolation)
	require.NoError(t, ModifyTuple(mgr, txn, info, rid, target))
	require.NoError(t, mgr.Commit(txn))
}
