package tx

import (
	"testing"

	"mvdb/engine/primitives"
	"mvdb/engine/table"
	"mvdb/engine/tuple"
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

func setup(t *testing.T, options ManagerOptions) (*Manager, *table.Info) {
	t.Helper()
	test.DisableLogging()

	catalog := table.NewCatalog(4)
	info, err := catalog.CreateTable("t", testSchema)
	require.NoError(t, err)

	return NewManager(catalog, options), info
}

func beginTransaction(t *testing.T, tm *Manager, isolation IsolationLevel) *Transaction {
	t.Helper()

	txn, err := tm.Begin(isolation)
	require.NoError(t, err)
	return txn
}

func readMeta(t *testing.T, info *table.Info, rid primitives.RID) (table.TupleMeta, tuple.Tuple) {
	t.Helper()

	meta, tup, err := info.Heap.GetTuple(rid)
	require.NoError(t, err)
	return meta, tup
}

// insertAs writes a fresh row stamped with txn's temporary timestamp.
func insertAs(t *testing.T, info *table.Info, txn *Transaction, tup tuple.Tuple) primitives.RID {
	t.Helper()

	rid, err := info.Heap.InsertTuple(table.TupleMeta{TS: txn.TempTS()}, tup)
	require.NoError(t, err)
	txn.AppendWriteSet(info.ID, rid)
	return rid
}

// updateAs overwrites rid in place on behalf of txn and links undo as the new chain head.
func updateAs(t *testing.T, tm *Manager, info *table.Info, txn *Transaction, rid primitives.RID, tup tuple.Tuple, deleted bool, undo UndoLog) UndoLink {
	t.Helper()

	head, _ := tm.GetUndoLink(rid)
	undo.PrevVersion = head
	link := txn.AppendUndoLog(undo)

	guard, err := info.Heap.AcquireWriteLock(rid)
	require.NoError(t, err)
	require.NoError(t, guard.UpdateTupleInPlace(table.TupleMeta{TS: txn.TempTS(), IsDeleted: deleted}, tup, rid))
	require.True(t, tm.UpdateUndoLink(rid, link, nil))
	guard.Release()

	txn.AppendWriteSet(info.ID, rid)
	return link
}
