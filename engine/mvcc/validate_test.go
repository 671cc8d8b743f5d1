package mvcc

import (
	"testing"

	"mvdb/engine/expr"
	"mvdb/engine/tuple"
	"mvdb/engine/tx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicateValidator(t *testing.T) {
	bEquals := func(v int64) expr.Predicate {
		return expr.ColumnCompare(1, expr.Equals, tuple.Integer(v))
	}

	t.Run("it aborts the second half of a write skew", func(t *testing.T) {
		mgr, info := setup(t)
		r1 := givenCommittedInsert(t, mgr, info, row(1, 0))
		r2 := givenCommittedInsert(t, mgr, info, row(2, 1))

		txnA := beginTransaction(t, mgr, tx.Serializable)
		txnB := beginTransaction(t, mgr, tx.Serializable)

		txnA.AppendScanPredicate(info.ID, bEquals(1))
		require.NoError(t, ModifyTuple(mgr, txnA, info, r1, ptr(row(1, 1))))

		txnB.AppendScanPredicate(info.ID, bEquals(0))
		require.NoError(t, ModifyTuple(mgr, txnB, info, r2, ptr(row(2, 0))))

		require.NoError(t, mgr.Commit(txnA))
		err := mgr.Commit(txnB)

		assert.ErrorIs(t, err, tx.ErrSerializationFailure)
		assert.Equal(t, tx.Aborted, txnB.State())
	})

	t.Run("it commits when no concurrent write touches the predicates", func(t *testing.T) {
		mgr, info := setup(t)
		r1 := givenCommittedInsert(t, mgr, info, row(1, 0))
		r2 := givenCommittedInsert(t, mgr, info, row(2, 1))

		txnA := beginTransaction(t, mgr, tx.Serializable)
		txnB := beginTransaction(t, mgr, tx.Serializable)

		require.NoError(t, ModifyTuple(mgr, txnA, info, r1, ptr(row(1, 7))))
		txnB.AppendScanPredicate(info.ID, bEquals(5))
		require.NoError(t, ModifyTuple(mgr, txnB, info, r2, ptr(row(2, 8))))

		require.NoError(t, mgr.Commit(txnA))
		assert.NoError(t, mgr.Commit(txnB))
	})

	t.Run("it catches rows a concurrent transaction inserted into the predicate", func(t *testing.T) {
		mgr, info := setup(t)
		givenCommittedInsert(t, mgr, info, row(1, 0))

		reader := beginTransaction(t, mgr, tx.Serializable)
		reader.AppendScanPredicate(info.ID, expr.ColumnCompare(0, expr.GreaterThan, tuple.Integer(5)))

		givenCommittedInsert(t, mgr, info, row(9, 0))

		assert.ErrorIs(t, mgr.Commit(reader), tx.ErrSerializationFailure)
	})

	t.Run("it ignores writes to tables the transaction never scanned", func(t *testing.T) {
		mgr, info := setup(t)
		other, err := mgr.Catalog().CreateTable("other", testSchema)
		require.NoError(t, err)

		reader := beginTransaction(t, mgr, tx.Serializable)
		reader.AppendScanPredicate(info.ID, expr.True())

		givenCommittedInsert(t, mgr, other, row(1, 1))

		assert.NoError(t, mgr.Commit(reader))
	})

	t.Run("it lets snapshot isolation keep the write skew", func(t *testing.T) {
		mgr, info := setup(t)
		r1 := givenCommittedInsert(t, mgr, info, row(1, 0))
		r2 := givenCommittedInsert(t, mgr, info, row(2, 1))

		txnA := beginTransaction(t, mgr, tx.SnapshotIsolation)
		txnB := beginTransaction(t, mgr, tx.SnapshotIsolation)
		txnA.AppendScanPredicate(info.ID, bEquals(1))
		txnB.AppendScanPredicate(info.ID, bEquals(0))
		require.NoError(t, ModifyTuple(mgr, txnA, info, r1, ptr(row(1, 1))))
		require.NoError(t, ModifyTuple(mgr, txnB, info, r2, ptr(row(2, 0))))

		require.NoError(t, mgr.Commit(txnA))
		assert.NoError(t, mgr.Commit(txnB))
	})
}
