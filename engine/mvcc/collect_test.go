package mvcc

import (
	"testing"

	"mvdb/engine/tx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectUndoLogs(t *testing.T) {
	t.Run("it rebuilds the version an older snapshot saw", func(t *testing.T) {
		mgr, info := setup(t)
		rid := givenCommittedInsert(t, mgr, info, row(1, 0))

		txnB := beginTransaction(t, mgr, tx.SnapshotIsolation)
		assert.Equal(t, 1, int(txnB.ReadTS()))

		givenCommittedUpdate(t, mgr, info, rid, ptr(row(1, 1)))
		txnD := beginTransaction(t, mgr, tx.SnapshotIsolation)

		meta, base, head, found, err := GetTupleAndUndoLink(mgr, info.Heap, rid)
		require.NoError(t, err)
		require.True(t, found)

		logs, ok := CollectUndoLogs(rid, meta, base, head, txnB, mgr)
		require.True(t, ok)
		require.Len(t, logs, 1)
		got, ok := ReconstructTuple(info.Schema, base, meta, logs)
		require.True(t, ok)
		assert.True(t, got.Equals(row(1, 0)))

		logs, ok = CollectUndoLogs(rid, meta, base, head, txnD, mgr)
		require.True(t, ok)
		assert.Empty(t, logs)
		assert.True(t, base.Equals(row(1, 1)))
	})

	t.Run("it sees the transaction's own uncommitted write", func(t *testing.T) {
		mgr, info := setup(t)
		rid := givenCommittedInsert(t, mgr, info, row(1, 0))

		writer := beginTransaction(t, mgr, tx.SnapshotIsolation)
		require.NoError(t, ModifyTuple(mgr, writer, info, rid, ptr(row(2, 0))))
		other := beginTransaction(t, mgr, tx.SnapshotIsolation)

		got, ok := read(t, mgr, info, writer, rid)
		require.True(t, ok)
		assert.True(t, got.Equals(row(2, 0)))

		got, ok = read(t, mgr, info, other, rid)
		require.True(t, ok)
		assert.True(t, got.Equals(row(1, 0)))
	})

	t.Run("it reports rows inserted after the snapshot as missing", func(t *testing.T) {
		mgr, info := setup(t)
		reader := beginTransaction(t, mgr, tx.SnapshotIsolation)
		rid := givenCommittedInsert(t, mgr, info, row(1, 0))

		_, ok := read(t, mgr, info, reader, rid)

		assert.False(t, ok)
	})

	t.Run("it reports rows deleted before the snapshot as missing", func(t *testing.T) {
		mgr, info := setup(t)
		rid := givenCommittedInsert(t, mgr, info, row(1, 0))
		givenCommittedUpdate(t, mgr, info, rid, nil)

		reader := beginTransaction(t, mgr, tx.SnapshotIsolation)
		_, ok := read(t, mgr, info, reader, rid)

		assert.False(t, ok)
	})

	t.Run("it walks a long chain back to the snapshot", func(t *testing.T) {
		mgr, info := setup(t)
		rid := givenCommittedInsert(t, mgr, info, row(0, 0))

		var readers []*tx.Transaction
		for i := int64(1); i <= 5; i++ {
			readers = append(readers, beginTransaction(t, mgr, tx.SnapshotIsolation))
			givenCommittedUpdate(t, mgr, info, rid, ptr(row(i, i*10)))
		}

		for i, reader := range readers {
			got, ok := read(t, mgr, info, reader, rid)
			require.True(t, ok)
			assert.True(t, got.Equals(row(int64(i), int64(i)*10)), "reader %d saw %s", i, got)
		}
	})

	t.Run("it never shows versions committed after the snapshot", func(t *testing.T) {
		mgr, info := setup(t)
		rid := givenCommittedInsert(t, mgr, info, row(0, 0))
		reader := beginTransaction(t, mgr, tx.SnapshotIsolation)

		for i := int64(1); i <= 10; i++ {
			givenCommittedUpdate(t, mgr, info, rid, ptr(row(i, 0)))
			if i%3 == 0 {
				mgr.GarbageCollection()
			}

			got, ok := read(t, mgr, info, reader, rid)
			require.True(t, ok)
			assert.True(t, got.Equals(row(0, 0)))
		}
	})
}

func TestCollectUndoLogs_AcrossGarbageCollection(t *testing.T) {
	mgr, info := setup(t)
	rid := givenCommittedInsert(t, mgr, info, row(0, 0))
	givenCommittedUpdate(t, mgr, info, rid, ptr(row(1, 0)))
	reader := beginTransaction(t, mgr, tx.SnapshotIsolation)
	givenCommittedUpdate(t, mgr, info, rid, ptr(row(2, 0)))
	givenCommittedUpdate(t, mgr, info, rid, nil)

	before, beforeOK := read(t, mgr, info, reader, rid)
	stats := mgr.GarbageCollection()
	after, afterOK := read(t, mgr, info, reader, rid)

	assert.Equal(t, beforeOK, afterOK)
	assert.True(t, before.Equals(after))
	assert.True(t, after.Equals(row(1, 0)))
	assert.Equal(t, 1, stats.TruncatedChains)

	require.NoError(t, mgr.Commit(reader))
	mgr.GarbageCollection()

	latest := beginTransaction(t, mgr, tx.SnapshotIsolation)
	_, ok := read(t, mgr, info, latest, rid)
	assert.False(t, ok)
	_, found := mgr.GetUndoLink(rid)
	assert.False(t, found)
}

func TestCollectUndoLogs_GarbageCollectionMidRead(t *testing.T) {
	mgr, info := setup(t)
	rid := givenCommittedInsert(t, mgr, info, row(1, 0))

	writer := beginTransaction(t, mgr, tx.SnapshotIsolation)
	require.NoError(t, ModifyTuple(mgr, writer, info, rid, ptr(row(9, 9))))
	reader := beginTransaction(t, mgr, tx.SnapshotIsolation)

	meta, base, head, found, err := GetTupleAndUndoLink(mgr, info.Heap, rid)
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, mgr.Abort(writer))
	stats := mgr.GarbageCollection()
	require.Equal(t, 1, stats.RepairedRows)

	t.Run("it still resolves a head fetched before the repair", func(t *testing.T) {
		logs, ok := CollectUndoLogs(rid, meta, base, head, reader, mgr)
		require.True(t, ok)

		got, ok := ReconstructTuple(info.Schema, base, meta, logs)
		require.True(t, ok)
		assert.True(t, got.Equals(row(1, 0)))
	})

	t.Run("it releases the aborted writer once older readers end", func(t *testing.T) {
		_, ok := mgr.Transaction(writer.ID())
		assert.True(t, ok)

		require.NoError(t, mgr.Commit(reader))
		mgr.GarbageCollection()

		_, ok = mgr.Transaction(writer.ID())
		assert.False(t, ok)
	})
}
