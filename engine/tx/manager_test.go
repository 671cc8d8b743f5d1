package tx

import (
	"sync"
	"testing"

	"mvdb/engine/primitives"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validatorFunc func(txn *Transaction, committedAfter []*Transaction) bool

func (f validatorFunc) Validate(txn *Transaction, committedAfter []*Transaction) bool {
	return f(txn, committedAfter)
}

func TestManager_Begin(t *testing.T) {
	t.Run("it allocates increasing ids starting at the temporary range", func(t *testing.T) {
		tm, _ := setup(t, ManagerOptions{})

		tx1 := beginTransaction(t, tm, SnapshotIsolation)
		tx2 := beginTransaction(t, tm, SnapshotIsolation)

		assert.Equal(t, primitives.TxnStartID, tx1.ID())
		assert.Greater(t, tx2.ID(), tx1.ID())
		assert.True(t, tx1.TempTS().IsTemporary())
	})

	t.Run("it reads at the last commit timestamp", func(t *testing.T) {
		tm, _ := setup(t, ManagerOptions{})

		first := beginTransaction(t, tm, SnapshotIsolation)
		assert.Equal(t, primitives.Timestamp(0), first.ReadTS())
		require.NoError(t, tm.Commit(first))

		second := beginTransaction(t, tm, SnapshotIsolation)
		assert.Equal(t, primitives.Timestamp(1), second.ReadTS())
		assert.Equal(t, Running, second.State())
		assert.Equal(t, primitives.InvalidTimestamp, second.CommitTS())
	})

	t.Run("it registers the transaction and its snapshot", func(t *testing.T) {
		tm, _ := setup(t, ManagerOptions{})

		txn := beginTransaction(t, tm, Serializable)

		got, ok := tm.Transaction(txn.ID())
		require.True(t, ok)
		assert.Same(t, txn, got)
		assert.Equal(t, Serializable, got.IsolationLevel())
		assert.Equal(t, 1, tm.watermark.ActiveReads())
	})

	t.Run("it rejects transactions above the active limit", func(t *testing.T) {
		tm, _ := setup(t, ManagerOptions{MaxActiveTransactions: 2})

		tx1 := beginTransaction(t, tm, SnapshotIsolation)
		_ = beginTransaction(t, tm, SnapshotIsolation)

		_, err := tm.Begin(SnapshotIsolation)
		assert.ErrorIs(t, err, ErrMaxActiveTransactionsExceeded)

		require.NoError(t, tm.Abort(tx1))
		_, err = tm.Begin(SnapshotIsolation)
		assert.NoError(t, err)
	})
}

func TestManager_Commit(t *testing.T) {
	t.Run("it assigns consecutive commit timestamps", func(t *testing.T) {
		tm, _ := setup(t, ManagerOptions{})

		for i := 1; i <= 3; i++ {
			txn := beginTransaction(t, tm, SnapshotIsolation)
			require.NoError(t, tm.Commit(txn))
			assert.Equal(t, primitives.Timestamp(i), txn.CommitTS())
			assert.Equal(t, Committed, txn.State())
		}
		assert.Equal(t, primitives.Timestamp(3), tm.LastCommitTS())
	})

	t.Run("it stamps written rows and undo logs with the commit timestamp", func(t *testing.T) {
		tm, info := setup(t, ManagerOptions{})

		writer := beginTransaction(t, tm, SnapshotIsolation)
		rid := insertAs(t, info, writer, row(1, 1))
		require.NoError(t, tm.Commit(writer))

		updater := beginTransaction(t, tm, SnapshotIsolation)
		link := updateAs(t, tm, info, updater, rid, row(2, 1), false, UndoLog{
			ModifiedFields: []bool{true, false},
			Tuple:          row(1, 1).Project([]bool{true, false}),
			TS:             updater.TempTS(),
		})
		require.NoError(t, tm.Commit(updater))

		meta, tup := readMeta(t, info, rid)
		assert.Equal(t, primitives.Timestamp(2), meta.TS)
		assert.True(t, tup.Equals(row(2, 1)))
		assert.Equal(t, primitives.Timestamp(2), tm.GetUndoLog(link).TS)
	})

	t.Run("it aborts a tainted transaction", func(t *testing.T) {
		tm, info := setup(t, ManagerOptions{})

		txn := beginTransaction(t, tm, SnapshotIsolation)
		rid := insertAs(t, info, txn, row(1, 1))
		txn.SetTainted()

		err := tm.Commit(txn)

		assert.ErrorIs(t, err, ErrTransactionTainted)
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, Aborted, txn.State())
		assert.Equal(t, primitives.Timestamp(0), tm.LastCommitTS())
		assert.Equal(t, 0, tm.watermark.ActiveReads())

		meta, _ := readMeta(t, info, rid)
		assert.Equal(t, txn.TempTS(), meta.TS)
	})

	t.Run("it refuses to commit a finished transaction", func(t *testing.T) {
		tm, _ := setup(t, ManagerOptions{})

		txn := beginTransaction(t, tm, SnapshotIsolation)
		require.NoError(t, tm.Commit(txn))

		assert.ErrorIs(t, tm.Commit(txn), ErrTransactionNotRunning)
		assert.ErrorIs(t, tm.Abort(txn), ErrTransactionNotRunning)
	})

	t.Run("it aborts a serializable transaction that fails validation", func(t *testing.T) {
		tm, _ := setup(t, ManagerOptions{})

		var seen []*Transaction
		tm.SetValidator(validatorFunc(func(txn *Transaction, committedAfter []*Transaction) bool {
			seen = committedAfter
			return len(committedAfter) == 0
		}))

		reader := beginTransaction(t, tm, Serializable)
		other := beginTransaction(t, tm, SnapshotIsolation)
		require.NoError(t, tm.Commit(other))

		err := tm.Commit(reader)

		assert.ErrorIs(t, err, ErrSerializationFailure)
		assert.True(t, errors.Is(err, ErrConflict))
		assert.Equal(t, Aborted, reader.State())
		require.Len(t, seen, 1)
		assert.Same(t, other, seen[0])
		assert.Equal(t, primitives.Timestamp(1), tm.LastCommitTS())
	})

	t.Run("it does not validate snapshot isolation transactions", func(t *testing.T) {
		tm, _ := setup(t, ManagerOptions{})
		tm.SetValidator(validatorFunc(func(*Transaction, []*Transaction) bool { return false }))

		txn := beginTransaction(t, tm, SnapshotIsolation)

		assert.NoError(t, tm.Commit(txn))
	})

	t.Run("it advances the watermark once the oldest reader finishes", func(t *testing.T) {
		tm, _ := setup(t, ManagerOptions{})

		old := beginTransaction(t, tm, SnapshotIsolation)
		for range 3 {
			require.NoError(t, tm.Commit(beginTransaction(t, tm, SnapshotIsolation)))
		}
		assert.Equal(t, primitives.Timestamp(0), tm.Watermark())

		require.NoError(t, tm.Commit(old))
		assert.Equal(t, primitives.Timestamp(4), tm.Watermark())
	})

	t.Run("it serializes concurrent commits", func(t *testing.T) {
		tm, _ := setup(t, ManagerOptions{})

		const n = 32
		txns := make([]*Transaction, n)
		for i := range txns {
			txns[i] = beginTransaction(t, tm, SnapshotIsolation)
		}

		var wg sync.WaitGroup
		for _, txn := range txns {
			wg.Add(1)
			go func(txn *Transaction) {
				defer wg.Done()
				assert.NoError(t, tm.Commit(txn))
			}(txn)
		}
		wg.Wait()

		seen := make(map[primitives.Timestamp]bool)
		for _, txn := range txns {
			assert.False(t, seen[txn.CommitTS()])
			seen[txn.CommitTS()] = true
		}
		assert.Equal(t, primitives.Timestamp(n), tm.LastCommitTS())
	})
}

func TestManager_Abort(t *testing.T) {
	t.Run("it leaves the heap untouched", func(t *testing.T) {
		tm, info := setup(t, ManagerOptions{})

		txn := beginTransaction(t, tm, SnapshotIsolation)
		rid := insertAs(t, info, txn, row(1, 1))

		require.NoError(t, tm.Abort(txn))

		assert.Equal(t, Aborted, txn.State())
		meta, _ := readMeta(t, info, rid)
		assert.Equal(t, txn.TempTS(), meta.TS)
		assert.Equal(t, 0, tm.watermark.ActiveReads())
	})

	t.Run("it aborts a tainted transaction", func(t *testing.T) {
		tm, _ := setup(t, ManagerOptions{})

		txn := beginTransaction(t, tm, SnapshotIsolation)
		txn.SetTainted()

		require.NoError(t, tm.Abort(txn))
		assert.Equal(t, Aborted, txn.State())
	})
}

func TestManager_UndoLinks(t *testing.T) {
	tm, info := setup(t, ManagerOptions{})

	t.Run("it resolves links through the registry", func(t *testing.T) {
		txn := beginTransaction(t, tm, SnapshotIsolation)
		rid := insertAs(t, info, txn, row(1, 1))
		link := txn.AppendUndoLog(UndoLog{IsDeleted: true, ModifiedFields: []bool{false, false}, TS: 0})
		require.True(t, tm.UpdateUndoLink(rid, link, nil))

		head, ok := tm.GetUndoLink(rid)
		require.True(t, ok)
		assert.Equal(t, link, head)

		undo, ok := tm.GetUndoLogOptional(head)
		require.True(t, ok)
		assert.True(t, undo.IsDeleted)
	})

	t.Run("it reports unknown links as missing", func(t *testing.T) {
		_, ok := tm.GetUndoLogOptional(InvalidUndoLink)
		assert.False(t, ok)

		_, ok = tm.GetUndoLogOptional(UndoLink{PrevTxn: primitives.TxnStartID + 1000})
		assert.False(t, ok)

		assert.Panics(t, func() { tm.GetUndoLog(UndoLink{PrevTxn: primitives.TxnStartID + 1000}) })
	})

	t.Run("it installs a link only when the check accepts the current head", func(t *testing.T) {
		rid := primitives.NewRID(99, 0)
		link := UndoLink{PrevTxn: primitives.TxnStartID, PrevLogIdx: 3}

		ok := tm.UpdateUndoLink(rid, link, func(current UndoLink, found bool) bool { return found })
		assert.False(t, ok)

		ok = tm.UpdateUndoLink(rid, link, func(current UndoLink, found bool) bool { return !found })
		assert.True(t, ok)

		got, _ := tm.GetUndoLink(rid)
		assert.Equal(t, link, got)
	})
}

func TestManager_Transactions(t *testing.T) {
	tm, _ := setup(t, ManagerOptions{})

	for range 5 {
		beginTransaction(t, tm, SnapshotIsolation)
	}

	txns := tm.Transactions()

	require.Len(t, txns, 5)
	for i := 1; i < len(txns); i++ {
		assert.Less(t, txns[i-1].ID(), txns[i].ID())
	}
}
