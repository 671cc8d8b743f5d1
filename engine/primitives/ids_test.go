package primitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimestamp(t *testing.T) {
	t.Run("it separates commit timestamps from temporary ones", func(t *testing.T) {
		id := TxnStartID + 7

		assert.True(t, id.TempTS().IsTemporary())
		assert.False(t, id.TempTS().IsCommitted())
		assert.True(t, Timestamp(3).IsCommitted())
		assert.False(t, Timestamp(3).IsTemporary())
	})

	t.Run("it resolves the owner of a temporary timestamp", func(t *testing.T) {
		id := TxnStartID + 3

		assert.Equal(t, id, id.TempTS().Owner())
		assert.Equal(t, InvalidTxnID, Timestamp(3).Owner())
	})

	t.Run("it never treats the invalid timestamp as temporary", func(t *testing.T) {
		assert.False(t, InvalidTimestamp.IsTemporary())
		assert.False(t, InvalidTimestamp.IsCommitted())
	})

	t.Run("it renders temporary timestamps relative to the id space", func(t *testing.T) {
		assert.Equal(t, "txn2", (TxnStartID + 2).TempTS().String())
		assert.Equal(t, "5", Timestamp(5).String())
	})
}

func TestRID(t *testing.T) {
	t.Run("it orders by page, then slot", func(t *testing.T) {
		assert.True(t, NewRID(0, 5).Less(NewRID(1, 0)))
		assert.True(t, NewRID(1, 0).Less(NewRID(1, 1)))
		assert.False(t, NewRID(1, 1).Less(NewRID(1, 1)))
	})
}
