package primitives

import (
	"fmt"
	"math"
)

// Timestamp is a logical clock value. Commit timestamps and temporary
// transaction timestamps share this type but never overlap.
type Timestamp uint64

// TxnID identifies a transaction. Every id is at least TxnStartID, so an id
// doubles as the temporary timestamp of its transaction's uncommitted writes.
type TxnID uint64

type TableID uint32

const (
	TxnStartID = TxnID(1 << 62)

	InvalidTxnID     = TxnID(0)
	InvalidTimestamp = Timestamp(math.MaxUint64)
)

// IsTemporary reports whether ts marks an uncommitted write.
func (ts Timestamp) IsTemporary() bool {
	return ts != InvalidTimestamp && ts >= Timestamp(TxnStartID)
}

// IsCommitted reports whether ts is a commit timestamp.
func (ts Timestamp) IsCommitted() bool {
	return ts < Timestamp(TxnStartID)
}

// Owner returns the transaction that stamped a temporary timestamp.
func (ts Timestamp) Owner() TxnID {
	if !ts.IsTemporary() {
		return InvalidTxnID
	}
	return TxnID(ts)
}

func (ts Timestamp) String() string {
	if ts == InvalidTimestamp {
		return "invalid"
	}
	if ts.IsTemporary() {
		return fmt.Sprintf("txn%d", uint64(ts)-uint64(TxnStartID))
	}
	return fmt.Sprintf("%d", uint64(ts))
}

func (id TxnID) IsValid() bool {
	return id >= TxnStartID
}

// TempTS is the timestamp this transaction writes on tuples it has not committed yet.
func (id TxnID) TempTS() Timestamp {
	return Timestamp(id)
}

// Human returns the id relative to TxnStartID.
func (id TxnID) Human() uint64 {
	if !id.IsValid() {
		return 0
	}
	return uint64(id - TxnStartID)
}

func (id TxnID) String() string {
	if !id.IsValid() {
		return "txn-invalid"
	}
	return fmt.Sprintf("txn%d", id.Human())
}
