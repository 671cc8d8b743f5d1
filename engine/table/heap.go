package table

import (
	"mvdb/engine/primitives"
	"mvdb/engine/tuple"

	"github.com/pkg/errors"
)

var (
	ErrInvalidRID     = errors.New("table: invalid record id")
	ErrTableExists    = errors.New("table: table already exists")
	ErrTableNotFound  = errors.New("table: table not found")
	ErrSchemaMismatch = errors.New("table: tuple does not match schema")
)

// TupleMeta is stored next to every physical tuple. TS is a commit timestamp
// for committed state, or the writer's temporary timestamp while uncommitted.
type TupleMeta struct {
	TS        primitives.Timestamp
	IsDeleted bool
}

// Heap is the physical storage the MVCC core runs on top of. Reads and
// in-place updates that must be atomic with a version-chain change go
// through page guards.
type Heap interface {
	InsertTuple(meta TupleMeta, t tuple.Tuple) (primitives.RID, error)
	GetTuple(rid primitives.RID) (TupleMeta, tuple.Tuple, error)

	AcquireReadLock(rid primitives.RID) (ReadGuard, error)
	AcquireWriteLock(rid primitives.RID) (WriteGuard, error)

	// PageIDs lists pages in allocation order.
	PageIDs() []primitives.PageID
	// RIDs lists the occupied slots of a page in slot order.
	RIDs(page primitives.PageID) []primitives.RID
}

// ReadGuard holds a page's read latch until released.
type ReadGuard interface {
	GetTuple(rid primitives.RID) (TupleMeta, tuple.Tuple, error)
	Release()
}

// WriteGuard holds a page's write latch until released.
type WriteGuard interface {
	ReadGuard
	UpdateTupleInPlace(meta TupleMeta, t tuple.Tuple, rid primitives.RID) error
}

// AllRIDs walks the heap oldest RID first.
func AllRIDs(h Heap) []primitives.RID {
	var rids []primitives.RID
	for _, page := range h.PageIDs() {
		rids = append(rids, h.RIDs(page)...)
	}
	return rids
}
