package tx

import (
	"sync"

	"mvdb/engine/primitives"

	"github.com/google/btree"
	"github.com/pkg/errors"
)

const watermarkDegree = 16

type readTS primitives.Timestamp

func (a readTS) Less(b btree.Item) bool {
	return a < b.(readTS)
}

// Watermark tracks the read timestamps of running transactions. The low-water
// mark is the oldest snapshot any of them may still read, or the latest
// commit timestamp when none is running.
type Watermark struct {
	mutex sync.Mutex

	commitTS     primitives.Timestamp
	lowWaterMark primitives.Timestamp

	reads  *btree.BTree
	counts map[primitives.Timestamp]int
}

func NewWatermark(commitTS primitives.Timestamp) *Watermark {
	return &Watermark{
		commitTS:     commitTS,
		lowWaterMark: commitTS,
		reads:        btree.New(watermarkDegree),
		counts:       make(map[primitives.Timestamp]int),
	}
}

func (w *Watermark) AddTxn(ts primitives.Timestamp) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if ts < w.commitTS {
		return errors.Wrapf(ErrInvariantViolation, "read ts %d is below commit ts %d", ts, w.commitTS)
	}

	if w.counts[ts] == 0 {
		w.reads.ReplaceOrInsert(readTS(ts))
	}
	w.counts[ts]++

	w.refresh()
	return nil
}

// RemoveTxn drops one occurrence of ts. Unknown timestamps are ignored.
func (w *Watermark) RemoveTxn(ts primitives.Timestamp) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	count, ok := w.counts[ts]
	if !ok {
		return
	}

	if count > 1 {
		w.counts[ts] = count - 1
		return
	}

	delete(w.counts, ts)
	w.reads.Delete(readTS(ts))
	w.refresh()
}

// UpdateCommitTs must run before the committing transaction's read ts is removed.
func (w *Watermark) UpdateCommitTs(ts primitives.Timestamp) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.commitTS = ts
	w.refresh()
}

func (w *Watermark) GetWatermark() primitives.Timestamp {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.lowWaterMark
}

// ActiveReads is the number of registered readers, duplicates included.
func (w *Watermark) ActiveReads() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	n := 0
	for _, c := range w.counts {
		n += c
	}
	return n
}

func (w *Watermark) refresh() {
	if w.reads.Len() == 0 {
		w.lowWaterMark = w.commitTS
		return
	}
	w.lowWaterMark = primitives.Timestamp(w.reads.Min().(readTS))
}
