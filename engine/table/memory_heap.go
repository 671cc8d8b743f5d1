package table

import (
	"sync"
	"sync/atomic"

	"mvdb/engine/primitives"
	"mvdb/engine/tuple"

	"github.com/pkg/errors"
)

const DefaultPageCapacity = 64

// PageAllocator hands out page ids. Heaps sharing one allocator never reuse
// each other's ids, so a RID is unique across tables.
type PageAllocator struct {
	next atomic.Uint32
}

func NewPageAllocator() *PageAllocator {
	return &PageAllocator{}
}

func (a *PageAllocator) Allocate() primitives.PageID {
	return primitives.PageID(a.next.Add(1) - 1)
}

type page struct {
	id     primitives.PageID
	latch  sync.RWMutex
	metas  []TupleMeta
	tuples []tuple.Tuple
}

// MemoryHeap keeps tuples in fixed-capacity in-memory pages, each with its
// own reader/writer latch.
type MemoryHeap struct {
	pageCapacity int
	allocator    *PageAllocator

	mutex  sync.RWMutex
	pages  []*page
	lookup map[primitives.PageID]*page
}

// NewMemoryHeap creates an empty heap. A nil allocator gives the heap a
// private page id space.
func NewMemoryHeap(pageCapacity int, allocator *PageAllocator) *MemoryHeap {
	if pageCapacity <= 0 {
		pageCapacity = DefaultPageCapacity
	}
	if allocator == nil {
		allocator = NewPageAllocator()
	}

	return &MemoryHeap{
		pageCapacity: pageCapacity,
		allocator:    allocator,
		lookup:       make(map[primitives.PageID]*page),
	}
}

func (h *MemoryHeap) InsertTuple(meta TupleMeta, t tuple.Tuple) (primitives.RID, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if len(h.pages) == 0 || h.isFull(h.pages[len(h.pages)-1]) {
		p := &page{id: h.allocator.Allocate()}
		h.pages = append(h.pages, p)
		h.lookup[p.id] = p
	}

	p := h.pages[len(h.pages)-1]

	p.latch.Lock()
	defer p.latch.Unlock()

	p.metas = append(p.metas, meta)
	p.tuples = append(p.tuples, t)

	return primitives.NewRID(p.id, primitives.SlotID(len(p.tuples)-1)), nil
}

func (h *MemoryHeap) GetTuple(rid primitives.RID) (TupleMeta, tuple.Tuple, error) {
	guard, err := h.AcquireReadLock(rid)
	if err != nil {
		return TupleMeta{}, tuple.Tuple{}, err
	}
	defer guard.Release()

	return guard.GetTuple(rid)
}

func (h *MemoryHeap) AcquireReadLock(rid primitives.RID) (ReadGuard, error) {
	p, err := h.page(rid.PageID)
	if err != nil {
		return nil, err
	}

	p.latch.RLock()
	return &readGuard{page: p}, nil
}

func (h *MemoryHeap) AcquireWriteLock(rid primitives.RID) (WriteGuard, error) {
	p, err := h.page(rid.PageID)
	if err != nil {
		return nil, err
	}

	p.latch.Lock()
	return &writeGuard{page: p}, nil
}

func (h *MemoryHeap) PageIDs() []primitives.PageID {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	ids := make([]primitives.PageID, len(h.pages))
	for i, p := range h.pages {
		ids[i] = p.id
	}
	return ids
}

func (h *MemoryHeap) RIDs(id primitives.PageID) []primitives.RID {
	p, err := h.page(id)
	if err != nil {
		return nil
	}

	p.latch.RLock()
	defer p.latch.RUnlock()

	rids := make([]primitives.RID, len(p.tuples))
	for slot := range p.tuples {
		rids[slot] = primitives.NewRID(id, primitives.SlotID(slot))
	}
	return rids
}

func (h *MemoryHeap) page(id primitives.PageID) (*page, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	p, ok := h.lookup[id]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidRID, "page %d", id)
	}
	return p, nil
}

func (h *MemoryHeap) isFull(p *page) bool {
	p.latch.RLock()
	defer p.latch.RUnlock()

	return len(p.tuples) >= h.pageCapacity
}

type readGuard struct {
	page     *page
	released bool
}

func (g *readGuard) GetTuple(rid primitives.RID) (TupleMeta, tuple.Tuple, error) {
	return g.page.get(rid)
}

func (g *readGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.page.latch.RUnlock()
}

type writeGuard struct {
	page     *page
	released bool
}

func (g *writeGuard) GetTuple(rid primitives.RID) (TupleMeta, tuple.Tuple, error) {
	return g.page.get(rid)
}

func (g *writeGuard) UpdateTupleInPlace(meta TupleMeta, t tuple.Tuple, rid primitives.RID) error {
	if err := g.page.check(rid); err != nil {
		return err
	}

	g.page.metas[rid.Slot] = meta
	g.page.tuples[rid.Slot] = t
	return nil
}

func (g *writeGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.page.latch.Unlock()
}

func (p *page) get(rid primitives.RID) (TupleMeta, tuple.Tuple, error) {
	if err := p.check(rid); err != nil {
		return TupleMeta{}, tuple.Tuple{}, err
	}
	return p.metas[rid.Slot], p.tuples[rid.Slot], nil
}

func (p *page) check(rid primitives.RID) error {
	if rid.PageID != p.id || int(rid.Slot) >= len(p.tuples) {
		return errors.Wrapf(ErrInvalidRID, "rid %s", rid)
	}
	return nil
}
