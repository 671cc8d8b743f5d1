package tx

import (
	"sync"

	"mvdb/engine/primitives"
)

type pageVersionInfo struct {
	mutex sync.RWMutex
	heads map[primitives.SlotID]UndoLink
}

// VersionDirectory maps every physical row to the head of its version chain.
// A missing entry means the row has no history beyond its base tuple.
type VersionDirectory struct {
	pages sync.Map
}

func NewVersionDirectory() *VersionDirectory {
	return &VersionDirectory{}
}

func (d *VersionDirectory) Get(rid primitives.RID) (UndoLink, bool) {
	info, ok := d.page(rid.PageID, false)
	if !ok {
		return InvalidUndoLink, false
	}

	info.mutex.RLock()
	defer info.mutex.RUnlock()

	link, ok := info.heads[rid.Slot]
	return link, ok
}

// Update installs link as the head for rid when check accepts the current
// head. An invalid link removes the entry.
func (d *VersionDirectory) Update(rid primitives.RID, link UndoLink, check func(current UndoLink, found bool) bool) bool {
	info, _ := d.page(rid.PageID, true)

	info.mutex.Lock()
	defer info.mutex.Unlock()

	current, found := info.heads[rid.Slot]
	if check != nil && !check(current, found) {
		return false
	}

	if !link.IsValid() {
		delete(info.heads, rid.Slot)
		return true
	}

	info.heads[rid.Slot] = link
	return true
}

func (d *VersionDirectory) Remove(rid primitives.RID) {
	d.Update(rid, InvalidUndoLink, nil)
}

// Len counts the rows that currently have a chain.
func (d *VersionDirectory) Len() int {
	n := 0
	d.pages.Range(func(_, value any) bool {
		info := value.(*pageVersionInfo)
		info.mutex.RLock()
		n += len(info.heads)
		info.mutex.RUnlock()
		return true
	})
	return n
}

func (d *VersionDirectory) page(id primitives.PageID, create bool) (*pageVersionInfo, bool) {
	if v, ok := d.pages.Load(id); ok {
		return v.(*pageVersionInfo), true
	}

	if !create {
		return nil, false
	}

	actual, _ := d.pages.LoadOrStore(id, &pageVersionInfo{
		heads: make(map[primitives.SlotID]UndoLink),
	})
	return actual.(*pageVersionInfo), true
}
