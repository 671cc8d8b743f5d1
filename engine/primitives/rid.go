package primitives

import "fmt"

type PageID uint32

type SlotID uint32

// RID locates a physical tuple inside a table heap.
type RID struct {
	PageID PageID
	Slot   SlotID
}

func NewRID(page PageID, slot SlotID) RID {
	return RID{PageID: page, Slot: slot}
}

// Less orders RIDs by page, then by slot.
func (r RID) Less(other RID) bool {
	if r.PageID != other.PageID {
		return r.PageID < other.PageID
	}
	return r.Slot < other.Slot
}

func (r RID) String() string {
	return fmt.Sprintf("%d/%d", r.PageID, r.Slot)
}
