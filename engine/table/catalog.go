package table

import (
	"sort"
	"sync"

	"mvdb/engine/primitives"
	"mvdb/engine/tuple"

	"github.com/pkg/errors"
)

type Info struct {
	ID     primitives.TableID
	Name   string
	Schema *tuple.Schema
	Heap   Heap
}

// Catalog maps table ids and names to their heaps.
type Catalog struct {
	pageCapacity int
	pages        *PageAllocator

	mutex  sync.RWMutex
	nextID primitives.TableID
	byID   map[primitives.TableID]*Info
	byName map[string]*Info
}

func NewCatalog(pageCapacity int) *Catalog {
	return &Catalog{
		pageCapacity: pageCapacity,
		pages:        NewPageAllocator(),
		byID:         make(map[primitives.TableID]*Info),
		byName:       make(map[string]*Info),
	}
}

func (c *Catalog) CreateTable(name string, schema *tuple.Schema) (*Info, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.byName[name]; ok {
		return nil, errors.Wrapf(ErrTableExists, "table %q", name)
	}

	info := &Info{
		ID:     c.nextID,
		Name:   name,
		Schema: schema,
		Heap:   NewMemoryHeap(c.pageCapacity, c.pages),
	}
	c.nextID++

	c.byID[info.ID] = info
	c.byName[name] = info
	return info, nil
}

func (c *Catalog) Table(id primitives.TableID) (*Info, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	info, ok := c.byID[id]
	return info, ok
}

func (c *Catalog) TableByName(name string) (*Info, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	info, ok := c.byName[name]
	return info, ok
}

// Tables returns every table ordered by id.
func (c *Catalog) Tables() []*Info {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	tables := make([]*Info, 0, len(c.byID))
	for _, info := range c.byID {
		tables = append(tables, info)
	}

	sort.Slice(tables, func(i, j int) bool {
		return tables[i].ID < tables[j].ID
	})
	return tables
}
