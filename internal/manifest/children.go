package manifest

import "github.com/cxparchive/cxp/internal/archiveref"

// ChildrenMap is id→ArchiveRef with an insertion-ordered id list, so
// iteration order is stable and predictable.
type ChildrenMap struct {
	ByID  map[string]*archiveref.ArchiveRef `msgpack:"by_id"`
	Order []string                          `msgpack:"order"`
}

// NewChildrenMap returns an empty ChildrenMap.
func NewChildrenMap() ChildrenMap {
	return ChildrenMap{ByID: make(map[string]*archiveref.ArchiveRef)}
}

// Insert adds or replaces the entry for id, appending to Order only the
// first time id is seen.
func (c *ChildrenMap) Insert(id string, ref *archiveref.ArchiveRef) {
	if c.ByID == nil {
		c.ByID = make(map[string]*archiveref.ArchiveRef)
	}
	if _, exists := c.ByID[id]; !exists {
		c.Order = append(c.Order, id)
	}
	c.ByID[id] = ref
}

// Get returns the entry for id, if present.
func (c ChildrenMap) Get(id string) (*archiveref.ArchiveRef, bool) {
	ref, ok := c.ByID[id]
	return ref, ok
}

// Remove deletes id from both the map and the order list.
func (c *ChildrenMap) Remove(id string) {
	delete(c.ByID, id)
	for i, existing := range c.Order {
		if existing == id {
			c.Order = append(c.Order[:i], c.Order[i+1:]...)
			break
		}
	}
}

// Len returns the number of children.
func (c ChildrenMap) Len() int {
	return len(c.ByID)
}

// Ordered returns children in insertion order.
func (c ChildrenMap) Ordered() []*archiveref.ArchiveRef {
	out := make([]*archiveref.ArchiveRef, 0, len(c.Order))
	for _, id := range c.Order {
		if ref, ok := c.ByID[id]; ok {
			out = append(out, ref)
		}
	}
	return out
}
