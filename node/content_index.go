package node

import (
	"sync"

	"samizdat/content"
	"samizdat/hash"
)

// ContentIndex is the node's ObjectFinder (spec §4.9's resolve): objects are
// tested directly against the backing store's metadata table, while
// collection items — which have no persisted locator index of their own yet
// — are tracked in memory as they are built or received.
type ContentIndex struct {
	store *content.Store

	mu    sync.RWMutex
	items []content.Item
}

func NewContentIndex(store *content.Store) *ContentIndex {
	return &ContentIndex{store: store}
}

// TrackItem registers a collection item as locally servable. Call this
// whenever a collection is built locally or an item arrives over a
// transfer.
func (c *ContentIndex) TrackItem(it content.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, it)
}

func (c *ContentIndex) FindObject(cr riddleResolver) (hash.Hash, bool) {
	hashes, err := c.store.Hashes()
	if err != nil {
		return hash.Hash{}, false
	}
	for _, h := range hashes {
		if cr.Resolves(h) {
			return h, true
		}
	}
	return hash.Hash{}, false
}

func (c *ContentIndex) FindItem(cr riddleResolver) (content.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if cr.Resolves(it.ObjectHash) {
			return it, true
		}
	}
	return content.Item{}, false
}
