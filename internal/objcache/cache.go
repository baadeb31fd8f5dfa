// Package objcache is the explicit (coh, oid)-keyed object handle cache
// Design Notes call for in place of a global "current container" handle.
// It wraps hashicorp/golang-lru for bounded retention and layers a plain
// reference count on top, since the bare LRU has no notion of "in use".
package objcache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/daos-stack/voscore/internal/kvtree"
)

// Key identifies a held object: container handle plus object ID.
type Key struct {
	COH uint64
	OID kvtree.OID
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d.%d", k.COH, k.OID.Hi, k.OID.Lo)
}

// Handle is a reference-counted hold on one object's node.
type Handle struct {
	Key      Key
	Node     *kvtree.ObjectNode
	Epoch    uint64
	ForWrite bool

	refs int
}

// Cache is the (coh, oid) -> *Handle cache. The embedded LRU provides
// bounded retention of handles that currently have zero references; entries
// with refs > 0 are pinned and never evicted by the LRU (Evict or a matching
// number of Release calls is required).
type Cache struct {
	mu      sync.Mutex
	lru     *lru.Cache
	pinned  map[Key]*Handle
	resolve func(Key, uint64, bool) (*kvtree.ObjectNode, error)
}

// New constructs a Cache of the given bounded size (entries with refs==0).
// resolve loads or creates the object node backing a given key the first
// time it is held.
func New(size int, resolve func(key Key, epoch uint64, forWrite bool) (*kvtree.ObjectNode, error)) (*Cache, error) {
	c := &Cache{pinned: make(map[Key]*Handle), resolve: resolve}
	l, err := lru.NewWithEvict(size, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("objcache: new lru: %w", err)
	}
	c.lru = l
	return c, nil
}

func (c *Cache) onEvict(key interface{}, value interface{}) {
	// Eviction from the unreferenced pool only; referenced handles are
	// tracked separately in c.pinned and never placed in c.lru while
	// refs > 0, so this callback never needs to consult refcounts.
}

// Hold returns the handle for (coh, oid), creating and resolving it if
// necessary, and increments its reference count.
func (c *Cache) Hold(coh uint64, oid kvtree.OID, epoch uint64, forWrite bool) (*Handle, error) {
	key := Key{COH: coh, OID: oid}
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.pinned[key]; ok {
		h.refs++
		return h, nil
	}
	if v, ok := c.lru.Get(key); ok {
		h := v.(*Handle)
		c.lru.Remove(key)
		h.refs++
		c.pinned[key] = h
		return h, nil
	}
	node, err := c.resolve(key, epoch, forWrite)
	if err != nil {
		return nil, err
	}
	h := &Handle{Key: key, Node: node, Epoch: epoch, ForWrite: forWrite, refs: 1}
	c.pinned[key] = h
	return h, nil
}

// Release drops one reference on h. When the count reaches zero the handle
// moves into the bounded LRU, eligible for later reuse or eviction.
func (c *Cache) Release(h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h.refs--
	if h.refs > 0 {
		return
	}
	delete(c.pinned, h.Key)
	c.lru.Add(h.Key, h)
}

// Evict forcibly removes (coh, oid) from the cache regardless of reference
// count, matching the aggregator's "evict on OBJ-level pop" behavior: the
// walk may have deleted the object's subtree entirely, so any cached handle
// is stale and must not survive to the next Hold.
func (c *Cache) Evict(coh uint64, oid kvtree.OID) {
	key := Key{COH: coh, OID: oid}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pinned, key)
	c.lru.Remove(key)
}
