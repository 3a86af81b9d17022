package btree

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// PageIO is the storage hook the tree operates over: it never opens a file
// itself. Read/Write address fixed NodeSize-byte slots by offset; Grow
// allocates a brand new slot past the current end of the node area.
type PageIO interface {
	Read(offset uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	Grow() (uint32, error)
}

// DefaultCacheSize is the default node-cache capacity.
const DefaultCacheSize = 1000

// fillFactor is the target occupancy the cache evicts down to once it
// reaches capacity.
const fillFactor = 0.8

// freeListCap bounds how many freed node offsets are held for reuse before
// being dropped on the floor, so the free list can't grow unbounded.
const freeListCap = 4096

// nodeCache is the B-tree's node LRU plus a capped free-offset list. It
// wraps hashicorp/golang-lru/v2 with an explicit target fill factor rather
// than relying on the library's own fixed-capacity eviction.
type nodeCache struct {
	io     PageIO
	cache  *lru.Cache[uint32, *Node]
	dirty  map[uint32]bool
	target int
	free   []uint32

	hits, misses uint64
}

func newNodeCache(io PageIO, target int) *nodeCache {
	if target <= 0 {
		target = DefaultCacheSize
	}
	nc := &nodeCache{io: io, target: target, dirty: make(map[uint32]bool)}
	// The underlying lru.Cache's own single-eviction-per-Add policy is
	// disabled by over-provisioning its capacity; nodeCache decides *when*
	// and *how many* entries to evict (down to fillFactor) itself, using
	// RemoveOldest. The eviction callback is the single place a dirty node
	// gets written back, regardless of why it left the cache.
	cache, _ := lru.NewWithEvict[uint32, *Node](target*4+16, nc.onEvict)
	nc.cache = cache
	return nc
}

func (nc *nodeCache) onEvict(offset uint32, n *Node) {
	if !nc.dirty[offset] {
		return
	}
	delete(nc.dirty, offset)
	buf, err := Serialize(n)
	if err != nil {
		// A node that fails to serialize on eviction is unrecoverable
		// corruption; there is no caller on this callback's stack to
		// propagate the error to, so the node is dropped. put marks a node
		// dirty without serializing it, so a serialize failure first
		// surfaces here (or in flush).
		return
	}
	_ = nc.io.Write(offset, buf)
}

// get loads a node, consulting the cache first.
func (nc *nodeCache) get(offset uint32) (*Node, error) {
	if n, ok := nc.cache.Get(offset); ok {
		nc.hits++
		return n, nil
	}
	nc.misses++
	raw, err := nc.io.Read(offset)
	if err != nil {
		return nil, err
	}
	n, err := Deserialize(offset, raw)
	if err != nil {
		return nil, err
	}
	nc.cache.Add(offset, n)
	nc.trim()
	return n, nil
}

// put installs n in the cache and marks it dirty, to be written back on
// eviction or explicit flush.
func (nc *nodeCache) put(n *Node) {
	nc.cache.Add(n.Self, n)
	nc.dirty[n.Self] = true
	nc.trim()
}

// trim evicts the least-recently-used entries down to target*fillFactor
// once the cache has grown past target.
func (nc *nodeCache) trim() {
	if nc.cache.Len() <= nc.target {
		return
	}
	want := int(float64(nc.target) * fillFactor)
	for nc.cache.Len() > want {
		if _, _, ok := nc.cache.RemoveOldest(); !ok {
			break
		}
	}
}

// flush writes back every dirty node still in the cache immediately (used
// by Tree.Sync).
func (nc *nodeCache) flush() error {
	for offset := range nc.dirty {
		n, ok := nc.cache.Get(offset)
		if !ok {
			continue
		}
		buf, err := Serialize(n)
		if err != nil {
			return err
		}
		if err := nc.io.Write(offset, buf); err != nil {
			return err
		}
		delete(nc.dirty, offset)
	}
	return nil
}

// alloc returns an offset for a brand new node, preferring a recycled
// offset from a prior release() over growing the node area.
func (nc *nodeCache) alloc() (uint32, error) {
	if len(nc.free) > 0 {
		offset := nc.free[len(nc.free)-1]
		nc.free = nc.free[:len(nc.free)-1]
		return offset, nil
	}
	return nc.io.Grow()
}

// release returns offset to the recycling list, if there's room; beyond
// freeListCap the offset is simply abandoned (never reused, never
// corrupted — just unreclaimed space).
func (nc *nodeCache) release(offset uint32) {
	nc.cache.Remove(offset)
	delete(nc.dirty, offset)
	if len(nc.free) < freeListCap {
		nc.free = append(nc.free, offset)
	}
}
