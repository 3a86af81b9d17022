package filestore

import (
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ChunkSize is the power-of-two page size reads/writes are batched into.
const ChunkSize = 4096

// DefaultChunkCacheSize is the default number of chunks held in memory.
const DefaultChunkCacheSize = 1000

// chunkCache amortizes small reads/writes into ChunkSize-byte pages over a
// RawIO, tracking dirty pages and flushing them on Sync (or on eviction,
// so memory pressure never loses a write). It is the counterpart of
// internal/btree's nodeCache, one layer below it.
type chunkCache struct {
	raw   RawIO
	size  int64 // highest byte offset ever written + 1
	cache *lru.Cache[int64, []byte]
	dirty map[int64]bool

	hits, misses, dirtyCount uint64
}

func newChunkCache(raw RawIO, capacity int) (*chunkCache, error) {
	if capacity <= 0 {
		capacity = DefaultChunkCacheSize
	}
	cc := &chunkCache{raw: raw, dirty: make(map[int64]bool)}
	cache, err := lru.NewWithEvict[int64, []byte](capacity, cc.onEvict)
	if err != nil {
		return nil, err
	}
	cc.cache = cache

	size, err := raw.Size()
	if err != nil {
		return nil, err
	}
	cc.size = size
	return cc, nil
}

func (cc *chunkCache) onEvict(idx int64, page []byte) {
	if !cc.dirty[idx] {
		return
	}
	delete(cc.dirty, idx)
	cc.dirtyCount--
	_, _ = cc.raw.WriteAt(page, idx*ChunkSize)
}

// loadPage returns the ChunkSize-byte page at chunk index idx, reading
// through to raw storage (and zero-padding past current EOF) on a miss.
func (cc *chunkCache) loadPage(idx int64) ([]byte, error) {
	if page, ok := cc.cache.Get(idx); ok {
		cc.hits++
		return page, nil
	}
	cc.misses++
	page := make([]byte, ChunkSize)
	n, err := cc.raw.ReadAt(page, idx*ChunkSize)
	if err != nil && err != io.EOF && !(n > 0 && err == io.ErrUnexpectedEOF) {
		return nil, err
	}
	cc.cache.Add(idx, page)
	return page, nil
}

// ReadAt copies len(buf) bytes starting at offset into buf.
func (cc *chunkCache) ReadAt(buf []byte, offset int64) error {
	remaining := buf
	pos := offset
	for len(remaining) > 0 {
		idx := pos / ChunkSize
		within := pos % ChunkSize
		page, err := cc.loadPage(idx)
		if err != nil {
			return err
		}
		n := copy(remaining, page[within:])
		remaining = remaining[n:]
		pos += int64(n)
	}
	return nil
}

// WriteAt writes buf at offset, marking every touched chunk dirty.
func (cc *chunkCache) WriteAt(buf []byte, offset int64) error {
	remaining := buf
	pos := offset
	for len(remaining) > 0 {
		idx := pos / ChunkSize
		within := pos % ChunkSize
		page, err := cc.loadPage(idx)
		if err != nil {
			return err
		}
		n := copy(page[within:], remaining)
		cc.cache.Add(idx, page)
		if !cc.dirty[idx] {
			cc.dirty[idx] = true
			cc.dirtyCount++
		}
		remaining = remaining[n:]
		pos += int64(n)
	}
	if offset+int64(len(buf)) > cc.size {
		cc.size = offset + int64(len(buf))
	}
	return nil
}

// Sync flushes every dirty page to raw storage, truncates raw to the
// known logical size, and fsyncs.
func (cc *chunkCache) Sync() error {
	for idx := range cc.dirty {
		page, ok := cc.cache.Get(idx)
		if !ok {
			continue
		}
		if _, err := cc.raw.WriteAt(page, idx*ChunkSize); err != nil {
			return err
		}
	}
	cc.dirty = make(map[int64]bool)
	cc.dirtyCount = 0
	if err := cc.raw.Truncate(cc.size); err != nil {
		return err
	}
	return cc.raw.Sync()
}

// Stats reports cache hits, misses, and the current dirty-page count, for
// callers that want visibility into I/O amortization.
func (cc *chunkCache) Stats() (hits, misses, dirty uint64) {
	return cc.hits, cc.misses, cc.dirtyCount
}
