package filestore

import (
	"encoding/binary"
	"sort"
	"strconv"
	"strings"

	"github.com/Aman-CERP/bmdb/internal/btree"
	"github.com/Aman-CERP/bmdb/internal/dberrors"
	"github.com/Aman-CERP/bmdb/internal/msgpack"
	"github.com/Aman-CERP/bmdb/internal/value"
)

// docSpan is a freed, reclaimable byte range in the document area; spans
// are only ever consumed by Compact, never reused for new appends (new
// records always land at the current free-space offset).
type docSpan struct {
	offset uint32
	length uint32
}

// Store is the single-file document store: header + fixed-size B-tree
// node area + variable-length document area, all addressed through a
// chunked cache. Table keys in the tree are "<table>/<docId>".
type Store struct {
	pages  *chunkCache
	header Header
	tree   *btree.Tree
	free   []docSpan
}

// Open attaches a Store to raw, initializing a fresh header if raw is an
// empty file and otherwise validating and loading the existing one.
func Open(raw RawIO, nodeCacheSize, chunkCacheSize int) (*Store, error) {
	pages, err := newChunkCache(raw, chunkCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Store{pages: pages}

	size, err := raw.Size()
	if err != nil {
		return nil, err
	}
	if size < HeaderSize {
		s.header = Header{Version: FormatVersion, RootOffset: btree.NoOffset, NextNodeOffset: 0, DocCount: 0, FreeSpaceOffset: 0}
		if err := s.writeHeader(); err != nil {
			return nil, err
		}
	} else {
		buf := make([]byte, HeaderSize)
		if err := pages.ReadAt(buf, 0); err != nil {
			return nil, err
		}
		h, err := decodeHeader(buf)
		if err != nil {
			return nil, err
		}
		s.header = h
	}

	s.tree = btree.Open(s, s.header.RootOffset, nodeCacheSize)
	return s, nil
}

func (s *Store) writeHeader() error {
	return s.pages.WriteAt(encodeHeader(s.header), 0)
}

// --- btree.PageIO ---

// Read loads the NodeSize-byte node slot at offset within the node area.
func (s *Store) Read(offset uint32) ([]byte, error) {
	if int64(offset)+btree.NodeSize > BTreeAreaSize {
		return nil, &dberrors.Corruption{Where: "filestore.Read", Detail: "node offset exceeds btree area"}
	}
	buf := make([]byte, btree.NodeSize)
	if err := s.pages.ReadAt(buf, HeaderSize+int64(offset)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Write persists a NodeSize-byte node slot at offset.
func (s *Store) Write(offset uint32, data []byte) error {
	return s.pages.WriteAt(data, HeaderSize+int64(offset))
}

// Grow allocates the next unused node slot in the node area.
func (s *Store) Grow() (uint32, error) {
	offset := s.header.NextNodeOffset
	if int64(offset)+btree.NodeSize > BTreeAreaSize {
		return 0, &dberrors.Unsupported{Detail: "filestore: btree node area exhausted"}
	}
	s.header.NextNodeOffset += btree.NodeSize
	return offset, nil
}

// --- document records ---

func docKey(table string, docID uint32) string {
	return table + "/" + strconv.FormatUint(uint64(docID), 10)
}

// splitDocKey reverses docKey, recovering the table name and doc id.
func splitDocKey(key string) (table string, docID uint32, ok bool) {
	i := strings.LastIndexByte(key, '/')
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.ParseUint(key[i+1:], 10, 32)
	if err != nil {
		return "", 0, false
	}
	return key[:i], uint32(n), true
}

func (s *Store) readRecord(entry btree.LeafEntry) (value.Value, error) {
	if entry.Length < 4 {
		return value.Value{}, &dberrors.Corruption{Where: "filestore.readRecord", Detail: "record shorter than length prefix"}
	}
	raw := make([]byte, entry.Length)
	if err := s.pages.ReadAt(raw, DocAreaStart+int64(entry.Offset)); err != nil {
		return value.Value{}, err
	}
	payloadLen := binary.BigEndian.Uint32(raw[0:4])
	if int(payloadLen) != len(raw)-4 {
		return value.Value{}, &dberrors.Corruption{Where: "filestore.readRecord", Detail: "record length field does not match stored span"}
	}
	return msgpack.Decode(raw[4:])
}

// writeRecord appends body at the current free-space offset and returns
// the entry describing its location. It never reuses a freed span —
// Compact is the only path that reclaims document-area space.
func (s *Store) writeRecord(body value.Value) (btree.LeafEntry, error) {
	payload, err := msgpack.Encode(body)
	if err != nil {
		return btree.LeafEntry{}, err
	}
	record := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(record[0:4], uint32(len(payload)))
	copy(record[4:], payload)

	entry := btree.LeafEntry{Offset: s.header.FreeSpaceOffset, Length: uint32(len(record))}
	if err := s.pages.WriteAt(record, DocAreaStart+int64(entry.Offset)); err != nil {
		return btree.LeafEntry{}, err
	}
	s.header.FreeSpaceOffset += uint32(len(record))
	return entry, nil
}

// --- public table operations ---

// ReadDocument returns the body stored for (table, docID).
func (s *Store) ReadDocument(table string, docID uint32) (value.Value, bool, error) {
	entry, found, err := s.tree.Find(docKey(table, docID))
	if err != nil || !found {
		return value.Value{}, found, err
	}
	v, err := s.readRecord(entry)
	return v, true, err
}

// WriteDocument upserts (table, docID, body).
func (s *Store) WriteDocument(table string, docID uint32, body value.Value) error {
	key := docKey(table, docID)
	oldEntry, existed, err := s.tree.Find(key)
	if err != nil {
		return err
	}
	entry, err := s.writeRecord(body)
	if err != nil {
		return err
	}
	if err := s.tree.Insert(key, entry); err != nil {
		return err
	}
	if existed {
		s.free = append(s.free, docSpan{offset: oldEntry.Offset, length: oldEntry.Length})
	} else {
		s.header.DocCount++
	}
	return s.writeHeader()
}

// DeleteDocument removes (table, docID), if present.
func (s *Store) DeleteDocument(table string, docID uint32) error {
	key := docKey(table, docID)
	entry, found, err := s.tree.Find(key)
	if err != nil || !found {
		return err
	}
	if err := s.tree.Remove(key); err != nil {
		return err
	}
	s.free = append(s.free, docSpan{offset: entry.Offset, length: entry.Length})
	s.header.DocCount--
	return s.writeHeader()
}

// ReadDocumentsBulk returns the bodies for every id in ids that exists.
func (s *Store) ReadDocumentsBulk(table string, ids []uint32) (map[uint32]value.Value, error) {
	out := make(map[uint32]value.Value, len(ids))
	for _, id := range ids {
		v, found, err := s.ReadDocument(table, id)
		if err != nil {
			return nil, err
		}
		if found {
			out[id] = v
		}
	}
	return out, nil
}

// UpdateDocumentsBulk upserts every (id, body) pair in bodies.
func (s *Store) UpdateDocumentsBulk(table string, bodies map[uint32]value.Value) error {
	for id, body := range bodies {
		if err := s.WriteDocument(table, id, body); err != nil {
			return err
		}
	}
	return nil
}

// Read returns the full docId -> body map for table, via a leaf-scan over
// keys sharing the table's prefix.
func (s *Store) Read(table string) (map[uint32]value.Value, error) {
	keys, entries, err := s.scanTable(table)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]value.Value, len(keys))
	for i, key := range keys {
		_, docID, ok := splitDocKey(key)
		if !ok {
			continue
		}
		v, err := s.readRecord(entries[i])
		if err != nil {
			return nil, err
		}
		out[docID] = v
	}
	return out, nil
}

// Write computes the diff between table's current contents and full, then
// applies adds/updates/removes; finer-grained calls are preferred when
// the caller already knows which documents changed.
func (s *Store) Write(table string, full map[uint32]value.Value) error {
	current, err := s.Read(table)
	if err != nil {
		return err
	}
	for id, body := range full {
		if old, existed := current[id]; !existed || !value.Equal(old, body) {
			if err := s.WriteDocument(table, id, body); err != nil {
				return err
			}
		}
	}
	for id := range current {
		if _, keep := full[id]; !keep {
			if err := s.DeleteDocument(table, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// scanTable returns every key/entry pair whose key has the "table/" prefix,
// exploiting the tree's leaf chaining for sequential I/O. Pairs come back
// in lexicographic key order (e.g. "t/10" before "t/2"), not in numeric
// doc-id order.
func (s *Store) scanTable(table string) ([]string, []btree.LeafEntry, error) {
	lo := table + "/"
	hi := table + "/\xff\xff\xff\xff\xff\xff\xff\xff\xff\xff"
	keys, entries, err := s.tree.ScanRange(lo, hi)
	if err != nil {
		return nil, nil, err
	}
	filtered := keys[:0:0]
	filteredEntries := entries[:0:0]
	for i, k := range keys {
		if strings.HasPrefix(k, lo) {
			filtered = append(filtered, k)
			filteredEntries = append(filteredEntries, entries[i])
		}
	}
	return filtered, filteredEntries, nil
}

// Sync persists the B-tree, the header, and every dirty cache page.
func (s *Store) Sync() error {
	s.header.RootOffset = s.tree.Root()
	if err := s.tree.Sync(); err != nil {
		return err
	}
	if err := s.writeHeader(); err != nil {
		return err
	}
	return s.pages.Sync()
}

// Stats reports chunk-cache hit/miss/dirty counters.
func (s *Store) Stats() (hits, misses, dirty uint64) { return s.pages.Stats() }

// DocCount returns the number of live documents across all tables.
func (s *Store) DocCount() uint32 { return s.header.DocCount }

// FreeBytes returns the total size of document-area spans freed by
// deletes and updates but not yet reclaimed by Compact.
func (s *Store) FreeBytes() uint32 {
	var total uint32
	for _, span := range s.free {
		total += span.length
	}
	return total
}

// Compact rewrites the document area, dropping freed spans and rewriting
// every B-tree entry to its new location; the node area and B-tree
// structure itself are untouched.
func (s *Store) Compact() error {
	keys, entries, err := s.tree.Scan()
	if err != nil {
		return err
	}

	type indexed struct {
		key   string
		entry btree.LeafEntry
	}
	ordered := make([]indexed, len(keys))
	for i, k := range keys {
		ordered[i] = indexed{key: k, entry: entries[i]}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].entry.Offset < ordered[j].entry.Offset })

	var newOffset uint32
	for _, rec := range ordered {
		raw := make([]byte, rec.entry.Length)
		if err := s.pages.ReadAt(raw, DocAreaStart+int64(rec.entry.Offset)); err != nil {
			return err
		}
		if newOffset != rec.entry.Offset {
			if err := s.pages.WriteAt(raw, DocAreaStart+int64(newOffset)); err != nil {
				return err
			}
		}
		if err := s.tree.Insert(rec.key, btree.LeafEntry{Offset: newOffset, Length: rec.entry.Length}); err != nil {
			return err
		}
		newOffset += rec.entry.Length
	}

	s.header.FreeSpaceOffset = newOffset
	s.free = nil
	return s.Sync()
}
