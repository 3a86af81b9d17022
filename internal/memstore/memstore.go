// Package memstore is a map-backed document store with the same table
// surface as internal/filestore, for the memory storage backend and as
// the base a wal.Store can layer group commit and MVCC over in tests and
// in-memory configurations. Grounded on the teacher's bounded-structure
// collapse idiom in internal/embed/cached.go (an LRU caps a structure's
// size and resolves overflow by eviction); here a per-table delta log
// caps its size and resolves overflow by collapsing into the map.
package memstore

import (
	"sync"

	"github.com/Aman-CERP/bmdb/internal/value"
)

// deltaKind discriminates one delta log entry's operation.
type deltaKind uint8

const (
	deltaWrite deltaKind = iota
	deltaDelete
)

type delta struct {
	kind  deltaKind
	docID uint32
	body  value.Value
}

// DefaultDeltaLogCap is the default number of buffered delta entries kept
// per table before they are collapsed into the table's map.
const DefaultDeltaLogCap = 256

// Store is the in-memory table store: a map from table name to a
// docId -> body map, each with its own bounded delta log.
type Store struct {
	mu        sync.RWMutex
	deltaCap  int
	tables    map[string]map[uint32]value.Value
	deltaLogs map[string][]delta
}

// Open returns an empty Store. deltaCap <= 0 uses DefaultDeltaLogCap.
func Open(deltaCap int) *Store {
	if deltaCap <= 0 {
		deltaCap = DefaultDeltaLogCap
	}
	return &Store{
		deltaCap:  deltaCap,
		tables:    make(map[string]map[uint32]value.Value),
		deltaLogs: make(map[string][]delta),
	}
}

// table returns table's document map, allocating it if absent. Callers
// must hold the write lock.
func (s *Store) table(name string) map[uint32]value.Value {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[uint32]value.Value)
		s.tables[name] = t
	}
	return t
}

// tableRO returns table's document map without allocating, for callers
// holding only the read lock.
func (s *Store) tableRO(name string) map[uint32]value.Value {
	return s.tables[name]
}

// appendDelta records one fine-grained mutation against table, collapsing
// the whole delta log into the table's map once it reaches deltaCap —
// callers never see the collapse, only its effect (the log is empty
// again and the map already reflects every buffered op).
func (s *Store) appendDelta(table string, d delta) {
	log := append(s.deltaLogs[table], d)
	if len(log) >= s.deltaCap {
		s.collapse(table, log)
		s.deltaLogs[table] = nil
		return
	}
	s.deltaLogs[table] = log
}

func (s *Store) collapse(table string, log []delta) {
	t := s.table(table)
	for _, d := range log {
		switch d.kind {
		case deltaWrite:
			t[d.docID] = d.body
		case deltaDelete:
			delete(t, d.docID)
		}
	}
}

// ReadDocument returns the body stored for (table, docID).
func (s *Store) ReadDocument(table string, docID uint32) (value.Value, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, found := s.tableRO(table)[docID]
	return value.Clone(v), found, nil
}

// WriteDocument upserts (table, docID, body) into table's map and also
// records the write in table's delta log.
func (s *Store) WriteDocument(table string, docID uint32, body value.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := value.Clone(body)
	s.table(table)[docID] = clone
	s.appendDelta(table, delta{kind: deltaWrite, docID: docID, body: clone})
	return nil
}

// DeleteDocument removes (table, docID), if present.
func (s *Store) DeleteDocument(table string, docID uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.table(table), docID)
	s.appendDelta(table, delta{kind: deltaDelete, docID: docID})
	return nil
}

// ReadDocumentsBulk returns the bodies for every id in ids that exists.
func (s *Store) ReadDocumentsBulk(table string, ids []uint32) (map[uint32]value.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.tableRO(table)
	out := make(map[uint32]value.Value, len(ids))
	for _, id := range ids {
		if v, found := t[id]; found {
			out[id] = value.Clone(v)
		}
	}
	return out, nil
}

// UpdateDocumentsBulk upserts every (id, body) pair in bodies.
func (s *Store) UpdateDocumentsBulk(table string, bodies map[uint32]value.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(table)
	for id, body := range bodies {
		clone := value.Clone(body)
		t[id] = clone
		s.appendDelta(table, delta{kind: deltaWrite, docID: id, body: clone})
	}
	return nil
}

// Read returns a cloned copy of every document in table.
func (s *Store) Read(table string) (map[uint32]value.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.tableRO(table)
	out := make(map[uint32]value.Value, len(t))
	for id, v := range t {
		out[id] = value.Clone(v)
	}
	return out, nil
}

// Write computes the diff between table's current contents and full, then
// applies adds/updates/removes.
func (s *Store) Write(table string, full map[uint32]value.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(table)
	for id, body := range full {
		if old, existed := t[id]; !existed || !value.Equal(old, body) {
			clone := value.Clone(body)
			t[id] = clone
			s.appendDelta(table, delta{kind: deltaWrite, docID: id, body: clone})
		}
	}
	for id := range t {
		if _, keep := full[id]; !keep {
			delete(t, id)
			s.appendDelta(table, delta{kind: deltaDelete, docID: id})
		}
	}
	return nil
}

// DeltaLogLen reports the number of buffered, uncollapsed delta entries
// for table.
func (s *Store) DeltaLogLen(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.deltaLogs[table])
}

// DocCount returns the number of live documents across all tables.
func (s *Store) DocCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.tables {
		n += len(t)
	}
	return n
}
