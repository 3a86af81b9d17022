package index

import (
	"log/slog"
	"sync"

	"github.com/Aman-CERP/bmdb/internal/bitmap"
	"github.com/Aman-CERP/bmdb/internal/textindex"
	"github.com/Aman-CERP/bmdb/internal/value"
	"github.com/Aman-CERP/bmdb/internal/vectorindex"
)

// Manager owns the set of per-field B-tree indexes for one table, their
// aggregate statistics, and the table's total document count, per
// spec.md §4.I. It also owns the optional text (Bleve) and vector (HNSW)
// indexes of the fields registered for them, addressed by field name.
type Manager struct {
	mu           sync.RWMutex
	fields       map[string]*FieldIndex
	textFields   map[string]bool // fields with a registered text index
	textIndexes  map[string]*textindex.Index
	vectorFields map[string]VectorConfig // fields with a registered HNSW index
	vectorGraphs map[string]*vectorindex.Index
	totalDocs    int
}

// VectorConfig describes the HNSW index a schema-declared vector field is
// maintained under: fixed dimensionality and distance metric.
type VectorConfig struct {
	Dimensions        int
	DistanceAlgorithm string
}

// NewManager returns a Manager with no indexed fields and zero documents.
func NewManager() *Manager {
	return &Manager{
		fields:       make(map[string]*FieldIndex),
		textFields:   make(map[string]bool),
		textIndexes:  make(map[string]*textindex.Index),
		vectorFields: make(map[string]VectorConfig),
		vectorGraphs: make(map[string]*vectorindex.Index),
	}
}

// EnsureField returns field's index, creating it on first use.
func (m *Manager) EnsureField(field string) *FieldIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	fi, ok := m.fields[field]
	if !ok {
		fi = NewFieldIndex()
		m.fields[field] = fi
	}
	return fi
}

// RegisterTextField marks field as having a text index available, and
// creates the Bleve index backing it, so the planner can route
// matches_text leaves to it instead of falling back. If the Bleve index
// fails to build, the field is still marked (HasTextIndex stays true per
// the registration intent) but matches_text on it degrades to
// scan-and-filter, the same result set a missing index gives.
func (m *Manager) RegisterTextField(field string) {
	idx, err := textindex.New()
	if err != nil {
		slog.Warn("text_index_unavailable", slog.String("field", field), slog.String("error", err.Error()))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.textFields[field] = true
	if idx != nil {
		m.textIndexes[field] = idx
	}
}

// HasTextIndex reports whether field has a registered text index.
func (m *Manager) HasTextIndex(field string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.textFields[field]
}

// textIndexRO returns field's Bleve index, or nil if none backs it.
func (m *Manager) textIndexRO(field string) *textindex.Index {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.textIndexes[field]
}

// RegisterVectorField marks field as holding fixed-dimension vectors,
// creating the HNSW index it is maintained in under the given distance
// algorithm, so the planner can route nearest() leaves to it.
func (m *Manager) RegisterVectorField(field string, cfg VectorConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectorFields[field] = cfg
	m.vectorGraphs[field] = vectorindex.New(vectorindex.Config{
		Dimensions:        cfg.Dimensions,
		DistanceAlgorithm: cfg.DistanceAlgorithm,
	})
}

// VectorIndex returns field's registered HNSW configuration, if any.
func (m *Manager) VectorIndex(field string) (VectorConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.vectorFields[field]
	return cfg, ok
}

// NearestSearch returns up to k document ids whose field vector is
// nearest to vector, nearest first. Reports ok=false if field has no
// registered vector index.
func (m *Manager) NearestSearch(field string, vector []float64, k int) (ids []uint32, ok bool, err error) {
	m.mu.RLock()
	g, registered := m.vectorGraphs[field]
	m.mu.RUnlock()
	if !registered {
		return nil, false, nil
	}
	ids, err = g.Search(vector, k)
	return ids, true, err
}

func extractVector(v value.Value) ([]float64, bool) {
	arr, ok := v.AsArray()
	if !ok {
		return nil, false
	}
	out := make([]float64, len(arr))
	for i, e := range arr {
		f, ok := e.AsNumber()
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// fieldRO returns field's index without creating it, or nil if absent.
func (m *Manager) fieldRO(field string) *FieldIndex {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fields[field]
}

// Insert adds docID to every field present in body's top-level keys that
// holds an indexable (primitive) value, into that field's index, and
// into any registered vector field's HNSW index.
func (m *Manager) Insert(docID bitmap.DocID, body value.Value) {
	mp, ok := body.AsMap()
	if !ok {
		return
	}
	for _, key := range mp.Keys() {
		v, _ := mp.Get(key)
		if v.IsPrimitive() {
			m.EnsureField(key).Insert(v, docID)
			if ti := m.textIndexRO(key); ti != nil {
				if s, ok := v.AsString(); ok {
					if err := ti.Add(uint32(docID), s); err != nil {
						slog.Warn("text_index_add_failed", slog.String("field", key), slog.Any("doc_id", docID), slog.String("error", err.Error()))
					}
				}
			}
			continue
		}
		if g := m.vectorGraphRO(key); g != nil {
			if vec, ok := extractVector(v); ok {
				g.Add(uint32(docID), vec)
			}
		}
	}
}

// Remove removes docID from every field index it was present in, given
// its old body, including any registered vector field's HNSW index.
func (m *Manager) Remove(docID bitmap.DocID, body value.Value) {
	mp, ok := body.AsMap()
	if !ok {
		return
	}
	for _, key := range mp.Keys() {
		v, _ := mp.Get(key)
		if v.IsPrimitive() {
			if fi := m.fieldRO(key); fi != nil {
				fi.Remove(v, docID)
			}
			if ti := m.textIndexRO(key); ti != nil {
				if err := ti.Remove(uint32(docID)); err != nil {
					slog.Warn("text_index_remove_failed", slog.String("field", key), slog.Any("doc_id", docID), slog.String("error", err.Error()))
				}
			}
			continue
		}
		if g := m.vectorGraphRO(key); g != nil {
			g.Remove(uint32(docID))
		}
	}
}

// vectorGraphRO returns field's HNSW index, or nil if none is registered.
func (m *Manager) vectorGraphRO(field string) *vectorindex.Index {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vectorGraphs[field]
}

// Update removes docID from every index entry of oldBody and reinserts it
// under every entry of newBody, including fields whose value did not
// change.
func (m *Manager) Update(docID bitmap.DocID, oldBody, newBody value.Value) {
	m.Remove(docID, oldBody)
	m.Insert(docID, newBody)
}

// Reset discards every field index, every vector index's data, and
// resets the document count to zero, for a table truncate. Registered
// text-field names and vector-field configurations survive, since those
// come from schema registration, not accumulated data.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields = make(map[string]*FieldIndex)
	for field, cfg := range m.vectorFields {
		m.vectorGraphs[field] = vectorindex.New(vectorindex.Config{
			Dimensions:        cfg.Dimensions,
			DistanceAlgorithm: cfg.DistanceAlgorithm,
		})
	}
	for field := range m.textFields {
		if idx, err := textindex.New(); err != nil {
			slog.Warn("text_index_unavailable", slog.String("field", field), slog.String("error", err.Error()))
			delete(m.textIndexes, field)
		} else {
			m.textIndexes[field] = idx
		}
	}
	m.totalDocs = 0
}

// SetTotalDocs records the table's current document count, used by the
// cost model's fullScan estimate.
func (m *Manager) SetTotalDocs(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalDocs = n
}

// TotalDocs returns the table's current document count.
func (m *Manager) TotalDocs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalDocs
}

// DistinctValues returns the number of distinct values indexed for
// field, or 0 if the field has no index (no stats available).
func (m *Manager) DistinctValues(field string) int {
	fi := m.fieldRO(field)
	if fi == nil {
		return 0
	}
	_, distinct := fi.Stats()
	return distinct
}

// bitmapFor evaluates a single Condition against field's index, union of
// its ranges for condRangeUnion. Returns nil if the field has no index.
func (m *Manager) bitmapFor(c Condition) *bitmap.Bitmap {
	if c.Kind == condRangeUnion {
		parts := make([]*bitmap.Bitmap, 0, len(c.Ranges))
		for _, r := range c.Ranges {
			if b := m.bitmapFor(r); b != nil {
				parts = append(parts, b)
			}
		}
		if len(parts) == 0 {
			return bitmap.New()
		}
		return bitmap.Union(parts...)
	}

	if c.Kind == condMatchesText {
		ti := m.textIndexRO(c.Field)
		if ti == nil {
			return nil
		}
		text, _ := c.Value.AsString()
		ids, err := ti.Search(text, ti.Len())
		if err != nil || len(ids) == 0 {
			return bitmap.New()
		}
		b := bitmap.New()
		for _, id := range ids {
			b.Add(bitmap.DocID(id))
		}
		return b
	}

	fi := m.fieldRO(c.Field)
	if fi == nil {
		return nil
	}
	switch c.Kind {
	case condEq:
		return fi.GetExact(c.Value)
	case condLt:
		return fi.GetLessThan(c.Value, false)
	case condLe:
		return fi.GetLessThan(c.Value, true)
	case condGt:
		return fi.GetGreaterThan(c.Value, false)
	case condGe:
		return fi.GetGreaterThan(c.Value, true)
	case condBetween:
		return fi.GetRange(c.Value, c.Value2, true, true)
	case condIn:
		parts := make([]*bitmap.Bitmap, 0, len(c.Values))
		for _, v := range c.Values {
			parts = append(parts, fi.GetExact(v))
		}
		if len(parts) == 0 {
			return bitmap.New()
		}
		return bitmap.Union(parts...)
	default:
		return nil
	}
}
