// Package vectorindex implements component M's HNSW approximate
// nearest-neighbor index over schema-declared vector fields, per
// spec.md §4.K / SPEC_FULL.md's vector-field addition. Grounded on
// internal/store/hnsw.go's coder/hnsw wrapper: a document's id is mapped
// to a synthetic, never-reused internal graph key, exactly as the
// teacher maps its string chunk ids to uint64 keys — re-adding a vector
// under the same document id allocates a fresh key and orphans the old
// one rather than asking coder/hnsw to update a node in place, since the
// teacher's own comment notes deleting/replacing a node can corrupt the
// graph.
package vectorindex

import (
	"fmt"
	"sync"

	"github.com/coder/hnsw"
)

// Config describes one vector field's fixed dimensionality and distance
// metric. Supported DistanceAlgorithm values: "euclidean", "cosine", "dot".
type Config struct {
	Dimensions        int
	DistanceAlgorithm string
}

// Index is one field's HNSW graph, keyed internally by a synthetic key
// and addressed externally by document id.
type Index struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[uint64]
	cfg      Config
	docToKey map[uint32]uint64
	keyToDoc map[uint64]uint32
	nextKey  uint64
}

// New returns an empty HNSW index for cfg's dimensionality and metric.
func New(cfg Config) *Index {
	g := hnsw.NewGraph[uint64]()
	switch cfg.DistanceAlgorithm {
	case "euclidean":
		g.Distance = hnsw.EuclideanDistance
	case "dot":
		g.Distance = dotDistance
	default:
		g.Distance = hnsw.CosineDistance
	}
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25
	return &Index{
		graph:    g,
		cfg:      cfg,
		docToKey: make(map[uint32]uint64),
		keyToDoc: make(map[uint64]uint32),
	}
}

// dotDistance orders by descending dot product (negated, since HNSW
// treats smaller as closer) for the "dot" distance algorithm, which
// coder/hnsw has no built-in for.
func dotDistance(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return -dot
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// Add inserts or replaces docID's vector. A prior entry for the same
// docID is orphaned (its key mapping dropped, the graph node left in
// place) rather than deleted in-graph.
func (idx *Index) Add(docID uint32, vector []float64) error {
	if len(vector) != idx.cfg.Dimensions {
		return fmt.Errorf("vectorindex: expected %d dimensions, got %d", idx.cfg.Dimensions, len(vector))
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if oldKey, ok := idx.docToKey[docID]; ok {
		delete(idx.keyToDoc, oldKey)
		delete(idx.docToKey, docID)
	}

	key := idx.nextKey
	idx.nextKey++
	idx.graph.Add(hnsw.MakeNode(key, toFloat32(vector)))
	idx.docToKey[docID] = key
	idx.keyToDoc[key] = docID
	return nil
}

// Remove orphans docID's graph node: it stops appearing in Search
// results but is not physically deleted, since coder/hnsw's own
// documentation warns that deleting a graph's last node can corrupt it.
func (idx *Index) Remove(docID uint32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if key, ok := idx.docToKey[docID]; ok {
		delete(idx.keyToDoc, key)
		delete(idx.docToKey, docID)
	}
}

// Search returns up to k document ids nearest vector, nearest first.
func (idx *Index) Search(vector []float64, k int) ([]uint32, error) {
	if len(vector) != idx.cfg.Dimensions {
		return nil, fmt.Errorf("vectorindex: expected %d dimensions, got %d", idx.cfg.Dimensions, len(vector))
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.graph.Len() == 0 {
		return nil, nil
	}

	// Over-fetch to compensate for orphaned nodes still occupying graph
	// slots, then filter down to k live results.
	fetch := k
	if orphaned := idx.graph.Len() - len(idx.keyToDoc); orphaned > 0 {
		fetch += orphaned
	}
	nodes := idx.graph.Search(toFloat32(vector), fetch)

	out := make([]uint32, 0, k)
	for _, n := range nodes {
		docID, ok := idx.keyToDoc[n.Key]
		if !ok {
			continue
		}
		out = append(out, docID)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Len returns the number of live (non-orphaned) vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.keyToDoc)
}
