// Package table implements the document CRUD surface of spec.md §4.J:
// insert/search/update/remove/truncate over a pluggable Storage, with
// doc-id allocation, a query-hash LRU cache, and index-manager upkeep on
// every mutation. Grounded on internal/store's MetadataStore interface
// shape (collection-of-documents-by-id over a swappable backend) and
// internal/embed/cached.go's LRU-wrapping pattern.
package table

import (
	"context"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/bmdb/internal/dberrors"
	"github.com/Aman-CERP/bmdb/internal/index"
	"github.com/Aman-CERP/bmdb/internal/query"
	"github.com/Aman-CERP/bmdb/internal/value"
)

// DefaultQueryCacheSize is used when NewTable is given a non-positive
// cache size.
const DefaultQueryCacheSize = 1000

// Storage is the document surface a Table persists through. filestore.Store,
// memstore.Store, and wal.Store all satisfy it.
type Storage interface {
	ReadDocument(table string, docID uint32) (value.Value, bool, error)
	WriteDocument(table string, docID uint32, body value.Value) error
	DeleteDocument(table string, docID uint32) error
	Read(table string) (map[uint32]value.Value, error)
}

// bulkReader and bulkWriter are optional fast paths a Storage may satisfy
// (filestore.Store and memstore.Store both do; wal.Store does not) to
// avoid a read/write per document on bulk operations.
type bulkReader interface {
	ReadDocumentsBulk(table string, ids []uint32) (map[uint32]value.Value, error)
}

type bulkWriter interface {
	UpdateDocumentsBulk(table string, bodies map[uint32]value.Value) error
}

// Mutator transforms a cloned document body into its replacement.
type Mutator func(value.Value) value.Value

// Table is one named collection of documents over storage, per spec.md
// §4.J. Per §5's scheduling model, all operations on one Table serialize
// under a single mutex — no internal RWMutex split, since the spec
// defines the whole instance as single-threaded cooperative.
type Table struct {
	name    string
	storage Storage
	index   *index.Manager // nil disables index upkeep/planning (full scan only)

	mu     sync.Mutex
	nextID uint32
	count  int
	cache  *lru.Cache[string, []value.Value]
}

// NewTable opens name over storage, scanning its current contents once to
// seed doc-id allocation, the live document count, and (if idx is
// non-nil) the index manager's field indexes and total-doc statistic.
func NewTable(name string, storage Storage, idx *index.Manager, queryCacheSize int) (*Table, error) {
	if queryCacheSize <= 0 {
		queryCacheSize = DefaultQueryCacheSize
	}
	cache, err := lru.New[string, []value.Value](queryCacheSize)
	if err != nil {
		return nil, err
	}

	t := &Table{
		name:    name,
		storage: storage,
		index:   idx,
		nextID:  1,
		cache:   cache,
	}

	existing, err := storage.Read(name)
	if err != nil {
		return nil, err
	}
	t.count = len(existing)
	for id, body := range existing {
		if id >= t.nextID {
			t.nextID = id + 1
		}
		if idx != nil {
			idx.Insert(id, body)
		}
	}
	if idx != nil {
		idx.SetTotalDocs(t.count)
	}
	return t, nil
}

// Name returns the table's name.
func (t *Table) Name() string { return t.name }

// Len returns the table's current live document count.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *Table) invalidateCacheLocked() {
	t.cache.Purge()
}

// Insert allocates a doc id (or uses one embedded in doc's body) and
// writes doc, returning the id. A pre-set id already present in the table
// fails with *dberrors.DuplicateDocId.
func (t *Table) Insert(ctx context.Context, doc value.Value) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLocked(doc)
}

func (t *Table) insertLocked(doc value.Value) (uint32, error) {
	id := t.nextID
	if requested, ok := requestedDocID(doc); ok {
		if _, exists, err := t.storage.ReadDocument(t.name, requested); err != nil {
			return 0, err
		} else if exists {
			return 0, &dberrors.DuplicateDocId{DocID: int64(requested)}
		}
		id = requested
	}

	body := stripDocFields(doc)
	if err := t.storage.WriteDocument(t.name, id, body); err != nil {
		return 0, err
	}
	if id >= t.nextID {
		t.nextID = id + 1
	}
	t.count++
	if t.index != nil {
		t.index.Insert(id, body)
		t.index.SetTotalDocs(t.count)
	}
	t.invalidateCacheLocked()
	return id, nil
}

// InsertMultiple allocates ids for every doc in one pass (never re-scanning
// storage per record) and writes them in a single bulk call when storage
// supports it.
func (t *Table) InsertMultiple(ctx context.Context, docs []value.Value) ([]uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]uint32, len(docs))
	bodies := make(map[uint32]value.Value, len(docs))
	for i, doc := range docs {
		id := t.nextID
		if requested, ok := requestedDocID(doc); ok {
			if _, dup := bodies[requested]; dup {
				return nil, &dberrors.DuplicateDocId{DocID: int64(requested)}
			}
			if _, exists, err := t.storage.ReadDocument(t.name, requested); err != nil {
				return nil, err
			} else if exists {
				return nil, &dberrors.DuplicateDocId{DocID: int64(requested)}
			}
			id = requested
		}
		if id >= t.nextID {
			t.nextID = id + 1
		}
		ids[i] = id
		bodies[id] = stripDocFields(doc)
	}

	if bw, ok := t.storage.(bulkWriter); ok {
		if err := bw.UpdateDocumentsBulk(t.name, bodies); err != nil {
			return nil, err
		}
	} else {
		for id, body := range bodies {
			if err := t.storage.WriteDocument(t.name, id, body); err != nil {
				return nil, err
			}
		}
	}

	t.count += len(bodies)
	if t.index != nil {
		for id, body := range bodies {
			t.index.Insert(id, body)
		}
		t.index.SetTotalDocs(t.count)
	}
	t.invalidateCacheLocked()
	return ids, nil
}

// Get returns the document at docID with its id synthesized, or
// (_, false, nil) if absent.
func (t *Table) Get(ctx context.Context, docID uint32) (value.Value, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	body, ok, err := t.storage.ReadDocument(t.name, docID)
	if err != nil || !ok {
		return value.Value{}, ok, err
	}
	return withDocID(body, docID), true, nil
}

// candidateDocsLocked returns the set of (id, stored body) pairs p should
// be evaluated against: every live document if p is nil or the index
// offers no narrowing, otherwise the planner's candidate bitmap resolved
// back to bodies. Callers still apply p.Eval themselves — this is
// best-effort narrowing, never a substitute for the exact filter.
func (t *Table) candidateDocsLocked(ctx context.Context, p query.Predicate) (map[uint32]value.Value, error) {
	if p == nil || t.index == nil {
		return t.storage.Read(t.name)
	}

	plan := t.index.Plan(p)
	bm, err := t.index.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	if bm == nil {
		return t.storage.Read(t.name)
	}

	ids := bm.ToSlice()
	if br, ok := t.storage.(bulkReader); ok {
		return br.ReadDocumentsBulk(t.name, ids)
	}
	out := make(map[uint32]value.Value, len(ids))
	for _, id := range ids {
		body, ok, err := t.storage.ReadDocument(t.name, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = body
		}
	}
	return out, nil
}

// Search returns every document matching p (nil matches every document),
// in doc-id order, each with its id synthesized. Results are served from
// the query cache when p hashes to a cacheable key.
func (t *Table) Search(ctx context.Context, p query.Predicate) ([]value.Value, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.searchLocked(ctx, p)
}

func (t *Table) searchLocked(ctx context.Context, p query.Predicate) ([]value.Value, error) {
	if t.index != nil {
		if field, vector, k, rest, ok := extractNearest(p); ok {
			return t.nearestSearchLocked(ctx, field, vector, k, rest)
		}
	}

	var hash string
	cacheable := false
	if p != nil {
		hash, cacheable = p.Hash()
	}
	if cacheable {
		if cached, ok := t.cache.Get(hash); ok {
			return cloneDocs(cached), nil
		}
	}

	candidates, err := t.candidateDocsLocked(ctx, p)
	if err != nil {
		return nil, err
	}

	ids := make([]uint32, 0, len(candidates))
	for id, body := range candidates {
		if p != nil && !p.Eval(body) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	results := make([]value.Value, len(ids))
	for i, id := range ids {
		results[i] = withDocID(candidates[id], id)
	}

	if cacheable {
		t.cache.Add(hash, cloneDocs(results))
	}
	return results, nil
}

// Count returns the number of documents matching p (nil counts every
// document).
func (t *Table) Count(ctx context.Context, p query.Predicate) (int, error) {
	if p == nil {
		return t.Len(), nil
	}
	results, err := t.Search(ctx, p)
	if err != nil {
		return 0, err
	}
	return len(results), nil
}

// All returns every live document, in doc-id order, with ids synthesized.
func (t *Table) All(ctx context.Context) ([]value.Value, error) {
	return t.Search(ctx, nil)
}

// Explain returns the plan Search would use to evaluate p, without running
// it. A table opened with a nil index manager always explains as a full
// scan.
func (t *Table) Explain(p query.Predicate) index.Plan {
	if t.index == nil {
		return index.Plan{Strategy: index.StrategyFullScan, FallbackToScan: true}
	}
	return t.index.Plan(p)
}

// Iterate calls fn for every live document in doc-id order until fn
// returns false or every document has been visited.
func (t *Table) Iterate(ctx context.Context, fn func(docID uint32, doc value.Value) bool) error {
	docs, err := t.All(ctx)
	if err != nil {
		return err
	}
	for _, d := range docs {
		id, _ := requestedDocID(d)
		if !fn(id, d) {
			return nil
		}
	}
	return nil
}

func cloneDocs(docs []value.Value) []value.Value {
	out := make([]value.Value, len(docs))
	for i, d := range docs {
		out[i] = value.Clone(d)
	}
	return out
}

// resolveSelectorLocked returns the (id, stored body) candidates sel
// names, and whether an additional Eval-based filter is still required
// (true whenever sel.Query was used, since index narrowing is
// best-effort).
func (t *Table) resolveSelectorLocked(ctx context.Context, sel Selector) (map[uint32]value.Value, bool, error) {
	if sel.IDs != nil {
		out := make(map[uint32]value.Value, len(sel.IDs))
		for _, id := range sel.IDs {
			body, ok, err := t.storage.ReadDocument(t.name, id)
			if err != nil {
				return nil, false, err
			}
			if ok {
				out[id] = body
			}
		}
		return out, false, nil
	}
	if sel.Query != nil {
		docs, err := t.candidateDocsLocked(ctx, sel.Query)
		return docs, true, err
	}
	docs, err := t.storage.Read(t.name)
	return docs, false, err
}

// Update applies mutator to every document selected by sel, writing the
// mutated (docId-stripped) bodies back and updating indexes, and returns
// the touched doc ids in ascending order.
func (t *Table) Update(ctx context.Context, mutator Mutator, sel Selector) ([]uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	candidates, needsFilter, err := t.resolveSelectorLocked(ctx, sel)
	if err != nil {
		return nil, err
	}

	newBodies := make(map[uint32]value.Value)
	oldBodies := make(map[uint32]value.Value)
	for id, body := range candidates {
		if needsFilter && !sel.Query.Eval(body) {
			continue
		}
		updated := stripDocFields(mutator(value.Clone(body)))
		newBodies[id] = updated
		oldBodies[id] = body
	}
	if len(newBodies) == 0 {
		return nil, nil
	}

	if err := t.writeBackLocked(newBodies); err != nil {
		return nil, err
	}
	if t.index != nil {
		for id, nb := range newBodies {
			t.index.Update(id, oldBodies[id], nb)
		}
	}
	t.invalidateCacheLocked()

	touched := make([]uint32, 0, len(newBodies))
	for id := range newBodies {
		touched = append(touched, id)
	}
	sort.Slice(touched, func(i, j int) bool { return touched[i] < touched[j] })
	return touched, nil
}

// UpdateFields merges fields into every document selected by sel.
func (t *Table) UpdateFields(ctx context.Context, fields value.Value, sel Selector) ([]uint32, error) {
	return t.Update(ctx, func(body value.Value) value.Value { return mergeFields(body, fields) }, sel)
}

// UpdateMultiple applies each [fields, selector] pair in order, returning
// the total number of documents touched across all of them.
func (t *Table) UpdateMultiple(ctx context.Context, ops []FieldUpdate) (int, error) {
	total := 0
	for _, op := range ops {
		touched, err := t.UpdateFields(ctx, op.Fields, op.Sel)
		if err != nil {
			return total, err
		}
		total += len(touched)
	}
	return total, nil
}

func (t *Table) writeBackLocked(bodies map[uint32]value.Value) error {
	if bw, ok := t.storage.(bulkWriter); ok {
		return bw.UpdateDocumentsBulk(t.name, bodies)
	}
	for id, body := range bodies {
		if err := t.storage.WriteDocument(t.name, id, body); err != nil {
			return err
		}
	}
	return nil
}

// Upsert merges doc's fields into every document sel.Query matches; if
// none match, it inserts doc as a new document. Returns the id of the
// inserted document, or of the lowest-numbered updated one.
func (t *Table) Upsert(ctx context.Context, doc value.Value, sel Selector) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	candidates, needsFilter, err := t.resolveSelectorLocked(ctx, sel)
	if err != nil {
		return 0, err
	}

	fields := stripDocFields(doc)
	newBodies := make(map[uint32]value.Value)
	oldBodies := make(map[uint32]value.Value)
	for id, body := range candidates {
		if needsFilter && !sel.Query.Eval(body) {
			continue
		}
		newBodies[id] = mergeFields(body, fields)
		oldBodies[id] = body
	}

	if len(newBodies) == 0 {
		return t.insertLocked(doc)
	}

	if err := t.writeBackLocked(newBodies); err != nil {
		return 0, err
	}
	if t.index != nil {
		for id, nb := range newBodies {
			t.index.Update(id, oldBodies[id], nb)
		}
	}
	t.invalidateCacheLocked()

	first := true
	var lowest uint32
	for id := range newBodies {
		if first || id < lowest {
			lowest, first = id, false
		}
	}
	return lowest, nil
}

// Remove deletes every document selected by sel and returns the removed
// ids in ascending order.
func (t *Table) Remove(ctx context.Context, sel Selector) ([]uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	candidates, needsFilter, err := t.resolveSelectorLocked(ctx, sel)
	if err != nil {
		return nil, err
	}

	var removed []uint32
	for id, body := range candidates {
		if needsFilter && !sel.Query.Eval(body) {
			continue
		}
		if err := t.storage.DeleteDocument(t.name, id); err != nil {
			return nil, err
		}
		if t.index != nil {
			t.index.Remove(id, body)
		}
		removed = append(removed, id)
	}
	if len(removed) == 0 {
		return nil, nil
	}

	t.count -= len(removed)
	if t.index != nil {
		t.index.SetTotalDocs(t.count)
	}
	t.invalidateCacheLocked()
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return removed, nil
}

// Truncate deletes every document in the table and resets doc-id
// allocation and index statistics.
func (t *Table) Truncate(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	all, err := t.storage.Read(t.name)
	if err != nil {
		return err
	}
	for id := range all {
		if err := t.storage.DeleteDocument(t.name, id); err != nil {
			return err
		}
	}
	t.count = 0
	t.nextID = 1
	if t.index != nil {
		t.index.Reset()
	}
	t.invalidateCacheLocked()
	return nil
}
