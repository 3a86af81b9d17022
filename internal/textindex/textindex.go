// Package textindex implements component L's optional Bleve-backed
// full-text index over a single schema-declared string field, queried by
// a matches_text(path, query) leaf (spec.md §4.H, SPEC_FULL.md §4.I).
// Grounded on internal/store/bm25.go's BleveBM25Index: an in-memory Bleve
// index, one document per indexed row, keyed by the row's document id
// converted to a decimal string since Bleve document ids are strings.
package textindex

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
)

// textDocument mirrors the teacher's BleveDocument: a single analyzed
// content field per row.
type textDocument struct {
	Content string `json:"content"`
}

// Index is one field's Bleve inverted index, in-memory and scoped to a
// single table's lifetime (rebuilt fresh on truncate, same as the
// bitmap/HNSW field indexes).
type Index struct {
	bleve bleve.Index
}

// New returns an empty in-memory Bleve index, using Bleve's default
// mapping (the teacher's custom code tokenizer is for source-code
// chunks; document field text here has no such structure, so the
// default analyzer is the right fit).
func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("textindex: failed to create index: %w", err)
	}
	return &Index{bleve: idx}, nil
}

// Add indexes (or reindexes) docID's text. Bleve's Index call replaces
// any existing document under the same id, so no explicit delete-first
// step is needed, unlike vectorindex's HNSW graph.
func (idx *Index) Add(docID uint32, text string) error {
	id := strconv.FormatUint(uint64(docID), 10)
	if err := idx.bleve.Index(id, textDocument{Content: text}); err != nil {
		return fmt.Errorf("textindex: failed to index document %d: %w", docID, err)
	}
	return nil
}

// Remove drops docID from the index, if present.
func (idx *Index) Remove(docID uint32) error {
	id := strconv.FormatUint(uint64(docID), 10)
	if err := idx.bleve.Delete(id); err != nil {
		return fmt.Errorf("textindex: failed to delete document %d: %w", docID, err)
	}
	return nil
}

// Search returns up to limit document ids matching query, ranked by BM25
// relevance, highest score first. Uses a phrase query (terms must appear
// in order) rather than a bag-of-words match, so indexed results stay
// consistent with matches_text's unindexed substring-containment
// fallback (query.MatchesText's Eval) on the common case of a literal
// phrase, per the "indexed and unindexed paths agree" invariant.
func (idx *Index) Search(query string, limit int) ([]uint32, error) {
	if query == "" {
		return nil, nil
	}
	matchQuery := bleve.NewMatchPhraseQuery(query)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit

	result, err := idx.bleve.Search(req)
	if err != nil {
		return nil, fmt.Errorf("textindex: search failed: %w", err)
	}

	ids := make([]uint32, 0, len(result.Hits))
	for _, hit := range result.Hits {
		n, err := strconv.ParseUint(hit.ID, 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(n))
	}
	return ids, nil
}

// Len returns the number of documents currently indexed.
func (idx *Index) Len() int {
	n, _ := idx.bleve.DocCount()
	return int(n)
}

// Close releases the underlying Bleve index's resources.
func (idx *Index) Close() error {
	return idx.bleve.Close()
}
