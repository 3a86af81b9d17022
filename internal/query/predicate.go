// Package query implements the boolean predicate algebra documents are
// filtered by: a tree of leaves (field comparisons, quantifiers over
// arrays, sub-object matches, escape-hatch functions) combined with
// and/or/not, each carrying a structural hash so a table can cache
// results keyed by query shape rather than by query identity.
package query

import "github.com/Aman-CERP/bmdb/internal/value"

// Predicate is one node of a query tree.
type Predicate interface {
	// Eval reports whether doc satisfies this predicate.
	Eval(doc value.Value) bool
	// Hash returns a structural hash and whether this node (and its
	// entire subtree) is cacheable. raw leaves make their whole ancestor
	// chain uncacheable.
	Hash() (string, bool)
}

// resolve walks path against doc, returning the value found and whether
// every segment existed. An empty path resolves to doc itself.
func resolve(doc value.Value, path Path) (value.Value, bool) {
	cur := doc
	for _, seg := range path {
		m, ok := cur.AsMap()
		if !ok {
			return value.Value{}, false
		}
		v, ok := m.Get(seg)
		if !ok {
			return value.Value{}, false
		}
		cur = v
	}
	return cur, true
}
