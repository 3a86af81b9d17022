package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Aman-CERP/bmdb/internal/value"
)

// Op enumerates the comparison operators a fieldOp leaf can carry.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpIn
	OpBetween
	OpMatches
	OpExists
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpIn:
		return "in"
	case OpBetween:
		return "between"
	case OpMatches:
		return "matches"
	case OpExists:
		return "exists"
	default:
		return "?"
	}
}

type fieldOp struct {
	path   Path
	op     Op
	val    value.Value
	val2   value.Value
	hasVal2 bool
}

// FieldOp builds a field_op leaf: path op value. Comparison ops (<, <=,
// >, >=) and between ignore cross-type comparisons (they evaluate to
// false rather than erroring), matching the field index's cross-type
// semantics.
func FieldOp(path Path, op Op, val value.Value) Predicate {
	return &fieldOp{path: path, op: op, val: val}
}

// Between builds a field_op leaf with op=between and an inclusive
// [lo, hi] range.
func Between(path Path, lo, hi value.Value) Predicate {
	return &fieldOp{path: path, op: OpBetween, val: lo, val2: hi, hasVal2: true}
}

func (f *fieldOp) Eval(doc value.Value) bool {
	v, ok := resolve(doc, f.path)
	if f.op == OpExists {
		return ok
	}
	if !ok {
		return false
	}
	switch f.op {
	case OpEq:
		return value.Equal(v, f.val)
	case OpNe:
		return !value.Equal(v, f.val)
	case OpLt:
		c, ok := compare(v, f.val)
		return ok && c < 0
	case OpLe:
		c, ok := compare(v, f.val)
		return ok && c <= 0
	case OpGt:
		c, ok := compare(v, f.val)
		return ok && c > 0
	case OpGe:
		c, ok := compare(v, f.val)
		return ok && c >= 0
	case OpIn:
		items, isArr := f.val.AsArray()
		if !isArr {
			return false
		}
		for _, item := range items {
			if value.Equal(v, item) {
				return true
			}
		}
		return false
	case OpBetween:
		lo, okLo := compare(v, f.val)
		hi, okHi := compare(v, f.val2)
		return okLo && okHi && lo >= 0 && hi <= 0
	case OpMatches:
		s, isStr := v.AsString()
		pat, isPat := f.val.AsString()
		if !isStr || !isPat {
			return false
		}
		re, err := regexp.Compile(pat)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	default:
		return false
	}
}

func (f *fieldOp) Hash() (string, bool) {
	h := fmt.Sprintf("field_op:%s:%s:%s", f.path.String(), f.op.String(), hashValue(f.val))
	if f.hasVal2 {
		h += ":" + hashValue(f.val2)
	}
	return hashString(h), true
}

// compare returns -1/0/1 for v < other / v == other / v > other, and
// false when the two values are not in the same comparison category
// (bool, numeric, string) — cross-type comparisons never match.
func compare(v, other value.Value) (int, bool) {
	if vn, ok := v.AsNumber(); ok {
		if on, ok := other.AsNumber(); ok {
			switch {
			case vn < on:
				return -1, true
			case vn > on:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if vs, ok := v.AsString(); ok {
		if os, ok := other.AsString(); ok {
			return strings.Compare(vs, os), true
		}
		return 0, false
	}
	if vb, ok := v.AsBool(); ok {
		if ob, ok := other.AsBool(); ok {
			switch {
			case vb == ob:
				return 0, true
			case !vb && ob:
				return -1, true
			default:
				return 1, true
			}
		}
		return 0, false
	}
	return 0, false
}

type quantifier struct {
	all  bool
	path Path
	cond Predicate
}

// Any builds an any(path, cond) leaf: true iff at least one element of
// the array at path satisfies cond. cond is evaluated with the element
// itself as the document, so FieldOp(nil, OpEq, v) expresses "element
// equals v" and FieldOp(nil, OpIn, list) expresses element membership.
func Any(path Path, cond Predicate) Predicate {
	return &quantifier{all: false, path: path, cond: cond}
}

// All builds an all(path, cond) leaf: true iff every element of the
// array at path satisfies cond (vacuously true for an empty array).
func All(path Path, cond Predicate) Predicate {
	return &quantifier{all: true, path: path, cond: cond}
}

func (q *quantifier) Eval(doc value.Value) bool {
	v, ok := resolve(doc, q.path)
	if !ok {
		return false
	}
	items, isArr := v.AsArray()
	if !isArr {
		return false
	}
	if q.all {
		for _, item := range items {
			if !q.cond.Eval(item) {
				return false
			}
		}
		return true
	}
	for _, item := range items {
		if q.cond.Eval(item) {
			return true
		}
	}
	return false
}

func (q *quantifier) Hash() (string, bool) {
	kind := "any"
	if q.all {
		kind = "all"
	}
	condHash, cacheable := q.cond.Hash()
	if !cacheable {
		return "", false
	}
	return hashString(fmt.Sprintf("%s:%s:%s", kind, q.path.String(), condHash)), true
}

type fragment struct {
	obj value.Value
}

// Fragment builds a fragment(obj) leaf: true iff the document contains
// every key/value pair in obj, recursively for nested map values (a
// fragment match, not full equality — extra keys in doc are fine).
func Fragment(obj value.Value) Predicate {
	return &fragment{obj: obj}
}

func (fr *fragment) Eval(doc value.Value) bool {
	return containsFragment(doc, fr.obj)
}

func containsFragment(doc, obj value.Value) bool {
	objMap, ok := obj.AsMap()
	if !ok {
		return value.Equal(doc, obj)
	}
	docMap, ok := doc.AsMap()
	if !ok {
		return false
	}
	for _, k := range objMap.Keys() {
		want, _ := objMap.Get(k)
		got, found := docMap.Get(k)
		if !found {
			return false
		}
		if want.Kind() == value.KindMap {
			if !containsFragment(got, want) {
				return false
			}
			continue
		}
		if !value.Equal(got, want) {
			return false
		}
	}
	return true
}

func (fr *fragment) Hash() (string, bool) {
	return hashString("fragment:" + hashValue(fr.obj)), true
}

type raw struct {
	fn func(value.Value) bool
}

// Raw wraps an arbitrary function as a predicate leaf. Raw predicates are
// never cacheable, and any panic during Eval is treated as false so a
// misbehaving raw predicate can never crash a search.
func Raw(fn func(value.Value) bool) Predicate {
	return &raw{fn: fn}
}

func (r *raw) Eval(doc value.Value) (result bool) {
	defer func() {
		if recover() != nil {
			result = false
		}
	}()
	return r.fn(doc)
}

func (r *raw) Hash() (string, bool) {
	return "", false
}

type matchesText struct {
	path  Path
	query string
}

// MatchesText builds a matches_text(path, query) leaf. Without a bound
// text index this evaluates as a case-insensitive substring containment
// check; the index manager (internal/index) intercepts this leaf kind
// during planning and routes it to a Bleve index when one is registered
// for the field, using this Eval only as the unindexed fallback.
func MatchesText(path Path, query string) Predicate {
	return &matchesText{path: path, query: query}
}

func (m *matchesText) Eval(doc value.Value) bool {
	v, ok := resolve(doc, m.path)
	if !ok {
		return false
	}
	s, ok := v.AsString()
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(m.query))
}

func (m *matchesText) Hash() (string, bool) {
	return hashString(fmt.Sprintf("matches_text:%s:%s", m.path.String(), m.query)), true
}

type nearest struct {
	path   Path
	vector []float64
	k      int
}

// Nearest builds a nearest(path, vector, k) leaf. It is never meant to
// gate boolean and/or/not evaluation directly — ranking by vector
// distance happens in the table's search phase against the leaf's own
// vector, which intercepts nearest leaves before generic predicate
// evaluation. Eval always returns true so a nearest
// leaf composed into a boolean tree (e.g. by mistake) never silently
// excludes every document.
func Nearest(path Path, vector []float64, k int) Predicate {
	return &nearest{path: path, vector: vector, k: k}
}

func (n *nearest) Eval(value.Value) bool { return true }

func (n *nearest) Hash() (string, bool) {
	parts := make([]string, len(n.vector))
	for i, f := range n.vector {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return hashString(fmt.Sprintf("nearest:%s:%d:[%s]", n.path.String(), n.k, strings.Join(parts, ","))), true
}

// AsNearest type-asserts p as a nearest leaf, for the table's search
// phase to extract ranking parameters.
func AsNearest(p Predicate) (path Path, vec []float64, k int, ok bool) {
	n, isNearest := p.(*nearest)
	if !isNearest {
		return nil, nil, 0, false
	}
	return n.path, n.vector, n.k, true
}
