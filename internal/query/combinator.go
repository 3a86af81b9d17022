package query

import "github.com/Aman-CERP/bmdb/internal/value"

type and struct{ children []Predicate }

type or struct{ children []Predicate }

type not struct{ child Predicate }

// And builds a conjunction; Eval short-circuits on the first false child.
func And(children ...Predicate) Predicate {
	return &and{children: children}
}

// Or builds a disjunction; Eval short-circuits on the first true child.
func Or(children ...Predicate) Predicate {
	return &or{children: children}
}

// Not builds a negation.
func Not(child Predicate) Predicate {
	return &not{child: child}
}

func (a *and) Eval(doc value.Value) bool {
	for _, c := range a.children {
		if !c.Eval(doc) {
			return false
		}
	}
	return true
}

func (a *and) Hash() (string, bool) {
	hashes := make([]string, len(a.children))
	for i, c := range a.children {
		h, cacheable := c.Hash()
		if !cacheable {
			return "", false
		}
		hashes[i] = h
	}
	return combineUnordered("and", hashes), true
}

func (o *or) Eval(doc value.Value) bool {
	for _, c := range o.children {
		if c.Eval(doc) {
			return true
		}
	}
	return false
}

func (o *or) Hash() (string, bool) {
	hashes := make([]string, len(o.children))
	for i, c := range o.children {
		h, cacheable := c.Hash()
		if !cacheable {
			return "", false
		}
		hashes[i] = h
	}
	return combineUnordered("or", hashes), true
}

func (n *not) Eval(doc value.Value) bool {
	return !n.child.Eval(doc)
}

func (n *not) Hash() (string, bool) {
	h, cacheable := n.child.Hash()
	if !cacheable {
		return "", false
	}
	return hashString("not:" + h), true
}

// Children exposes and/or's child predicates for the index manager's
// condition-extraction walk (internal/index), which needs to inspect the
// tree shape rather than just evaluate it.
func Children(p Predicate) ([]Predicate, bool) {
	switch t := p.(type) {
	case *and:
		return t.children, true
	case *or:
		return t.children, true
	default:
		return nil, false
	}
}

// IsAnd reports whether p is an and() combinator (as opposed to or()),
// given Children already confirmed p is one of the two.
func IsAnd(p Predicate) bool {
	_, ok := p.(*and)
	return ok
}

// AsFieldOp type-asserts p as a field_op leaf, exposing its components
// for the index manager's condition extraction.
func AsFieldOp(p Predicate) (path Path, op Op, val value.Value, val2 value.Value, hasVal2 bool, ok bool) {
	f, isFieldOp := p.(*fieldOp)
	if !isFieldOp {
		return nil, 0, value.Value{}, value.Value{}, false, false
	}
	return f.path, f.op, f.val, f.val2, f.hasVal2, true
}

// AsMatchesText type-asserts p as a matches_text leaf.
func AsMatchesText(p Predicate) (path Path, text string, ok bool) {
	m, isMatchesText := p.(*matchesText)
	if !isMatchesText {
		return nil, "", false
	}
	return m.path, m.query, true
}
