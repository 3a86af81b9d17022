// Package value implements the schemaless document model bmdb stores:
// Value is a tagged variant over null, bool, number, string, array, and
// ordered string-keyed map. It replaces dynamic
// property-access-by-interception with explicit accessor methods — there
// is never a bare interface{} boundary a caller must type-assert through.
package value

import "math"

// Kind discriminates the variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is an immutable-by-convention tagged union. Zero value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	m    *Map
}

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating-point Value. NaN and +/-Inf are legal and
// round-trip through MessagePack float64 encoding.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns an array Value wrapping items (copied defensively).
func Array(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, arr: cp}
}

// ArrayFrom wraps items without copying; callers must not mutate items
// afterward.
func ArrayFrom(items []Value) Value {
	return Value{kind: KindArray, arr: items}
}

// FromMap returns a map Value wrapping m.
func FromMap(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

// Kind returns the Value's variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload and whether v is a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer payload and whether v is an int.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float payload and whether v is a float.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsNumber returns v's numeric value as a float64 for either int or float
// kinds, and whether v was numeric at all.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// AsString returns the string payload and whether v is a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsArray returns the array payload and whether v is an array.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

// AsMap returns the map payload and whether v is a map.
func (v Value) AsMap() (*Map, bool) { return v.m, v.kind == KindMap }

// IsPrimitive reports whether v is a scalar usable as an index key (null
// and composites are not indexable).
func (v Value) IsPrimitive() bool {
	switch v.kind {
	case KindBool, KindInt, KindFloat, KindString:
		return true
	default:
		return false
	}
}

// Equal reports deep structural equality, with NaN == NaN (so Values round
// tripping through NaN compare equal in tests).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		// int/float cross-kind numeric equality is NOT implied: equality is
		// same-kind identity, not numeric coercion.
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		if math.IsNaN(a.f) && math.IsNaN(b.f) {
			return true
		}
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return mapsEqual(a.m, b.m)
	default:
		return false
	}
}

func mapsEqual(a, b *Map) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, k := range a.Keys() {
		av, _ := a.Get(k)
		bv, ok := b.Get(k)
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of v, so a caller mutating the returned Value
// (or its nested Map/array) can never corrupt storage — the basis of
// read isolation for cloned documents.
func Clone(v Value) Value {
	switch v.kind {
	case KindArray:
		cp := make([]Value, len(v.arr))
		for i, item := range v.arr {
			cp[i] = Clone(item)
		}
		return Value{kind: KindArray, arr: cp}
	case KindMap:
		return Value{kind: KindMap, m: v.m.Clone()}
	default:
		return v
	}
}
