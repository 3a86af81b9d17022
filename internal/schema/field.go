// Package schema layers constraint validation, uniqueness, relationships,
// and vector-field declarations on top of internal/table's CRUD surface,
// per spec.md §3/§4.K. Grounded on internal/store's MetadataStore callers
// (SaveProject/SaveFiles etc. all validate shape before delegating to
// storage) and internal/table's synchronous, single-mutex style.
package schema

import (
	"fmt"

	"github.com/Aman-CERP/bmdb/internal/query"
	"github.com/Aman-CERP/bmdb/internal/value"
)

// FieldType constrains the shape a field's value must take.
type FieldType int

const (
	TypeAny FieldType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeNumber // int or float
	TypeString
	TypeArray
	TypeMap
)

func (t FieldType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	case TypeMap:
		return "map"
	default:
		return "any"
	}
}

// FieldSpec declares a validation rule for one dotted field path.
type FieldSpec struct {
	Path     string
	Type     FieldType
	Required bool
}

func checkType(v value.Value, t FieldType) bool {
	switch t {
	case TypeAny:
		return true
	case TypeBool:
		_, ok := v.AsBool()
		return ok
	case TypeInt:
		_, ok := v.AsInt()
		return ok
	case TypeFloat:
		_, ok := v.AsFloat()
		return ok
	case TypeNumber:
		_, ok := v.AsNumber()
		return ok
	case TypeString:
		_, ok := v.AsString()
		return ok
	case TypeArray:
		_, ok := v.AsArray()
		return ok
	case TypeMap:
		_, ok := v.AsMap()
		return ok
	default:
		return false
	}
}

// resolvePath walks path against doc. Mirrors internal/query's unexported
// resolve, duplicated here since Schema needs it outside that package.
func resolvePath(doc value.Value, path query.Path) (value.Value, bool) {
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

// docIDOf reads the docId field a table.Search/Get result carries.
func docIDOf(doc value.Value) (uint32, bool) {
	mp, ok := doc.AsMap()
	if !ok {
		return 0, false
	}
	v, ok := mp.Get("docId")
	if !ok {
		return 0, false
	}
	n, ok := v.AsInt()
	return uint32(n), ok
}

// valueToAny converts a primitive Value to a plain Go value, for embedding
// in error payloads. Non-primitives fall back to a placeholder string.
func valueToAny(v value.Value) any {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindBool:
		b, _ := v.AsBool()
		return b
	case value.KindInt:
		i, _ := v.AsInt()
		return i
	case value.KindFloat:
		f, _ := v.AsFloat()
		return f
	case value.KindString:
		s, _ := v.AsString()
		return s
	default:
		return fmt.Sprintf("<%s>", v.Kind())
	}
}

func valuesToAny(vs []value.Value) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = valueToAny(v)
	}
	return out
}
