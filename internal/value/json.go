package value

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FromJSON decodes a JSON document into a Value, preserving key order by
// decoding objects with json.Decoder's token stream rather than into a
// map[string]any (which Go would iterate in random order).
//
// This is the one bare encoding/json boundary bmdb exposes: a command-line
// caller hands the database a JSON document, and every other layer only
// ever sees Value from there on.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return Value{}, fmt.Errorf("value: decode json: %w", err)
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeJSONToken(dec, tok)
}

func decodeJSONToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("decode number %q: %w", t, err)
		}
		return Float(f), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			var items []Value
			for dec.More() {
				item, err := decodeJSONValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return ArrayFrom(items), nil
		case '{':
			m := NewMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("expected object key, got %v", keyTok)
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return Value{}, err
				}
				m.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return FromMap(m), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected json token %v", tok)
}

// ToJSON renders v as JSON. Maps keep their insertion order, unlike
// encoding/json's own map[string]any encoding which would sort the keys.
func ToJSON(v Value) ([]byte, error) {
	return json.Marshal(toNative(v))
}

func toNative(v Value) any {
	switch v.Kind() {
	case KindNull:
		return nil
	case KindBool:
		b, _ := v.AsBool()
		return b
	case KindInt:
		i, _ := v.AsInt()
		return i
	case KindFloat:
		f, _ := v.AsFloat()
		return f
	case KindString:
		s, _ := v.AsString()
		return s
	case KindArray:
		arr, _ := v.AsArray()
		out := make([]any, len(arr))
		for i, item := range arr {
			out[i] = toNative(item)
		}
		return out
	case KindMap:
		m, _ := v.AsMap()
		out := orderedObject{m: m}
		return out
	default:
		return nil
	}
}

// orderedObject implements json.Marshaler to keep Map's insertion order in
// the rendered JSON instead of encoding/json's default key sort.
type orderedObject struct {
	m *Map
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	if o.m == nil || o.m.Len() == 0 {
		return []byte("{}"), nil
	}
	buf := []byte{'{'}
	for i, k := range o.m.Keys() {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		val, _ := o.m.Get(k)
		valJSON, err := json.Marshal(toNative(val))
		if err != nil {
			return nil, err
		}
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}
