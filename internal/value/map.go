package value

// Map is a string-keyed map that remembers insertion order, so MessagePack
// encoding of a document body is deterministic for a fixed construction
// sequence. Go's built-in map deliberately randomizes iteration order, so
// Map keeps a parallel key slice rather than relying on it.
type Map struct {
	keys []string
	vals map[string]Value
}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

// Set inserts or updates key. Updating an existing key preserves its
// original position; a new key is appended.
func (m *Map) Set(key string, v Value) *Map {
	if _, exists := m.vals[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
	return m
}

// Get returns the value at key and whether it was present.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Delete removes key, if present.
func (m *Map) Delete(key string) {
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The returned slice must not be
// mutated by the caller.
func (m *Map) Keys() []string { return m.keys }

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Clone returns a deep copy preserving key order.
func (m *Map) Clone() *Map {
	cp := &Map{
		keys: make([]string, len(m.keys)),
		vals: make(map[string]Value, len(m.vals)),
	}
	copy(cp.keys, m.keys)
	for k, v := range m.vals {
		cp.vals[k] = Clone(v)
	}
	return cp
}
