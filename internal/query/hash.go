package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/Aman-CERP/bmdb/internal/value"
)

// hashString returns the hex sha256 digest of s, the stable hash format
// every leaf and combinator builds its own hash from.
func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// hashValue renders v into a string that is unique per distinct value and
// identical for structurally equal values, regardless of kind-specific
// representation quirks (NaN, map key order).
func hashValue(v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return "null"
	case value.KindBool:
		b, _ := v.AsBool()
		return fmt.Sprintf("b:%t", b)
	case value.KindInt:
		i, _ := v.AsInt()
		return fmt.Sprintf("i:%d", i)
	case value.KindFloat:
		f, _ := v.AsFloat()
		return fmt.Sprintf("f:%g", f)
	case value.KindString:
		s, _ := v.AsString()
		return fmt.Sprintf("s:%s", s)
	case value.KindArray:
		arr, _ := v.AsArray()
		parts := make([]string, len(arr))
		for i, item := range arr {
			parts[i] = hashValue(item)
		}
		return "a:[" + strings.Join(parts, ",") + "]"
	case value.KindMap:
		m, _ := v.AsMap()
		keys := append([]string(nil), m.Keys()...)
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			mv, _ := m.Get(k)
			parts[i] = k + "=" + hashValue(mv)
		}
		return "m:{" + strings.Join(parts, ",") + "}"
	default:
		return "?"
	}
}

// combineUnordered hashes a set of child hashes order-independently, so
// `and(a, b)` and `and(b, a)` produce byte-equal hashes.
func combineUnordered(prefix string, children []string) string {
	sorted := append([]string(nil), children...)
	sort.Strings(sorted)
	return hashString(prefix + ":" + strings.Join(sorted, "|"))
}
