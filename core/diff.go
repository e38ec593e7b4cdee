package core

import (
	"math"
	"sort"
)

// DiffFields compares the internal and external snapshots of an entity and
// returns the sorted names of top-level fields whose values differ. A field
// absent from one side is treated as present with a nil value, so nil and
// absent never disagree. Nested maps and slices are compared structurally,
// and numbers compare by value regardless of how the JSON decoder typed them.
func DiffFields(internal, external map[string]any) []string {
	seen := make(map[string]struct{}, len(internal)+len(external))
	for key := range internal {
		seen[key] = struct{}{}
	}
	for key := range external {
		seen[key] = struct{}{}
	}

	fields := make([]string, 0, len(seen))
	for key := range seen {
		if !valuesEqual(internal[key], external[key]) {
			fields = append(fields, key)
		}
	}
	sort.Strings(fields)
	return fields
}

func valuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	if na, aok := asFloat(a); aok {
		if nb, bok := asFloat(b); bok {
			return na == nb
		}
		return false
	}

	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		return ok && va == vb
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	case map[string]any:
		vb, ok := b.(map[string]any)
		if !ok || len(va) != len(vb) {
			return false
		}
		for key := range va {
			wb, present := vb[key]
			if !present || !valuesEqual(va[key], wb) {
				return false
			}
		}
		return true
	case []any:
		vb, ok := b.([]any)
		if !ok || len(va) != len(vb) {
			return false
		}
		for i := range va {
			if !valuesEqual(va[i], vb[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return float64(v), true
	default:
		return 0, false
	}
}
