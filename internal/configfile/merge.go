package configfile

import (
	"encoding/json"
	"reflect"
)

// Reconcile merges data into defaults in place and returns defaults.
// Keys present in data win at the leaves; where both sides hold a mapping
// the merge recurses, so keys missing from data keep their default value.
// Values copied from data are cloned, never aliased.
func Reconcile(defaults, data map[string]any) map[string]any {
	if defaults == nil {
		defaults = make(map[string]any)
	}

	for key, dataVal := range data {
		defVal, exists := defaults[key]
		if !exists {
			defaults[key] = cloneValue(dataVal)
			continue
		}

		dataMap, dataIsMap := dataVal.(map[string]any)
		defMap, defIsMap := defVal.(map[string]any)
		if dataIsMap && defIsMap {
			defaults[key] = Reconcile(defMap, dataMap)
		} else {
			defaults[key] = cloneValue(dataVal)
		}
	}

	return defaults
}

// Clone returns a deep copy of m.
func Clone(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(val any) any {
	switch v := val.(type) {
	case map[string]any:
		return Clone(v)
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = cloneValue(v[i])
		}
		return out
	default:
		return val
	}
}

// Equal reports whether two decoded JSON values are deeply equal. Numbers
// compare by their literal text. Values outside the decoded JSON shapes,
// such as []string, fall back to reflect.DeepEqual.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch va := a.(type) {
	case map[string]any:
		vb, ok := b.(map[string]any)
		if !ok || len(va) != len(vb) {
			return false
		}
		for k, x := range va {
			y, ok := vb[k]
			if !ok || !Equal(x, y) {
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
			if !Equal(va[i], vb[i]) {
				return false
			}
		}
		return true
	case json.Number:
		vb, ok := b.(json.Number)
		return ok && va.String() == vb.String()
	case string, bool, float64:
		return a == b
	default:
		return reflect.DeepEqual(a, b)
	}
}
