package search

import "github.com/taskmesh/semdex/internal/models"

// matchesEntityTypes reports whether the record's type is in the allowed
// list. An empty list allows every type.
func matchesEntityTypes(allowed []string, rec *models.VectorRecord) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, t := range allowed {
		if rec.EntityType == t {
			return true
		}
	}
	return false
}

// matchesMetadata reports whether the record satisfies every filter entry.
// A record missing a filtered key does not match.
func matchesMetadata(filter map[string]interface{}, metadata map[string]interface{}) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok || !scalarEqual(want, got) {
			return false
		}
	}
	return true
}

// scalarEqual compares metadata scalars, treating numeric values as equal
// across int and float representations. JSON decoding yields float64 while
// records built in code may carry ints.
func scalarEqual(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
