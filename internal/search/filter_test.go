package search

import (
	"testing"

	"github.com/taskmesh/semdex/internal/models"
)

func TestMatchesEntityTypes(t *testing.T) {
	rec := &models.VectorRecord{EntityType: "task"}
	if !matchesEntityTypes(nil, rec) {
		t.Error("empty filter should match every type")
	}
	if !matchesEntityTypes([]string{"comment", "task"}, rec) {
		t.Error("listed type should match")
	}
	if matchesEntityTypes([]string{"employee"}, rec) {
		t.Error("unlisted type should not match")
	}
}

func TestMatchesMetadata(t *testing.T) {
	metadata := map[string]interface{}{
		"status":  "active",
		"project": float64(7),
	}

	if !matchesMetadata(nil, metadata) {
		t.Error("empty filter should match")
	}
	if !matchesMetadata(map[string]interface{}{"status": "active"}, metadata) {
		t.Error("exact string match failed")
	}
	if matchesMetadata(map[string]interface{}{"status": "done"}, metadata) {
		t.Error("mismatched value should not match")
	}
	if matchesMetadata(map[string]interface{}{"owner": "kim"}, metadata) {
		t.Error("missing key should not match")
	}
	// All filter entries must hold.
	both := map[string]interface{}{"status": "active", "project": float64(8)}
	if matchesMetadata(both, metadata) {
		t.Error("partial conjunction should not match")
	}
}

func TestScalarEqualNumericCrossType(t *testing.T) {
	// JSON decoding produces float64; records built in code may carry ints.
	if !scalarEqual(7, float64(7)) {
		t.Error("int vs float64 equality failed")
	}
	if !scalarEqual(int64(3), float64(3)) {
		t.Error("int64 vs float64 equality failed")
	}
	if scalarEqual(7, float64(7.5)) {
		t.Error("unequal numbers compared equal")
	}
	if scalarEqual("7", float64(7)) {
		t.Error("string vs number compared equal")
	}
}
