package vector

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSimilaritySelf(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5, 0.01}
	got, err := CosineSimilarity(v, v)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-1.0) > 1e-6 {
		t.Errorf("cosine(v, v)=%f, want 1.0", got)
	}
}

func TestCosineSimilaritySymmetry(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-2, 0.5, 7}
	ab, err := CosineSimilarity(a, b)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := CosineSimilarity(b, a)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("cosine not symmetric: %f vs %f", ab, ba)
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	got, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got) > 1e-9 {
		t.Errorf("cosine of orthogonal vectors=%f, want 0", got)
	}
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	if _, err := CosineSimilarity([]float32{0, 0}, []float32{1, 0}); !errors.Is(err, ErrZeroVector) {
		t.Errorf("want ErrZeroVector, got %v", err)
	}
	if _, err := CosineSimilarity([]float32{1, 0}, []float32{0, 0}); !errors.Is(err, ErrZeroVector) {
		t.Errorf("want ErrZeroVector, got %v", err)
	}
}

func TestDotDimensionMismatch(t *testing.T) {
	if _, err := Dot([]float32{1, 2}, []float32{1, 2, 3}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("want ErrDimensionMismatch, got %v", err)
	}
	if _, err := CosineSimilarity([]float32{1}, []float32{1, 2}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("want ErrDimensionMismatch, got %v", err)
	}
}

func TestNormalized(t *testing.T) {
	v := []float32{3, 4}
	n, err := Normalized(v)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(L2Norm(n)-1.0) > 1e-6 {
		t.Errorf("norm after Normalized=%f", L2Norm(n))
	}
	// Input must not be mutated.
	if v[0] != 3 || v[1] != 4 {
		t.Errorf("Normalized mutated input: %v", v)
	}
	if _, err := Normalized([]float32{0, 0, 0}); !errors.Is(err, ErrZeroVector) {
		t.Errorf("want ErrZeroVector, got %v", err)
	}
}

func TestNormalizeInPlaceZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	NormalizeInPlace(v)
	for i, x := range v {
		if x != 0 || math.IsNaN(float64(x)) {
			t.Fatalf("zero vector changed at %d: %f", i, x)
		}
	}
}

func TestFloat32CodecRoundTrip(t *testing.T) {
	v := []float32{0, 1.5, -2.25, float32(math.Pi)}
	got, err := DecodeFloat32s(EncodeFloat32s(v))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(v) {
		t.Fatalf("length %d, want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("index %d: %f != %f", i, got[i], v[i])
		}
	}
}

func TestDecodeFloat32sBadLength(t *testing.T) {
	if _, err := DecodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for blob length not a multiple of 4")
	}
}
