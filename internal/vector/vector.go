// Package vector provides embedding vector math, an exact inner-product
// index over unit-normalized vectors, and index persistence.
package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDimensionMismatch is returned when two vectors (or a vector and the
	// configured index dimension) disagree in length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrZeroVector is returned by the strict math helpers for inputs with
	// zero L2 norm. The index itself tolerates zero vectors (they score 0
	// against everything); rejecting degenerate input is the job of the
	// embedding boundary, not the index.
	ErrZeroVector = errors.New("vector has zero norm")
	// ErrIndexNotFound is returned by Load when no index file exists at the
	// given path. Callers should start with an empty index and rebuild from
	// the record store.
	ErrIndexNotFound = errors.New("vector index file not found")
	// ErrIndexCorrupt is returned by Load when the file exists but cannot be
	// decoded. Recovery is a full rebuild from the record store.
	ErrIndexCorrupt = errors.New("vector index file corrupt")
)

// Dot returns the inner product of a and b.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot, nil
}

// L2Norm returns the L2 norm of v.
func L2Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalized returns a unit-norm copy of v.
// Returns ErrZeroVector when v has zero norm.
func Normalized(v []float32) ([]float32, error) {
	norm := L2Norm(v)
	if norm == 0 {
		return nil, ErrZeroVector
	}
	out := make([]float32, len(v))
	inv := float32(1.0 / norm)
	for i, x := range v {
		out[i] = x * inv
	}
	return out, nil
}

// NormalizeInPlace scales v to unit L2 norm in place. A zero vector is left
// unchanged rather than producing NaN.
func NormalizeInPlace(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1].
// Fails with ErrDimensionMismatch on length disagreement and ErrZeroVector
// when either input has zero norm.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	na, err := Normalized(a)
	if err != nil {
		return 0, err
	}
	nb, err := Normalized(b)
	if err != nil {
		return 0, err
	}
	return Dot(na, nb)
}

// EncodeFloat32s packs v as little-endian float32 bytes. Shared by the
// index file format and the record store's embedding column.
func EncodeFloat32s(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(x))
	}
	return out
}

// DecodeFloat32s unpacks little-endian float32 bytes produced by
// EncodeFloat32s. The byte length must be a multiple of 4.
func DecodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out, nil
}
