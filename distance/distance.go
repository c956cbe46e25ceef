// Package distance provides the distance metrics used for vector comparison.
// All metrics return a distance, not a similarity: lower means closer.
package distance

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// CosineDistance calculates 1 - dot(a, b).
// Both vectors must be L2-normalized; the result is then the cosine distance.
func CosineDistance(a, b []float32) float32 {
	return 1 - Dot(a, b)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / float32(math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
//
// The metric is part of an index descriptor and is persisted in snapshot
// headers; the numeric values must remain stable.
type Metric uint8

const (
	MetricL2 Metric = iota
	MetricCosine
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricCosine:
		return "Cosine"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(m))
	}
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	return m == MetricL2 || m == MetricCosine
}

// ParseMetric parses a metric name as found in configuration files.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l2", "euclidean", "squaredl2":
		return MetricL2, nil
	case "cosine":
		return MetricCosine, nil
	default:
		return 0, fmt.Errorf("unsupported metric: %q", s)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric.
// For MetricCosine the returned function expects L2-normalized inputs.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return SquaredL2, nil
	case MetricCosine:
		return CosineDistance, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
