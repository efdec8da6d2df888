// Package distance provides vector distance calculations and metric selection.
//
// All functions operate on float32 slices and assume the caller keeps
// dimensionality consistent; length checks happen at the index boundary,
// not here.
package distance

import (
	"fmt"
	"math"
	"slices"
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

// Magnitude calculates the L2 norm of v.
func Magnitude(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// CosineDistance calculates 1 - cosine similarity between two vectors.
// A zero-norm input yields the maximum distance of 1.
func CosineDistance(a, b []float32) float32 {
	ma := Magnitude(a)
	mb := Magnitude(b)
	if ma == 0 || mb == 0 {
		return 1
	}
	return 1 - Dot(a, b)/(ma*mb)
}

// NegativeDot returns the negated dot product, so that smaller means closer.
func NegativeDot(a, b []float32) float32 {
	return -Dot(a, b)
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
type Metric int

const (
	MetricL2 Metric = iota
	MetricCosine
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricCosine:
		return "Cosine"
	case MetricDot:
		return "Dot"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMetric returns the Metric named by s.
// Unknown names are a construction-time error, not a runtime lookup failure.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "l2", "L2":
		return MetricL2, nil
	case "cosine", "Cosine":
		return MetricCosine, nil
	case "dot", "Dot":
		return MetricDot, nil
	default:
		return 0, fmt.Errorf("unknown metric name: %q", s)
	}
}

// Func is a function type for distance calculation.
// Smaller results mean closer vectors for every Func returned by Provider.
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return SquaredL2, nil
	case MetricCosine:
		return CosineDistance, nil
	case MetricDot:
		return NegativeDot, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
