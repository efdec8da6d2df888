// Package testutil provides deterministic data generators for tests and
// benchmarks.
package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/simtable/distance"
)

// RNG wraps a seeded random source. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float32 in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// Bytes returns n pseudo-random bytes.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]byte, n)
	r.rand.Read(out) //nolint:errcheck // never fails
	return out
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}
		vectors[i] = vec
	}

	return vectors
}

// UnitVectors generates L2-normalized random vectors (on the hypersphere).
// Uses Gaussian components so directions are uniformly distributed.
func (r *RNG) UnitVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = float32(r.rand.NormFloat64())
		}
		distance.NormalizeL2InPlace(vec)
		vectors[i] = vec
	}

	return vectors
}

// ClusteredVectors generates labeled vectors clustered around one centroid
// per class: classes * perClass vectors, each the class centroid plus
// Gaussian noise scaled by spread. Labels are the class IDs 0..classes-1.
//
// Lower spread means tighter clusters and easier retrieval.
func (r *RNG) ClusteredVectors(classes, perClass, dim int, spread float32) ([][]float32, []int64) {
	centroids := r.UnitVectors(classes, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	num := classes * perClass
	data := make([]float32, num*dim)
	vectors := make([][]float32, num)
	labels := make([]int64, num)

	for i := range num {
		class := i % classes
		centroid := centroids[class]
		vec := data[i*dim : (i+1)*dim]

		for j := range dim {
			vec[j] = centroid[j] + float32(r.rand.NormFloat64())*spread
		}
		vectors[i] = vec
		labels[i] = int64(class)
	}

	return vectors, labels
}
