package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/hupe1980/frnn/distance"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
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

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// NormFloat64 returns a standard normally distributed number.
func (r *RNG) NormFloat64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.NormFloat64()
}

// BatchSplits partitions n points into numBatches random, possibly empty,
// batches.
func (r *RNG) BatchSplits(n, numBatches int) []int64 {
	splits := make([]int64, numBatches+1)
	for b := 1; b < numBatches; b++ {
		splits[b] = int64(r.Intn(n + 1))
	}
	splits[numBatches] = int64(n)
	slices.Sort(splits)
	return splits
}

// UniformPoints returns n points uniformly distributed in [0, extent)^3.
func UniformPoints[T distance.Float](rng *RNG, n int, extent float64) []T {
	coords := make([]T, 3*n)
	for i := range coords {
		coords[i] = T(rng.Float64() * extent)
	}
	return coords
}

// ClusteredPoints returns n points drawn from numClusters Gaussian blobs
// with standard deviation sigma, centered uniformly in [0, extent)^3.
func ClusteredPoints[T distance.Float](rng *RNG, n, numClusters int, extent, sigma float64) []T {
	centers := make([]r3.Vec, numClusters)
	for i := range centers {
		centers[i] = r3.Vec{X: rng.Float64() * extent, Y: rng.Float64() * extent, Z: rng.Float64() * extent}
	}

	coords := make([]T, 0, 3*n)
	for i := 0; i < n; i++ {
		c := centers[rng.Intn(numClusters)]
		noise := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		p := r3.Add(c, r3.Scale(sigma, noise))
		coords = append(coords, T(p.X), T(p.Y), T(p.Z))
	}
	return coords
}

// Neighbor is a point found by BruteForce.
type Neighbor struct {
	Index    int64
	Distance float64
}

func vec[T distance.Float](coords []T, i int64) r3.Vec {
	return r3.Vec{X: float64(coords[3*i]), Y: float64(coords[3*i+1]), Z: float64(coords[3*i+2])}
}

// Distance returns the metric distance between a and b in float64, squared
// for MetricL2 like the distances radius search reports.
func Distance(a, b r3.Vec, m distance.Metric) float64 {
	d := r3.Sub(a, b)
	switch m {
	case distance.MetricL1:
		return math.Abs(d.X) + math.Abs(d.Y) + math.Abs(d.Z)
	case distance.MetricLinf:
		return max(math.Abs(d.X), math.Abs(d.Y), math.Abs(d.Z))
	default:
		return r3.Norm2(d)
	}
}

// BruteForce compares every query against every point of its batch and
// returns, per query, the points within radius ordered by index.
// Neighbor distances follow Distance.
// Nil splits mean a single batch.
func BruteForce[T distance.Float](points, queries []T, pointSplits, querySplits []int64, radius float64, m distance.Metric, ignoreQueryPoint bool) [][]Neighbor {
	if pointSplits == nil {
		pointSplits = []int64{0, int64(len(points) / 3)}
	}
	if querySplits == nil {
		querySplits = []int64{0, int64(len(queries) / 3)}
	}

	threshold := distance.Threshold(m, radius)
	out := make([][]Neighbor, len(queries)/3)
	for b := 0; b+1 < len(querySplits); b++ {
		for q := querySplits[b]; q < querySplits[b+1]; q++ {
			qv := vec(queries, q)
			for p := pointSplits[b]; p < pointSplits[b+1]; p++ {
				if ignoreQueryPoint && p == q {
					continue
				}
				if d := Distance(qv, vec(points, p), m); d <= threshold {
					out[q] = append(out[q], Neighbor{Index: p, Distance: d})
				}
			}
		}
	}
	return out
}

// Verify checks a compressed-row neighbor result against an oracle computed
// with a slightly larger radius. Every result must be in the oracle, every
// oracle neighbor with a distance of at most strict must be in the result,
// and no query may list a point twice. strict is in Distance units; convert
// a radius with distance.Threshold. The tolerance band absorbs rounding of
// reduced-precision distances.
func Verify[I ~int32 | ~int64](expected [][]Neighbor, rowSplits []int64, index []I, strict float64) error {
	if len(rowSplits) != len(expected)+1 {
		return fmt.Errorf("row splits have %d entries, want %d", len(rowSplits), len(expected)+1)
	}

	for q, want := range expected {
		got := make(map[int64]bool, rowSplits[q+1]-rowSplits[q])
		for _, p := range index[rowSplits[q]:rowSplits[q+1]] {
			if got[int64(p)] {
				return fmt.Errorf("query %d: point %d listed twice", q, p)
			}
			got[int64(p)] = true
		}

		allowed := make(map[int64]bool, len(want))
		for _, n := range want {
			allowed[n.Index] = true
			if n.Distance <= strict && !got[n.Index] {
				return fmt.Errorf("query %d: missing point %d at distance %v", q, n.Index, n.Distance)
			}
		}
		for p := range got {
			if !allowed[p] {
				return fmt.Errorf("query %d: unexpected point %d", q, p)
			}
		}
	}
	return nil
}
