package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/hupe1980/frnn/distance"
)

func TestUniformPoints(t *testing.T) {
	rng := NewRNG(4711)

	coords := UniformPoints[float32](rng, 100, 5)
	require.Len(t, coords, 300)
	for _, c := range coords {
		assert.GreaterOrEqual(t, c, float32(0))
		assert.Less(t, c, float32(5))
	}
}

func TestClusteredPoints(t *testing.T) {
	coords := ClusteredPoints[float64](NewRNG(1), 50, 3, 10, 0.1)
	assert.Len(t, coords, 150)
}

func TestBatchSplits(t *testing.T) {
	rng := NewRNG(7)
	for i := 0; i < 20; i++ {
		s := rng.BatchSplits(10, 4)
		require.Len(t, s, 5)
		assert.Equal(t, int64(0), s[0])
		assert.Equal(t, int64(10), s[4])
		assert.IsNonDecreasing(t, s)
	}
}

func TestDistance(t *testing.T) {
	a := r3.Vec{X: 0, Y: 0, Z: 0}
	b := r3.Vec{X: 1, Y: -2, Z: 2}

	assert.Equal(t, 9.0, Distance(a, b, distance.MetricL2))
	assert.Equal(t, 5.0, Distance(a, b, distance.MetricL1))
	assert.Equal(t, 2.0, Distance(a, b, distance.MetricLinf))
}

func TestBruteForce(t *testing.T) {
	points := []float64{0, 0, 0, 1, 0, 0, 5, 5, 5, 0, 0, 0}
	splits := []int64{0, 3, 4}

	got := BruteForce(points, points, splits, splits, 1, distance.MetricL2, false)
	require.Len(t, got, 4)
	assert.Equal(t, []Neighbor{{0, 0}, {1, 1}}, got[0])
	assert.Equal(t, []Neighbor{{2, 0}}, got[2])
	assert.Equal(t, []Neighbor{{3, 0}}, got[3], "batches are isolated")

	got = BruteForce(points, points, splits, splits, 1, distance.MetricL2, true)
	assert.Equal(t, []Neighbor{{1, 1}}, got[0])
	assert.Empty(t, got[3])
}

func TestVerify(t *testing.T) {
	expected := [][]Neighbor{{{Index: 0, Distance: 0}, {Index: 4, Distance: 0.9999}}, nil}

	assert.NoError(t, Verify(expected, []int64{0, 1, 1}, []int64{0}, 0.999))
	assert.NoError(t, Verify(expected, []int64{0, 2, 2}, []int32{4, 0}, 0.999))
	assert.ErrorContains(t, Verify(expected, []int64{0, 0, 0}, []int64{}, 0.999), "missing point 0")
	assert.ErrorContains(t, Verify(expected, []int64{0, 1, 2}, []int64{0, 3}, 0.999), "unexpected point 3")
	assert.ErrorContains(t, Verify(expected, []int64{0, 2, 2}, []int64{0, 0}, 0.999), "listed twice")
	assert.Error(t, Verify(expected, []int64{0, 1}, []int64{0}, 0.999))
}
