package frnn

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/frnn/distance"
	"github.com/hupe1980/frnn/resource"
	"github.com/hupe1980/frnn/testutil"
)

var scenarioPoints = []float32{0, 0, 0, 0, 0, 2, 5, 5, 5}

func buildTable[T Float](t *testing.T, points []T, radius float64, splits []int64, optFns ...Option) *HashTable {
	t.Helper()
	table, err := BuildSpatialHashTable(context.Background(), points, radius, splits, DefaultSizeFactor, DefaultMaxTableSize, optFns...)
	require.NoError(t, err)
	return table
}

func TestFixedRadiusSearch_Scenarios(t *testing.T) {
	ctx := context.Background()
	splits := []int64{0, 3}
	table := buildTable(t, scenarioPoints, 2.5, splits)
	queries := []float32{0, 0, 0}

	t.Run("IncludeQueryPoint", func(t *testing.T) {
		res, err := FixedRadiusSearch[float32, int64](ctx, scenarioPoints, queries, 2.5, splits, []int64{0, 1},
			table, MetricL2, false, true)
		require.NoError(t, err)

		assert.Equal(t, []int64{0, 2}, res.NeighborsRowSplits())
		assert.Equal(t, []int64{0, 1}, res.NeighborsIndex())
		assert.Equal(t, []float32{0, 4}, res.NeighborsDistance())
		assert.Equal(t, 1, res.NumQueries())
		assert.Equal(t, 2, res.Len())
		assert.Equal(t, []float32{0, 4}, res.Distances(0))
	})

	t.Run("IgnoreQueryPoint", func(t *testing.T) {
		res, err := FixedRadiusSearch[float32, int32](ctx, scenarioPoints, queries, 2.5, splits, []int64{0, 1},
			table, MetricL2, true, false)
		require.NoError(t, err)

		assert.Equal(t, []int32{1}, res.NeighborsIndex())
		assert.Equal(t, []int64{0, 1}, res.NeighborsRowSplits())
		assert.Empty(t, res.NeighborsDistance())
		assert.NotNil(t, res.NeighborsDistance())
		assert.Nil(t, res.Distances(0))
	})
}

func TestFixedRadiusSearch_Metrics(t *testing.T) {
	ctx := context.Background()
	// Offsets (1,1,0): L1 = 2, squared L2 = 2, Linf = 1.
	points := []float64{1, 1, 0}
	table := buildTable(t, points, 1.5, nil)
	queries := []float64{0, 0, 0}

	tests := []struct {
		metric Metric
		found  bool
		dist   float64
	}{
		{MetricL1, false, 0},
		{MetricL2, true, 2},
		{MetricLinf, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.metric.String(), func(t *testing.T) {
			res, err := FixedRadiusSearch[float64, int64](ctx, points, queries, 1.5, nil, nil, table, tt.metric, false, true)
			require.NoError(t, err)
			if !tt.found {
				assert.Equal(t, 0, res.Len())
				return
			}
			require.Equal(t, []int64{0}, res.NeighborsIndex())
			assert.InDelta(t, tt.dist, res.NeighborsDistance()[0], 1e-12)
		})
	}
}

func TestFixedRadiusSearch_BoundaryInclusion(t *testing.T) {
	ctx := context.Background()
	points := []float64{0, 0, 0, 2, 0, 0, 0, 2, 0, 0, 0, 2.0000001}
	table := buildTable(t, points, 2, nil)

	for _, m := range []Metric{MetricL1, MetricL2, MetricLinf} {
		res, err := FixedRadiusSearch[float64, int64](ctx, points, []float64{0, 0, 0}, 2, nil, nil, table, m, false, false)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{0, 1, 2}, res.NeighborsIndex(), m.String())
	}
}

func TestFixedRadiusSearch_EmptyBatch(t *testing.T) {
	ctx := context.Background()
	points := []float32{0, 0, 0, 0.1, 0, 0}
	pointSplits := []int64{0, 2, 2}
	table := buildTable(t, points, 1, pointSplits)

	queries := []float32{0, 0, 0, 0, 0, 0, 0.1, 0, 0}
	querySplits := []int64{0, 1, 3}

	res, err := FixedRadiusSearch[float32, int64](ctx, points, queries, 1, pointSplits, querySplits, table, MetricL2, false, false)
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 2, 2, 2}, res.NeighborsRowSplits())
	assert.Empty(t, res.Neighbors(1))
	assert.Empty(t, res.Neighbors(2))
}

func TestFixedRadiusSearch_NoQueries(t *testing.T) {
	table := buildTable(t, scenarioPoints, 1, nil)

	res, err := FixedRadiusSearch[float32, int64](context.Background(), scenarioPoints, nil, 1, nil, []int64{0, 0}, table, MetricL2, false, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, res.NeighborsRowSplits())
	assert.Empty(t, res.NeighborsIndex())
	assert.Empty(t, res.NeighborsDistance())
}

func TestFixedRadiusSearch_BruteForceEquivalence(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(4711)

	const (
		numPoints  = 3000
		numQueries = 800
		numBatches = 4
		radius     = 0.8
	)
	points := testutil.ClusteredPoints[float64](rng, numPoints, 6, 10, 1)
	queries := testutil.UniformPoints[float64](rng, numQueries, 10)
	pointSplits := rng.BatchSplits(numPoints, numBatches)
	querySplits := rng.BatchSplits(numQueries, numBatches)

	for _, sizeFactor := range []float64{1.0 / 64, 1, 4} {
		table, err := BuildSpatialHashTable(ctx, points, radius, pointSplits, sizeFactor, DefaultMaxTableSize)
		require.NoError(t, err)

		for _, m := range []Metric{MetricL1, MetricL2, MetricLinf} {
			t.Run(fmt.Sprintf("%s/factor=%v", m, sizeFactor), func(t *testing.T) {
				res, err := FixedRadiusSearch[float64, int64](ctx, points, queries, radius, pointSplits, querySplits,
					table, m, false, true, WithChunkSize(37))
				require.NoError(t, err)

				want := testutil.BruteForce(points, queries, pointSplits, querySplits, radius+1e-9, m, false)
				require.NoError(t, testutil.Verify(want, res.NeighborsRowSplits(), res.NeighborsIndex(),
					distance.Threshold(m, radius-1e-9)))

				// Distances line up with the oracle.
				for q := 0; q < numQueries; q++ {
					byIndex := make(map[int64]float64)
					for _, n := range want[q] {
						byIndex[n.Index] = n.Distance
					}
					for k, p := range res.Neighbors(q) {
						assert.InDelta(t, byIndex[p], res.Distances(q)[k], 1e-9)
					}
				}
			})
		}
	}
}

func TestFixedRadiusSearch_Float32Int32(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(99)
	points := testutil.UniformPoints[float32](rng, 1500, 8)
	splits := rng.BatchSplits(1500, 3)
	table := buildTable(t, points, 0.6, splits)

	res, err := FixedRadiusSearch[float32, int32](ctx, points, points, 0.6, splits, splits, table, MetricL2, true, false)
	require.NoError(t, err)

	want := testutil.BruteForce(points, points, splits, splits, 0.6+1e-5, distance.MetricL2, true)
	require.NoError(t, testutil.Verify(want, res.NeighborsRowSplits(), res.NeighborsIndex(),
		distance.Threshold(distance.MetricL2, 0.6-1e-5)))
}

func TestFixedRadiusSearch_SelfInclusion(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(5)
	points := testutil.UniformPoints[float32](rng, 400, 3)
	splits := rng.BatchSplits(400, 2)
	table := buildTable(t, points, 0.3, splits)

	for _, m := range []Metric{MetricL1, MetricL2, MetricLinf} {
		res, err := FixedRadiusSearch[float32, int64](ctx, points, points, 0.3, splits, splits, table, m, false, false)
		require.NoError(t, err)
		for q := 0; q < 400; q++ {
			assert.Contains(t, res.Neighbors(q), int64(q))
		}

		ignored, err := FixedRadiusSearch[float32, int64](ctx, points, points, 0.3, splits, splits, table, m, true, false)
		require.NoError(t, err)
		assert.Equal(t, res.Len()-400, ignored.Len())
		for q := 0; q < 400; q++ {
			assert.NotContains(t, ignored.Neighbors(q), int64(q))
		}
	}
}

func TestFixedRadiusSearch_BatchIsolation(t *testing.T) {
	ctx := context.Background()
	// Identical coordinates in both batches.
	points := []float32{0, 0, 0, 0.1, 0.1, 0.1, 0, 0, 0, 0.1, 0.1, 0.1}
	splits := []int64{0, 2, 4}
	table := buildTable(t, points, 1, splits)

	res, err := FixedRadiusSearch[float32, int64](ctx, points, points, 1, splits, splits, table, MetricL2, false, false)
	require.NoError(t, err)

	for q := 0; q < 4; q++ {
		b := int64(q / 2)
		for _, p := range res.Neighbors(q) {
			assert.GreaterOrEqual(t, p, splits[b])
			assert.Less(t, p, splits[b+1])
		}
		assert.Len(t, res.Neighbors(q), 2)
	}
}

func TestFixedRadiusSearch_DeterministicAcrossWorkers(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(11)
	points := testutil.UniformPoints[float32](rng, 2000, 6)
	queries := testutil.UniformPoints[float32](rng, 500, 6)
	table := buildTable(t, points, 0.5, nil)

	serial, err := FixedRadiusSearch[float32, int64](ctx, points, queries, 0.5, nil, nil, table, MetricL2, false, true, WithWorkers(1))
	require.NoError(t, err)
	parallel, err := FixedRadiusSearch[float32, int64](ctx, points, queries, 0.5, nil, nil, table, MetricL2, false, true,
		WithWorkers(8), WithChunkSize(7))
	require.NoError(t, err)

	assert.Equal(t, serial.NeighborsRowSplits(), parallel.NeighborsRowSplits())
	assert.Equal(t, serial.NeighborsIndex(), parallel.NeighborsIndex())
	assert.Equal(t, serial.NeighborsDistance(), parallel.NeighborsDistance())
}

func TestFixedRadiusSearch_CSRConsistency(t *testing.T) {
	rng := testutil.NewRNG(8)
	points := testutil.UniformPoints[float64](rng, 700, 4)
	queries := testutil.UniformPoints[float64](rng, 300, 4)
	table := buildTable(t, points, 0.4, nil)

	res, err := FixedRadiusSearch[float64, int64](context.Background(), points, queries, 0.4, nil, nil, table, MetricL1, false, false)
	require.NoError(t, err)

	rs := res.NeighborsRowSplits()
	require.Len(t, rs, 301)
	assert.Equal(t, int64(0), rs[0])
	assert.Equal(t, int64(len(res.NeighborsIndex())), rs[300])
	assert.IsNonDecreasing(t, rs)
}

func TestFixedRadiusSearch_Filter(t *testing.T) {
	points := []float32{0, 0, 0, 0.1, 0, 0, 0.2, 0, 0, 0.3, 0, 0}
	table := buildTable(t, points, 1, nil)

	res, err := radiusSearch[float32, int64](context.Background(), applyOptions(nil), searchRequest[float32]{
		points:  points,
		queries: []float32{0, 0, 0},
		radius:  1,
		table:   table,
		metric:  MetricL2,
		filter:  roaring.BitmapOf(1, 3),
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, res.NeighborsIndex())
}

func TestFixedRadiusSearch_Errors(t *testing.T) {
	ctx := context.Background()
	splits := []int64{0, 3}
	table := buildTable(t, scenarioPoints, 2.5, splits)
	other := buildTable(t, []float32{0, 0, 0}, 2.5, nil)
	queries := []float32{0, 0, 0}

	tests := []struct {
		name        string
		queries     []float32
		pointSplits []int64
		querySplits []int64
		table       *HashTable
		metric      Metric
		radius      float64
		arg         string
	}{
		{"UnknownMetric", queries, splits, nil, table, Metric(7), 2.5, "metric"},
		{"ZeroRadius", queries, splits, nil, table, MetricL2, 0, "radius"},
		{"NaNRadius", queries, splits, nil, table, MetricL2, math.NaN(), "radius"},
		{"QueriesNotMultipleOf3", []float32{1, 2}, splits, nil, table, MetricL2, 2.5, "queries"},
		{"BatchCountMismatch", queries, splits, []int64{0, 1, 1}, table, MetricL2, 2.5, "queries_row_splits"},
		{"QuerySplitsTotal", queries, splits, []int64{0, 2}, table, MetricL2, 2.5, "queries_row_splits"},
		{"PointSplitsTotal", queries, []int64{0, 2}, nil, table, MetricL2, 2.5, "points_row_splits"},
		{"NilTable", queries, splits, nil, nil, MetricL2, 2.5, "hash_table"},
		{"TableForOtherPoints", queries, splits, nil, other, MetricL2, 2.5, "hash_table_index"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := FixedRadiusSearch[float32, int64](ctx, scenarioPoints, tt.queries, tt.radius, tt.pointSplits, tt.querySplits,
				tt.table, tt.metric, false, false)
			assert.Nil(t, res)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.arg, ve.Arg)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	t.Run("TableBatchMismatch", func(t *testing.T) {
		points := []float32{0, 0, 0, 1, 1, 1}
		twoBatches := buildTable(t, points, 1, []int64{0, 1, 2})

		_, err := FixedRadiusSearch[float32, int64](ctx, points, points, 1, []int64{0, 2}, []int64{0, 2}, twoBatches, MetricL2, false, false)
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "hash_table_splits", ve.Arg)
	})

	t.Run("TableBatchOffsets", func(t *testing.T) {
		points := []float32{0, 0, 0, 1, 1, 1}
		table := buildTable(t, points, 1, []int64{0, 1, 2})

		_, err := FixedRadiusSearch[float32, int64](ctx, points, points, 1, []int64{0, 2, 2}, []int64{0, 2, 2}, table, MetricL2, false, false)
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "hash_table_cell_splits", ve.Arg)
	})
}

type narrowIndex int32

func TestFixedRadiusSearch_MemoryLimit(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 8})
	table := buildTable(t, scenarioPoints, 2.5, nil)

	_, err := FixedRadiusSearch[float32, int64](context.Background(), scenarioPoints, []float32{0, 0, 0}, 2.5, nil, nil,
		table, MetricL2, false, true, WithResourceController(rc))
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestFixedRadiusSearch_NamedIndexType(t *testing.T) {
	table := buildTable(t, scenarioPoints, 2.5, nil)

	res, err := FixedRadiusSearch[float32, narrowIndex](context.Background(), scenarioPoints, []float32{0, 0, 0}, 2.5, nil, nil,
		table, MetricL2, false, false)
	require.NoError(t, err)
	assert.Equal(t, []narrowIndex{0, 1}, res.NeighborsIndex())
	assert.Equal(t, int64(math.MaxInt32), maxIndex[narrowIndex]())
}

func TestFixedRadiusSearch_MetricsAndLogging(t *testing.T) {
	mc := &BasicMetricsCollector{}
	table := buildTable(t, scenarioPoints, 2.5, nil, WithMetricsCollector(mc))

	_, err := FixedRadiusSearch[float32, int64](context.Background(), scenarioPoints, []float32{0, 0, 0}, 2.5, nil, nil,
		table, MetricL2, false, false, WithMetricsCollector(mc), WithLogger(NoopLogger()))
	require.NoError(t, err)

	_, err = FixedRadiusSearch[float32, int64](context.Background(), scenarioPoints, []float32{0, 0, 0}, 2.5, nil, nil,
		table, Metric(9), false, false, WithMetricsCollector(mc))
	require.Error(t, err)

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.BuildCount)
	assert.Equal(t, int64(2), stats.SearchCount)
	assert.Equal(t, int64(1), stats.SearchErrors)
	assert.Equal(t, int64(1), stats.SearchQueries)
	assert.Equal(t, int64(2), stats.SearchNeighbors)
}
