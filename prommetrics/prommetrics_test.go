package prommetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/frnn"
	"github.com/hupe1980/frnn/blobstore"
)

func TestCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg, "frnn")
	require.NoError(t, err)

	c.RecordBuild(100, 4, time.Millisecond, nil)
	c.RecordBuild(0, 0, time.Millisecond, errors.New("boom"))
	c.RecordSearch(10, 30, 2*time.Millisecond, nil)
	c.RecordSnapshot("save", 512, time.Millisecond, nil)

	assert.Equal(t, 100.0, promtest.ToFloat64(c.points))
	assert.Equal(t, 4.0, promtest.ToFloat64(c.cells))
	assert.Equal(t, 10.0, promtest.ToFloat64(c.queries))
	assert.Equal(t, 30.0, promtest.ToFloat64(c.neighbors))
	assert.Equal(t, 512.0, promtest.ToFloat64(c.bytes.WithLabelValues("save")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.errors.WithLabelValues("build")))
	assert.Equal(t, 0.0, promtest.ToFloat64(c.errors.WithLabelValues("search")))
	assert.Equal(t, 1, promtest.CollectAndCount(c.fanout))
}

func TestCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "frnn")
	require.NoError(t, err)

	_, err = New(reg, "frnn")
	assert.Error(t, err)
	assert.Panics(t, func() { MustNew(reg, "frnn") })
}

func TestCollector_WithIndex(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := MustNew(reg, "test")
	ctx := context.Background()

	points := frnn.NewPointSet([]float32{0, 0, 0, 0, 0, 2, 5, 5, 5}, nil)
	idx, err := frnn.NewSpatialIndex(ctx, points, 2.5, frnn.WithMetricsCollector(c))
	require.NoError(t, err)

	_, err = idx.Search(points).Execute(ctx)
	require.NoError(t, err)

	store := blobstore.NewMemoryStore()
	require.NoError(t, frnn.SaveIndex(ctx, store, "idx", idx))

	assert.Equal(t, 3.0, promtest.ToFloat64(c.points))
	assert.Equal(t, 3.0, promtest.ToFloat64(c.queries))
	assert.Equal(t, 5.0, promtest.ToFloat64(c.neighbors))
	assert.Positive(t, promtest.ToFloat64(c.bytes.WithLabelValues("save")))
}
