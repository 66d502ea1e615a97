package frnn

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/frnn/resource"
)

func TestChunkSpans(t *testing.T) {
	tests := []struct {
		name   string
		splits []int64
		chunk  int
		want   []span
	}{
		{"Single", []int64{0, 5}, 10, []span{{0, 0, 5}}},
		{"Chunked", []int64{0, 5}, 2, []span{{0, 0, 2}, {0, 2, 4}, {0, 4, 5}}},
		{"EmptyBatch", []int64{0, 2, 2, 3}, 4, []span{{0, 0, 2}, {2, 2, 3}}},
		{"AllEmpty", []int64{0, 0}, 4, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chunkSpans(tt.splits, tt.chunk))
		})
	}
}

func TestOptionsRun(t *testing.T) {
	for _, workers := range []int{1, 4} {
		o := applyOptions([]Option{WithWorkers(workers)})
		seen := make([]int32, 100)
		require.NoError(t, o.run(context.Background(), len(seen), func(i int) {
			atomic.AddInt32(&seen[i], 1)
		}))
		for i, n := range seen {
			assert.Equal(t, int32(1), n, "task %d with %d workers", i, workers)
		}
	}
}

func TestOptionsRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		o := applyOptions([]Option{WithWorkers(workers)})
		var calls atomic.Int32
		err := o.run(ctx, 10, func(int) { calls.Add(1) })
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls.Load())
	}
}

func TestOptionsRun_ControllerBoundsWorkers(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxWorkers: 2})
	o := applyOptions([]Option{WithResourceController(rc)})
	assert.Equal(t, 2, o.workers)

	var running, peak atomic.Int32
	require.NoError(t, o.run(context.Background(), 50, func(int) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		running.Add(-1)
	}))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestApplyOptions_Defaults(t *testing.T) {
	o := applyOptions(nil)

	assert.NotNil(t, o.logger)
	assert.Equal(t, NoopMetricsCollector{}, o.metricsCollector)
	assert.Equal(t, DefaultChunkSize, o.chunkSize)
	assert.Equal(t, CompressionLZ4, o.compression)
	assert.Positive(t, o.workers)

	o = applyOptions([]Option{nil, WithChunkSize(-1), WithLogger(nil), WithMetricsCollector(nil)})
	assert.Equal(t, DefaultChunkSize, o.chunkSize)
	assert.NotNil(t, o.logger)
	assert.NotNil(t, o.metricsCollector)
}
