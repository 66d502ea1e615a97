package frnn_test

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/frnn"
	"github.com/hupe1980/frnn/resource"
	"github.com/hupe1980/frnn/testutil"
)

// TestNoGoroutineLeaks verifies that the worker goroutines of builds and
// searches are gone once the calls return, including canceled ones.
func TestNoGoroutineLeaks(t *testing.T) {
	rng := testutil.NewRNG(17)
	points := testutil.UniformPoints[float32](rng, 20000, 10)
	ps := frnn.NewPointSet(points, rng.BatchSplits(20000, 4))

	tests := []struct {
		name     string
		opts     []frnn.Option
		cancel   bool
		maxLeaks int
	}{
		{name: "Parallel", opts: []frnn.Option{frnn.WithWorkers(8), frnn.WithChunkSize(64)}, maxLeaks: 2},
		{
			name: "ResourceController",
			opts: []frnn.Option{frnn.WithResourceController(resource.NewController(resource.Config{MaxWorkers: 2}))},
			maxLeaks: 2,
		},
		{name: "Canceled", opts: []frnn.Option{frnn.WithWorkers(8), frnn.WithChunkSize(16)}, cancel: true, maxLeaks: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runtime.GC()
			time.Sleep(50 * time.Millisecond)
			initial := runtime.NumGoroutine()

			idx, err := frnn.NewSpatialIndex(context.Background(), ps, 0.3, tt.opts...)
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			if tt.cancel {
				cancel()
			}
			_, err = idx.Search(ps).ReturnDistances().Execute(ctx)
			cancel()
			if tt.cancel {
				assert.ErrorIs(t, err, context.Canceled)
			} else {
				require.NoError(t, err)
			}

			deadline := time.Now().Add(2 * time.Second)
			var leaked int
			for {
				runtime.GC()
				time.Sleep(20 * time.Millisecond)
				leaked = runtime.NumGoroutine() - initial
				if leaked <= tt.maxLeaks || time.Now().After(deadline) {
					break
				}
			}

			if leaked > tt.maxLeaks {
				buf := make([]byte, 1<<20)
				n := runtime.Stack(buf, true)
				t.Errorf("goroutine leak: %d extra goroutines\n%s", leaked, buf[:n])
			}
		})
	}
}

// TestConcurrentSearches runs searches on one index from many goroutines.
func TestConcurrentSearches(t *testing.T) {
	rng := testutil.NewRNG(23)
	points := testutil.UniformPoints[float64](rng, 3000, 6)
	ps := frnn.NewPointSet(points, nil)

	idx, err := frnn.NewSpatialIndex(context.Background(), ps, 0.5, frnn.WithWorkers(4))
	require.NoError(t, err)

	want, err := idx.Search(ps).Execute(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := idx.Search(ps).Execute(context.Background())
			if err != nil {
				errs <- err
				return
			}
			assert.Equal(t, want.NeighborsIndex(), got.NeighborsIndex())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
