package frnn

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/frnn/internal/snapshot"
	"github.com/hupe1980/frnn/resource"
)

// DefaultChunkSize is the number of points or queries handled by one worker task.
const DefaultChunkSize = 4096

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	workers          int
	chunkSize        int
	controller       *resource.Controller
	compression      snapshot.Compression
}

// Option configures builds, searches and snapshot I/O.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := frnn.NewJSONLogger(slog.LevelDebug)
//	table, err := frnn.BuildSpatialHashTable(ctx, points, r, splits, 1.0/64, 1<<25, frnn.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &frnn.BasicMetricsCollector{}
//	res, _ := frnn.FixedRadiusSearch[float32, int32](ctx, ..., frnn.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithWorkers sets the maximum number of goroutines a single call uses.
// If n <= 0, the resource controller's worker count or GOMAXPROCS is used.
// WithWorkers(1) runs every phase on the calling goroutine.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithChunkSize sets how many points (build) or queries (search) one worker
// task processes. Defaults to DefaultChunkSize.
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

// WithResourceController shares memory, worker and I/O limits between calls.
//
// Example:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30,
//	    MaxWorkers:       8,
//	})
//	res, err := idx.Search(queries).Execute(ctx, frnn.WithResourceController(rc))
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// Compression selects the block compression of index snapshots.
type Compression = snapshot.Compression

// Snapshot compression algorithms.
const (
	CompressionNone = snapshot.CompressionNone
	CompressionLZ4  = snapshot.CompressionLZ4
	CompressionZSTD = snapshot.CompressionZSTD
)

// ParseCompression resolves "none", "lz4" or "zstd".
func ParseCompression(tag string) (Compression, error) {
	c, err := snapshot.ParseCompression(tag)
	if err != nil {
		return 0, &ValidationError{Arg: "compression", Reason: err.Error(), cause: err}
	}
	return c, nil
}

// WithCompression selects the block compression used by SaveIndex.
// Defaults to CompressionLZ4.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		chunkSize:        DefaultChunkSize,
		compression:      CompressionLZ4,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.chunkSize <= 0 {
		o.chunkSize = DefaultChunkSize
	}
	if o.workers <= 0 {
		o.workers = o.controller.MaxWorkers()
	}
	if o.workers <= 0 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	return o
}
