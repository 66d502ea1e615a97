// Package prommetrics exports frnn operation metrics to Prometheus.
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/frnn"
)

// Collector implements frnn.MetricsCollector on Prometheus metrics.
type Collector struct {
	latency   *prometheus.HistogramVec
	points    prometheus.Counter
	cells     prometheus.Gauge
	queries   prometheus.Counter
	neighbors prometheus.Counter
	fanout    prometheus.Histogram
	bytes     *prometheus.CounterVec
	errors    *prometheus.CounterVec
}

var _ frnn.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers its metrics with reg. A nil reg
// uses prometheus.DefaultRegisterer. namespace prefixes every metric name.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of builds, searches and snapshot operations",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"op", "status"}),
		points: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexed_points_total",
			Help:      "Total points hashed by successful builds",
		}),
		cells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hash_table_cells",
			Help:      "Total cells of the most recently built hash table",
		}),
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total query points searched",
		}),
		neighbors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "neighbors_total",
			Help:      "Total neighbors reported",
		}),
		fanout: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "neighbors_per_query",
			Help:      "Average neighbors per query of each search",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes_total",
			Help:      "Snapshot bytes saved or loaded",
		}, []string{"op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed operations",
		}, []string{"op"}),
	}

	for _, col := range []prometheus.Collector{
		c.latency, c.points, c.cells, c.queries, c.neighbors, c.fanout, c.bytes, c.errors,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on registration errors.
func MustNew(reg prometheus.Registerer, namespace string) *Collector {
	c, err := New(reg, namespace)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Collector) observe(op string, d time.Duration, err error) bool {
	status := "success"
	if err != nil {
		status = "error"
		c.errors.WithLabelValues(op).Inc()
	}
	c.latency.WithLabelValues(op, status).Observe(d.Seconds())
	return err == nil
}

// RecordBuild implements frnn.MetricsCollector.
func (c *Collector) RecordBuild(points int, cells int64, d time.Duration, err error) {
	if !c.observe("build", d, err) {
		return
	}
	c.points.Add(float64(points))
	c.cells.Set(float64(cells))
}

// RecordSearch implements frnn.MetricsCollector.
func (c *Collector) RecordSearch(queries, neighbors int, d time.Duration, err error) {
	if !c.observe("search", d, err) {
		return
	}
	c.queries.Add(float64(queries))
	c.neighbors.Add(float64(neighbors))
	if queries > 0 {
		c.fanout.Observe(float64(neighbors) / float64(queries))
	}
}

// RecordSnapshot implements frnn.MetricsCollector.
func (c *Collector) RecordSnapshot(op string, bytes int64, d time.Duration, err error) {
	if !c.observe("snapshot_"+op, d, err) {
		return
	}
	c.bytes.WithLabelValues(op).Add(float64(bytes))
}
