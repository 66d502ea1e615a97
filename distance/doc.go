// Package distance provides the point-to-point metrics used by radius search.
//
// # Supported Metrics
//
//   - MetricL2: squared Euclidean distance (default)
//   - MetricL1: Manhattan distance
//   - MetricLinf: Chebyshev distance
//
// Metrics are selected by the literal tags "L1", "L2" and "Linf". Resolve the
// tag once with ParseMetric and the function once with Provider; the returned
// Func is what the search hot loop calls. A point lies within radius r when
// its distance is at most Threshold(m, r).
//
// # Usage
//
//	m, err := distance.ParseMetric("Linf")
//	fn, err := distance.Provider[float32](m)
//	d := fn(a, b) // a, b are 3-element slices
//	inside := float64(d) <= distance.Threshold(m, r)
package distance
