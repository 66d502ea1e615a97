// Package testutil provides testing utilities for frnn.
//
// This package is intended for use in tests, benchmarks and the CLI's
// verification mode. It generates seeded point clouds and computes exact
// radius neighborhoods by brute force.
//
// # Random Point Generation
//
//	rng := testutil.NewRNG(seed)
//	coords := testutil.UniformPoints[float32](rng, 1000, 10)
//	splits := rng.BatchSplits(1000, 4)
//
// # Exact Search (Ground Truth)
//
//	want := testutil.BruteForce(coords, queries, splits, qsplits, r+tol, distance.MetricL2, false)
//	err := testutil.Verify(want, res.NeighborsRowSplits(), res.NeighborsIndex(), r-tol)
package testutil
