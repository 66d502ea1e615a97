// Package frnn provides batched fixed-radius nearest neighbor search over
// 3-D point clouds.
//
// Points are partitioned into batches (for example one batch per point cloud
// of a training minibatch). Every batch is hashed into its own spatial hash
// table whose grid cell side equals the search radius, so all neighbors of a
// query lie in the 27 cells around the query's cell. Queries only ever see
// points of their own batch.
//
// # Quick Start
//
// The low-level API mirrors a two-step operator: build the table, then search.
//
//	points := []float32{0, 0, 0, 0, 0, 2, 5, 5, 5}
//	splits := []int64{0, 3}
//
//	table, _ := frnn.BuildSpatialHashTable(ctx, points, 2.5, splits,
//	    frnn.DefaultSizeFactor, frnn.DefaultMaxTableSize)
//	res, _ := frnn.FixedRadiusSearch[float32, int64](ctx, points, queries, 2.5,
//	    splits, querySplits, table, frnn.MetricL2, false, true)
//
//	res.NeighborsIndex()     // flat neighbor indices
//	res.NeighborsRowSplits() // CSR offsets, one row per query
//	res.NeighborsDistance()  // distances, if requested
//
// The fluent API keeps the points and the table together:
//
//	idx, _ := frnn.NewIndex[float32]().Radius(2.5).Build(ctx, frnn.NewPointSet(points, splits))
//	res, _ := idx.Search(frnn.NewPointSet(queries, querySplits)).
//	    Metric(frnn.MetricL1).
//	    IgnoreQueryPoint().
//	    Execute(ctx)
//
// # Metrics
//
// MetricL1, MetricL2 and MetricLinf are supported. A point belongs to the
// result if its distance is at most the radius. MetricL2 works on squared
// distances: the squared Euclidean distance is compared against radius*radius
// and is also what ReturnDistances reports.
//
// # Output
//
// Results are ragged arrays in CSR form: the neighbors of query q are
// NeighborsIndex()[rs[q]:rs[q+1]] with rs = NeighborsRowSplits(). Neighbor
// indices are global point indices. Within a row the order follows the cell
// visit order and is deterministic for a given table.
//
// # Concurrency
//
// Builds and searches run on a bounded worker pool (see WithWorkers). A
// resource.Controller can additionally cap the number of workers shared by
// concurrent calls, the memory admitted for results and the snapshot I/O
// rate. Tables and indexes are immutable and safe for concurrent searches.
//
// # Snapshots
//
// SaveIndex and LoadIndex persist an index to any blobstore.BlobStore (local
// files, memory, S3 or MinIO) in a checksummed, block-compressed format.
//
// # Errors
//
// Invalid arguments fail with a *ValidationError naming the argument and
// wrapping ErrInvalidArgument. An index type too narrow for the number of
// points fails with an *UnsupportedTypeError wrapping ErrUnsupportedType.
package frnn
