package frnn

import (
	"context"
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// Search creates a fluent radius search over the index for the given
// queries. The query batches must line up with the indexed point batches.
//
// Example:
//
//	res, err := idx.Search(queries).
//	    Metric(frnn.MetricL1).
//	    ReturnDistances().
//	    Execute(ctx)
//
//	// Or with streaming:
//	for n, err := range idx.Search(queries).Stream(ctx) {
//	    if err != nil { break }
//	    process(n.Query, n.Neighbors)
//	}
func (idx *SpatialIndex[T]) Search(queries PointSet[T]) *SearchBuilder[T] {
	return &SearchBuilder[T]{
		idx:     idx,
		queries: queries,
		radius:  idx.Radius(),
		metric:  MetricL2,
	}
}

// SearchBuilder is a fluent builder for constructing radius searches.
type SearchBuilder[T Float] struct {
	idx     *SpatialIndex[T]
	queries PointSet[T]
	radius  float64
	metric  Metric

	ignoreQueryPoint bool
	returnDistances  bool
	filter           *roaring.Bitmap
}

// Metric sets the distance metric. Default: MetricL2.
func (sb *SearchBuilder[T]) Metric(m Metric) *SearchBuilder[T] {
	sb.metric = m
	return sb
}

// Radius overrides the search radius. A radius larger than the one the index
// was built with makes the search fail with a *ValidationError.
func (sb *SearchBuilder[T]) Radius(r float64) *SearchBuilder[T] {
	sb.radius = r
	return sb
}

// IgnoreQueryPoint skips the point whose global index equals the query's
// global index. Useful when the queries are the indexed points.
func (sb *SearchBuilder[T]) IgnoreQueryPoint() *SearchBuilder[T] {
	sb.ignoreQueryPoint = true
	return sb
}

// ReturnDistances requests the distance of every neighbor.
func (sb *SearchBuilder[T]) ReturnDistances() *SearchBuilder[T] {
	sb.returnDistances = true
	return sb
}

// Filter restricts candidates to the point indices contained in bm.
func (sb *SearchBuilder[T]) Filter(bm *roaring.Bitmap) *SearchBuilder[T] {
	sb.filter = bm
	return sb
}

func (sb *SearchBuilder[T]) request() searchRequest[T] {
	return searchRequest[T]{
		points:           sb.idx.points.Coords,
		queries:          sb.queries.Coords,
		radius:           sb.radius,
		pointSplits:      sb.idx.points.RowSplits,
		querySplits:      sb.queries.RowSplits,
		table:            sb.idx.table,
		metric:           sb.metric,
		ignoreQueryPoint: sb.ignoreQueryPoint,
		returnDistances:  sb.returnDistances,
		filter:           sb.filter,
		boundedRadius:    true,
	}
}

// Execute runs the search with int64 neighbor indices.
func (sb *SearchBuilder[T]) Execute(ctx context.Context, optFns ...Option) (*Result[T, int64], error) {
	return radiusSearch[T, int64](ctx, sb.idx.options(optFns), sb.request())
}

// Execute32 runs the search with int32 neighbor indices. It fails with an
// *UnsupportedTypeError if the index holds more than 2^31 points.
func (sb *SearchBuilder[T]) Execute32(ctx context.Context, optFns ...Option) (*Result[T, int32], error) {
	return radiusSearch[T, int32](ctx, sb.idx.options(optFns), sb.request())
}

// MustExecute runs the search, panicking on error.
// Use this only in tests or when you're certain the query is valid.
func (sb *SearchBuilder[T]) MustExecute(ctx context.Context, optFns ...Option) *Result[T, int64] {
	res, err := sb.Execute(ctx, optFns...)
	if err != nil {
		panic(err)
	}
	return res
}

// QueryNeighbors holds the neighbors of a single query.
type QueryNeighbors[T Float] struct {
	Query     int
	Neighbors []int64
	Distances []T // nil unless distances were requested
}

// Stream runs the search and yields the neighbors of each query in query
// order. The iterator supports early termination by breaking from the loop.
func (sb *SearchBuilder[T]) Stream(ctx context.Context, optFns ...Option) iter.Seq2[QueryNeighbors[T], error] {
	return func(yield func(QueryNeighbors[T], error) bool) {
		res, err := sb.Execute(ctx, optFns...)
		if err != nil {
			yield(QueryNeighbors[T]{}, err)
			return
		}
		for q := 0; q < res.NumQueries(); q++ {
			if !yield(QueryNeighbors[T]{Query: q, Neighbors: res.Neighbors(q), Distances: res.Distances(q)}, nil) {
				return
			}
		}
	}
}

// Count returns the total number of neighbors over all queries.
func (sb *SearchBuilder[T]) Count(ctx context.Context, optFns ...Option) (int, error) {
	rb := *sb
	rb.returnDistances = false
	res, err := rb.Execute(ctx, optFns...)
	if err != nil {
		return 0, err
	}
	return res.Len(), nil
}
