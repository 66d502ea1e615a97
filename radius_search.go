package frnn

import (
	"context"
	"strconv"
	"time"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/frnn/distance"
	"github.com/hupe1980/frnn/internal/grid"
	"github.com/hupe1980/frnn/ragged"
)

// Result holds the neighbors of every query in compressed-row form.
// Row q lists the neighbors of query q in cell-visit order: the 27 cells
// around the query's cell in x-fastest order, points ascending within a cell.
type Result[T Float, I Integer] struct {
	neighbors ragged.Array[I]
	distances []T
}

// NeighborsIndex returns the global point indices of all neighbors.
func (r *Result[T, I]) NeighborsIndex() []I { return r.neighbors.Values() }

// NeighborsRowSplits returns the Q+1 offsets of each query's neighbors.
func (r *Result[T, I]) NeighborsRowSplits() []int64 { return r.neighbors.Splits() }

// NeighborsDistance returns the distance of every neighbor, or an empty
// slice if distances were not requested.
func (r *Result[T, I]) NeighborsDistance() []T { return r.distances }

// NumQueries returns the number of queries.
func (r *Result[T, I]) NumQueries() int { return r.neighbors.Len() }

// Len returns the total number of neighbors.
func (r *Result[T, I]) Len() int { return r.neighbors.NumValues() }

// Neighbors returns the neighbors of query q.
func (r *Result[T, I]) Neighbors(q int) []I { return r.neighbors.Row(q) }

// Distances returns the neighbor distances of query q, or nil if distances
// were not requested.
func (r *Result[T, I]) Distances(q int) []T {
	if len(r.distances) == 0 {
		return nil
	}
	s := r.neighbors.Splits()
	return r.distances[s[q]:s[q+1]:s[q+1]]
}

// FixedRadiusSearch finds, for every query, all points of the same batch
// within radius under metric. table must have been built over points and
// pointsRowSplits, normally with the same radius.
//
// With ignoreQueryPoint, the point whose global index equals the query's
// global index is skipped. With returnDistances, NeighborsDistance holds the
// metric distance of every neighbor. For MetricL2 distances are squared and
// a point is a neighbor when its squared distance is at most radius*radius.
//
// Invalid input fails with a *ValidationError. An index type too narrow for
// the number of points fails with an *UnsupportedTypeError.
func FixedRadiusSearch[T Float, I Integer](
	ctx context.Context,
	points, queries []T,
	radius float64,
	pointsRowSplits, queriesRowSplits []int64,
	table *HashTable,
	metric Metric,
	ignoreQueryPoint, returnDistances bool,
	optFns ...Option,
) (*Result[T, I], error) {
	return radiusSearch[T, I](ctx, applyOptions(optFns), searchRequest[T]{
		points:           points,
		queries:          queries,
		radius:           radius,
		pointSplits:      pointsRowSplits,
		querySplits:      queriesRowSplits,
		table:            table,
		metric:           metric,
		ignoreQueryPoint: ignoreQueryPoint,
		returnDistances:  returnDistances,
	})
}

type searchRequest[T Float] struct {
	points, queries          []T
	radius                   float64
	pointSplits, querySplits []int64
	table                    *HashTable
	metric                   Metric
	ignoreQueryPoint         bool
	returnDistances          bool
	filter                   *roaring.Bitmap

	// boundedRadius rejects a radius above the table's cell side.
	boundedRadius bool
}

// validate checks the request and fills in default row splits.
func (req *searchRequest[T]) validate() error {
	if !req.metric.Valid() {
		return invalid("metric", "%v is not one of L1, L2, Linf", req.metric)
	}
	if err := validateRadius(req.radius); err != nil {
		return err
	}
	if req.pointSplits == nil {
		req.pointSplits = ragged.Uniform(int64(len(req.points) / 3))
	}
	if req.querySplits == nil {
		req.querySplits = ragged.Uniform(int64(len(req.queries) / 3))
	}
	if err := validatePoints("points", req.points, req.pointSplits); err != nil {
		return err
	}
	if err := validatePoints("queries", req.queries, req.querySplits); err != nil {
		return err
	}
	if len(req.pointSplits) != len(req.querySplits) {
		return invalid("queries_row_splits", "%d batches, points have %d",
			len(req.querySplits)-1, len(req.pointSplits)-1)
	}
	if req.table == nil {
		return invalid("hash_table", "is nil")
	}
	if r := req.table.Radius(); req.boundedRadius && r != 0 && req.radius > r {
		return invalid("radius", "%v exceeds the index radius %v", req.radius, r)
	}
	return req.table.checkPoints(len(req.points)/3, req.pointSplits)
}

// scanner enumerates the neighbors of single queries.
type scanner[T Float] struct {
	points      []T
	table       *HashTable
	dist        distance.Func[T]
	threshold   T
	invCellSize float64
	ignore      bool
	filter      *roaring.Bitmap
}

// visit calls emit for every neighbor of query q located at qp in batch b.
func (s *scanner[T]) visit(b int, q int64, qp []T, slots *[27]int64, emit func(p int64, d T)) {
	size := s.table.TableSize(b)
	for _, slot := range grid.NeighborSlots(grid.CellOf(qp, s.invCellSize), size, slots) {
		for _, p := range s.table.Cell(b, slot) {
			if s.ignore && p == q {
				continue
			}
			if s.filter != nil && (p > maxFilterID || !s.filter.Contains(uint32(p))) {
				continue
			}
			if d := s.dist(qp, s.points[3*p:3*p+3]); d <= s.threshold {
				emit(p, d)
			}
		}
	}
}

const maxFilterID = 1<<32 - 1

func radiusSearch[T Float, I Integer](ctx context.Context, o options, req searchRequest[T]) (res *Result[T, I], err error) {
	start := time.Now()
	logger := o.logger.WithRadius(req.radius).WithMetric(req.metric)
	defer func() {
		var queries, neighbors int
		if res != nil {
			queries, neighbors = res.NumQueries(), res.Len()
		}
		o.metricsCollector.RecordSearch(queries, neighbors, time.Since(start), err)
		logger.LogSearch(ctx, queries, neighbors, err)
	}()

	if err := req.validate(); err != nil {
		return nil, err
	}
	numPoints := int64(len(req.points) / 3)
	if numPoints > 0 && numPoints-1 > maxIndex[I]() {
		return nil, &UnsupportedTypeError{
			Type:   typeName[I](),
			Reason: "cannot hold point indices up to " + strconv.FormatInt(numPoints-1, 10),
		}
	}
	if r := req.table.Radius(); r != 0 && r != req.radius {
		logger.WarnContext(ctx, "hash table radius differs from search radius", "table_radius", r)
	}

	dist, err := distance.Provider[T](req.metric)
	if err != nil {
		return nil, translateError("metric", err)
	}

	s := &scanner[T]{
		points:      req.points,
		table:       req.table,
		dist:        dist,
		threshold:   T(distance.Threshold(req.metric, req.radius)),
		invCellSize: 1 / req.table.cellSize(req.radius),
		ignore:      req.ignoreQueryPoint,
		filter:      req.filter,
	}

	numQueries := int64(len(req.queries) / 3)
	spans := chunkSpans(req.querySplits, o.chunkSize)

	// Counting pass: rowSplits[q+1] holds the neighbor count of query q.
	rowSplits := make([]int64, numQueries+1)
	if err := o.run(ctx, len(spans), func(i int) {
		var slots [27]int64
		sp := spans[i]
		for q := sp.lo; q < sp.hi; q++ {
			var n int64
			s.visit(sp.batch, q, req.queries[3*q:3*q+3], &slots, func(int64, T) { n++ })
			rowSplits[q+1] = n
		}
	}); err != nil {
		return nil, err
	}
	for q := int64(0); q < numQueries; q++ {
		rowSplits[q+1] += rowSplits[q]
	}
	total := rowSplits[numQueries]

	reserve := total * int64(unsafe.Sizeof(I(0)))
	if req.returnDistances {
		reserve += total * int64(unsafe.Sizeof(T(0)))
	}
	if err := o.controller.AcquireMemory(ctx, reserve); err != nil {
		return nil, err
	}
	defer o.controller.ReleaseMemory(reserve)

	index := make([]I, total)
	var distances []T
	if req.returnDistances {
		distances = make([]T, total)
	} else {
		distances = []T{}
	}

	// Fill pass: every query writes its own row.
	if err := o.run(ctx, len(spans), func(i int) {
		var slots [27]int64
		sp := spans[i]
		for q := sp.lo; q < sp.hi; q++ {
			k := rowSplits[q]
			s.visit(sp.batch, q, req.queries[3*q:3*q+3], &slots, func(p int64, d T) {
				index[k] = I(p)
				if req.returnDistances {
					distances[k] = d
				}
				k++
			})
		}
	}); err != nil {
		return nil, err
	}

	neighbors, err := ragged.New(index, rowSplits)
	if err != nil {
		return nil, err
	}
	return &Result[T, I]{neighbors: neighbors, distances: distances}, nil
}
