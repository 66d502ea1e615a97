package frnn

import (
	"context"
	"math"
	"time"

	"github.com/hupe1980/frnn/internal/grid"
	"github.com/hupe1980/frnn/ragged"
)

// Defaults used by IndexBuilder and the CLI.
const (
	DefaultSizeFactor   = 1.0 / 64
	DefaultMaxTableSize = 32 << 20
)

// HashTable is a batched spatial hash over 3-D points.
//
// Every batch b owns TableSize(b) consecutive cells. Cell c of the whole
// table lists the points hashed into it; the points of one batch occupy a
// contiguous range of Index, grouped by cell and in ascending point order
// within each cell.
//
// A HashTable is immutable and safe for concurrent use.
type HashTable struct {
	radius float64
	splits []int64             // hash_table_splits, B+1 entries
	cells  ragged.Array[int64] // values: point indices, splits: cell offsets into values
}

// NewHashTable wraps precomputed hash table arrays, for example ones produced
// by another implementation. radius is the cell side the table was built
// with, or 0 if unknown.
//
// The arrays are checked for internal consistency and are not copied.
func NewHashTable(radius float64, splits, index, cellSplits []int64) (*HashTable, error) {
	if radius != 0 {
		if err := validateRadius(radius); err != nil {
			return nil, err
		}
	}
	if len(splits) == 0 {
		return nil, invalid("hash_table_splits", "need at least 1 entry")
	}
	if splits[0] != 0 {
		return nil, invalid("hash_table_splits", "must start with 0, got %d", splits[0])
	}
	for b := 1; b < len(splits); b++ {
		if splits[b] <= splits[b-1] {
			return nil, invalid("hash_table_splits", "batch %d has no cells", b-1)
		}
	}

	total := splits[len(splits)-1]
	if int64(len(cellSplits)) != total+1 {
		return nil, invalid("hash_table_cell_splits", "length %d does not match %d cells", len(cellSplits), total)
	}
	cells, err := ragged.New(index, cellSplits)
	if err != nil {
		return nil, translateError("hash_table_cell_splits", err)
	}

	// Each batch's cells must only reference the index range they span.
	for b := 0; b+1 < len(splits); b++ {
		lo, hi := cellSplits[splits[b]], cellSplits[splits[b+1]]
		for _, p := range index[lo:hi] {
			if p < lo || p >= hi {
				return nil, invalid("hash_table_index", "point %d outside batch %d range [%d, %d)", p, b, lo, hi)
			}
		}
	}

	return &HashTable{radius: radius, splits: splits, cells: cells}, nil
}

// Radius returns the cell side the table was built with (0 if unknown).
func (t *HashTable) Radius() float64 { return t.radius }

// NumBatches returns the number of batches.
func (t *HashTable) NumBatches() int { return len(t.splits) - 1 }

// NumCells returns the total number of cells over all batches.
func (t *HashTable) NumCells() int64 { return t.splits[len(t.splits)-1] }

// NumPoints returns the number of indexed points.
func (t *HashTable) NumPoints() int { return t.cells.NumValues() }

// TableSize returns the number of cells of batch b.
func (t *HashTable) TableSize(b int) int64 { return t.splits[b+1] - t.splits[b] }

// cellSize returns the cell side queries are hashed with.
func (t *HashTable) cellSize(fallback float64) float64 {
	if t.radius > 0 {
		return t.radius
	}
	return fallback
}

// Splits returns the per-batch cell offsets (hash_table_splits).
func (t *HashTable) Splits() []int64 { return t.splits }

// Index returns the point indices grouped by cell (hash_table_index).
func (t *HashTable) Index() []int64 { return t.cells.Values() }

// CellSplits returns the cell offsets into Index (hash_table_cell_splits).
func (t *HashTable) CellSplits() []int64 { return t.cells.Splits() }

// Cell returns the points hashed into slot of batch b.
func (t *HashTable) Cell(b int, slot int64) []int64 {
	return t.cells.Row(int(t.splits[b] + slot))
}

// checkPoints verifies the table was built over a point set of the given
// shape.
func (t *HashTable) checkPoints(numPoints int, pointSplits []int64) error {
	if t.NumBatches() != len(pointSplits)-1 {
		return invalid("hash_table_splits", "table has %d batches, points have %d", t.NumBatches(), len(pointSplits)-1)
	}
	if t.NumPoints() != numPoints {
		return invalid("hash_table_index", "table indexes %d points, got %d", t.NumPoints(), numPoints)
	}
	cellSplits := t.CellSplits()
	for b := 0; b+1 < len(t.splits); b++ {
		if cellSplits[t.splits[b]] != pointSplits[b] {
			return invalid("hash_table_cell_splits", "batch %d starts at %d, points_row_splits says %d",
				b, cellSplits[t.splits[b]], pointSplits[b])
		}
	}
	return nil
}

// BuildSpatialHashTable hashes every point into a per-batch table of
// clamp(round(n*sizeFactor), 1, maxTableSize) cells, where n is the size of
// the batch and the cell side equals radius. A nil rowSplits treats all
// points as one batch.
//
// Invalid input fails with a *ValidationError.
func BuildSpatialHashTable[T Float](
	ctx context.Context,
	points []T,
	radius float64,
	rowSplits []int64,
	sizeFactor float64,
	maxTableSize int64,
	optFns ...Option,
) (table *HashTable, err error) {
	o := applyOptions(optFns)

	start := time.Now()
	defer func() {
		var cells int64
		if table != nil {
			cells = table.NumCells()
		}
		o.metricsCollector.RecordBuild(len(points)/3, cells, time.Since(start), err)
		o.logger.WithRadius(radius).LogBuild(ctx, max(len(rowSplits)-1, 1), len(points)/3, cells, err)
	}()

	if err := validateRadius(radius); err != nil {
		return nil, err
	}
	if math.IsNaN(sizeFactor) || math.IsInf(sizeFactor, 0) || sizeFactor <= 0 {
		return nil, invalid("hash_table_size_factor", "must be a positive finite number, got %v", sizeFactor)
	}
	if maxTableSize < 1 {
		return nil, invalid("max_hash_table_size", "must be at least 1, got %d", maxTableSize)
	}
	if rowSplits == nil {
		rowSplits = ragged.Uniform(int64(len(points) / 3))
	}
	if err := validatePoints("points", points, rowSplits); err != nil {
		return nil, err
	}

	numBatches := len(rowSplits) - 1
	numPoints := int64(len(points) / 3)

	splits := make([]int64, numBatches+1)
	for b := 0; b < numBatches; b++ {
		splits[b+1] = splits[b] + grid.TableSize(rowSplits[b+1]-rowSplits[b], sizeFactor, maxTableSize)
	}
	totalCells := splits[numBatches]

	// slots, index, cell splits and per-batch cursors.
	reserve := 8 * (2*numPoints + 2*totalCells + 1)
	if err := o.controller.AcquireMemory(ctx, reserve); err != nil {
		return nil, err
	}
	defer o.controller.ReleaseMemory(reserve)

	inv := 1 / radius
	slots := make([]int64, numPoints)
	spans := chunkSpans(rowSplits, o.chunkSize)

	if err := o.run(ctx, len(spans), func(i int) {
		s := spans[i]
		size := splits[s.batch+1] - splits[s.batch]
		for p := s.lo; p < s.hi; p++ {
			slots[p] = grid.Slot(grid.CellOf(points[3*p:3*p+3], inv), size)
		}
	}); err != nil {
		return nil, err
	}

	index := make([]int64, numPoints)
	cellSplits := make([]int64, totalCells+1)

	// Each batch writes cellSplits[splits[b]+1 : splits[b+1]+1] and the
	// index range of its own points only.
	if err := o.run(ctx, numBatches, func(b int) {
		base, size := splits[b], splits[b+1]-splits[b]
		ends := cellSplits[base+1 : base+size+1]
		for p := rowSplits[b]; p < rowSplits[b+1]; p++ {
			ends[slots[p]]++
		}

		cursor := make([]int64, size)
		running := rowSplits[b]
		for c := range ends {
			cursor[c] = running
			running += ends[c]
			ends[c] = running
		}

		for p := rowSplits[b]; p < rowSplits[b+1]; p++ {
			c := slots[p]
			index[cursor[c]] = p
			cursor[c]++
		}
	}); err != nil {
		return nil, err
	}

	cells, err := ragged.New(index, cellSplits)
	if err != nil {
		return nil, translateError("hash_table_cell_splits", err)
	}

	return &HashTable{radius: radius, splits: splits, cells: cells}, nil
}
