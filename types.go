package frnn

import (
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/frnn/distance"
	"github.com/hupe1980/frnn/ragged"
)

// Float is the set of supported coordinate types.
type Float = distance.Float

// Integer is the set of supported neighbor index widths.
type Integer interface {
	~int32 | ~int64
}

// Metric selects the distance used by radius search.
type Metric = distance.Metric

// Supported metrics.
const (
	MetricL2   = distance.MetricL2
	MetricL1   = distance.MetricL1
	MetricLinf = distance.MetricLinf
)

// ParseMetric resolves one of the literal tags "L1", "L2" or "Linf".
// Any other tag fails with a *ValidationError.
func ParseMetric(tag string) (Metric, error) {
	m, err := distance.ParseMetric(tag)
	if err != nil {
		return 0, translateError("metric", err)
	}
	return m, nil
}

// IndexWidth is a runtime tag for the integer type of neighbor indices.
type IndexWidth int

const (
	IndexInt32 IndexWidth = 32
	IndexInt64 IndexWidth = 64
)

func (w IndexWidth) String() string {
	switch w {
	case IndexInt32:
		return "int32"
	case IndexInt64:
		return "int64"
	default:
		return fmt.Sprintf("int%d", int(w))
	}
}

// ParseIndexWidth resolves "int32" or "int64".
func ParseIndexWidth(tag string) (IndexWidth, error) {
	switch strings.ToLower(tag) {
	case "int32":
		return IndexInt32, nil
	case "int64":
		return IndexInt64, nil
	default:
		return 0, &UnsupportedTypeError{Type: tag, Reason: "index width must be int32 or int64"}
	}
}

// Precision is a runtime tag for the coordinate type.
type Precision int

const (
	Float32 Precision = 32
	Float64 Precision = 64
)

func (p Precision) String() string {
	switch p {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("float%d", int(p))
	}
}

// ParsePrecision resolves "float32" or "float64".
func ParsePrecision(tag string) (Precision, error) {
	switch strings.ToLower(tag) {
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	default:
		return 0, &UnsupportedTypeError{Type: tag, Reason: "coordinate precision must be float32 or float64"}
	}
}

func typeName[E any]() string {
	return fmt.Sprintf("%T", *new(E))
}

// maxIndex returns the largest value representable by I.
func maxIndex[I Integer]() int64 {
	m := I(math.MaxInt32)
	if m+1 < m {
		return math.MaxInt32
	}
	return math.MaxInt64
}

// PointSet is a batched set of 3-D points: a flat coordinate buffer
// (x0, y0, z0, x1, ...) and the row splits partitioning the points into
// batches. A nil RowSplits means a single batch holding every point.
type PointSet[T Float] struct {
	Coords    []T
	RowSplits []int64
}

// NewPointSet returns a PointSet over coords and rowSplits without copying.
func NewPointSet[T Float](coords []T, rowSplits []int64) PointSet[T] {
	return PointSet[T]{Coords: coords, RowSplits: rowSplits}
}

// Len returns the number of points.
func (ps PointSet[T]) Len() int {
	return len(ps.Coords) / 3
}

// NumBatches returns the number of batches.
func (ps PointSet[T]) NumBatches() int {
	if ps.RowSplits == nil {
		return 1
	}
	return len(ps.RowSplits) - 1
}

// Point returns point i as a three-element slice aliasing Coords.
func (ps PointSet[T]) Point(i int) []T {
	return ps.Coords[3*i : 3*i+3 : 3*i+3]
}

// Splits returns the row splits, defaulting to a single batch.
func (ps PointSet[T]) Splits() []int64 {
	if ps.RowSplits == nil {
		return ragged.Uniform(int64(ps.Len()))
	}
	return ps.RowSplits
}

// validatePoints checks the coordinate buffer and its row splits.
// arg prefixes the argument names used in errors ("points" or "queries").
func validatePoints[T Float](arg string, coords []T, splits []int64) error {
	if len(coords)%3 != 0 {
		return invalid(arg, "coordinate count %d is not a multiple of 3", len(coords))
	}
	for i, c := range coords {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return invalid(arg, "point %d has non-finite coordinate %v", i/3, f)
		}
	}
	if err := ragged.ValidateSplits(splits, int64(len(coords)/3)); err != nil {
		return translateError(arg+"_row_splits", err)
	}
	return nil
}

func validateRadius(radius float64) error {
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius <= 0 {
		return invalid("radius", "must be a positive finite number, got %v", radius)
	}
	return nil
}
