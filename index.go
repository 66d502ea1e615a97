package frnn

import (
	"context"

	"github.com/google/uuid"
)

// SpatialIndex couples a point set with the hash table built over it.
// It is immutable and may be searched concurrently.
//
// The index aliases the coordinate and row split slices it was built from;
// callers must not modify them afterwards.
type SpatialIndex[T Float] struct {
	id     uuid.UUID
	points PointSet[T]
	table  *HashTable
	opts   []Option
}

// NewSpatialIndex builds an index over points with the default table sizing.
// The options are also applied to every search on the index.
func NewSpatialIndex[T Float](ctx context.Context, points PointSet[T], radius float64, optFns ...Option) (*SpatialIndex[T], error) {
	return NewIndex[T]().Radius(radius).Build(ctx, points, optFns...)
}

func newSpatialIndex[T Float](id uuid.UUID, points PointSet[T], table *HashTable, optFns []Option) *SpatialIndex[T] {
	return &SpatialIndex[T]{
		id:     id,
		points: PointSet[T]{Coords: points.Coords, RowSplits: points.Splits()},
		table:  table,
		opts:   optFns,
	}
}

// ID returns the build id. It is preserved by snapshots.
func (idx *SpatialIndex[T]) ID() uuid.UUID { return idx.id }

// Radius returns the radius the index was built for.
func (idx *SpatialIndex[T]) Radius() float64 { return idx.table.Radius() }

// Points returns the indexed point set.
func (idx *SpatialIndex[T]) Points() PointSet[T] { return idx.points }

// Table returns the underlying hash table.
func (idx *SpatialIndex[T]) Table() *HashTable { return idx.table }

// NumPoints returns the number of indexed points.
func (idx *SpatialIndex[T]) NumPoints() int { return idx.points.Len() }

// NumBatches returns the number of batches.
func (idx *SpatialIndex[T]) NumBatches() int { return idx.points.NumBatches() }

// options merges the index options with call-specific ones.
func (idx *SpatialIndex[T]) options(optFns []Option) options {
	all := make([]Option, 0, len(idx.opts)+len(optFns))
	all = append(all, idx.opts...)
	all = append(all, optFns...)
	return applyOptions(all)
}
