package frnn

import (
	"context"

	"github.com/google/uuid"
)

// IndexBuilder is an immutable fluent builder for SpatialIndex.
// Each method returns a new builder with the updated configuration.
//
// Example:
//
//	idx, err := frnn.NewIndex[float32]().
//	    Radius(0.5).
//	    SizeFactor(1.0 / 32).
//	    Build(ctx, frnn.NewPointSet(coords, splits))
type IndexBuilder[T Float] struct {
	radius       float64
	sizeFactor   float64
	maxTableSize int64
	id           uuid.UUID
}

// NewIndex creates a builder with DefaultSizeFactor and DefaultMaxTableSize.
// The radius has no default and must be set.
func NewIndex[T Float]() IndexBuilder[T] {
	return IndexBuilder[T]{
		sizeFactor:   DefaultSizeFactor,
		maxTableSize: DefaultMaxTableSize,
	}
}

// Radius sets the search radius, which is also the grid cell side.
func (b IndexBuilder[T]) Radius(r float64) IndexBuilder[T] {
	b.radius = r
	return b
}

// SizeFactor sets the ratio of hash table cells to points per batch.
// Default: 1/64.
func (b IndexBuilder[T]) SizeFactor(f float64) IndexBuilder[T] {
	b.sizeFactor = f
	return b
}

// MaxTableSize caps the number of cells of a single batch.
// Default: 32*2^20.
func (b IndexBuilder[T]) MaxTableSize(n int64) IndexBuilder[T] {
	b.maxTableSize = n
	return b
}

// ID sets the build id instead of generating a random one.
func (b IndexBuilder[T]) ID(id uuid.UUID) IndexBuilder[T] {
	b.id = id
	return b
}

// Build hashes points and returns the index. The options also apply to
// searches on the returned index.
func (b IndexBuilder[T]) Build(ctx context.Context, points PointSet[T], optFns ...Option) (*SpatialIndex[T], error) {
	table, err := BuildSpatialHashTable(ctx, points.Coords, b.radius, points.RowSplits, b.sizeFactor, b.maxTableSize, optFns...)
	if err != nil {
		return nil, err
	}

	id := b.id
	if id == uuid.Nil {
		id = uuid.New()
	}

	return newSpatialIndex(id, points, table, optFns), nil
}
