// Package grid maps 3-D coordinates onto a uniform grid of cubical cells and
// hashes cell coordinates into a bounded per-batch table.
package grid

import (
	"math"

	"github.com/hupe1980/frnn/distance"
)

// Multipliers of the XOR spatial hash (Teschner et al.).
const (
	primeX uint64 = 73856093
	primeY uint64 = 19349663
	primeZ uint64 = 83492791
)

// maxCoord bounds cell coordinates so the float-to-int conversion stays
// defined for very large (but finite) positions.
const maxCoord = 1 << 52

// Cell is an integer cell coordinate.
type Cell struct {
	X, Y, Z int64
}

// Add returns the cell displaced by o.
func (c Cell) Add(o Cell) Cell {
	return Cell{X: c.X + o.X, Y: c.Y + o.Y, Z: c.Z + o.Z}
}

// Neighborhood lists the 27 offsets of the 3x3x3 block centered on a cell,
// in x-fastest order.
var Neighborhood = func() [27]Cell {
	var n [27]Cell
	i := 0
	for dz := int64(-1); dz <= 1; dz++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dx := int64(-1); dx <= 1; dx++ {
				n[i] = Cell{X: dx, Y: dy, Z: dz}
				i++
			}
		}
	}
	return n
}()

// CellOf returns the cell holding point p (the first three values of p).
// invCellSize is 1/cellSize; builders and searchers must pass the same value.
func CellOf[T distance.Float](p []T, invCellSize float64) Cell {
	return Cell{
		X: coord(float64(p[0]) * invCellSize),
		Y: coord(float64(p[1]) * invCellSize),
		Z: coord(float64(p[2]) * invCellSize),
	}
}

func coord(v float64) int64 {
	f := math.Floor(v)
	if f > maxCoord {
		return maxCoord
	}
	if f < -maxCoord {
		return -maxCoord
	}
	return int64(f)
}

// Slot hashes c into [0, tableSize). tableSize must be positive.
func Slot(c Cell, tableSize int64) int64 {
	h := uint64(c.X)*primeX ^ uint64(c.Y)*primeY ^ uint64(c.Z)*primeZ
	return int64(h % uint64(tableSize))
}

// NeighborSlots writes the distinct slots of the 27 cells around c into dst
// and returns the filled prefix. Cells that collide into the same slot are
// reported once, so a caller scanning the returned slots never visits a
// point twice. Slots appear in Neighborhood order of their first occurrence.
func NeighborSlots(c Cell, tableSize int64, dst *[27]int64) []int64 {
	n := 0
outer:
	for _, off := range Neighborhood {
		s := Slot(c.Add(off), tableSize)
		for _, seen := range dst[:n] {
			if seen == s {
				continue outer
			}
		}
		dst[n] = s
		n++
	}
	return dst[:n]
}

// TableSize returns the hash table size for a batch of n points:
// round(n*factor) clamped to [1, maxSize].
func TableSize(n int64, factor float64, maxSize int64) int64 {
	// Clamp before converting: int64 conversion of an out-of-range float is
	// implementation defined.
	size := math.Round(float64(n) * factor)
	if size >= float64(maxSize) {
		return max(maxSize, 1)
	}
	if size < 1 {
		return 1
	}
	return int64(size)
}
