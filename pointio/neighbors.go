package pointio

import (
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/hupe1980/frnn"
	"github.com/hupe1980/frnn/ragged"
)

// NeighborRow is the Parquet row of a single (query, neighbor) pair.
// Distance is null when the search did not return distances. MetricL2
// distances are squared.
type NeighborRow struct {
	Query    int64    `parquet:"query"`
	Neighbor int64    `parquet:"neighbor"`
	Distance *float64 `parquet:"distance,optional"`
}

// Neighbors is a search result read back from a neighbor file.
type Neighbors struct {
	RowSplits []int64
	Index     []int64
	Distances []float64 // nil if the file has no distances
}

// Row returns the neighbors of query q.
func (n *Neighbors) Row(q int) []int64 {
	return n.Index[n.RowSplits[q]:n.RowSplits[q+1]]
}

// WriteNeighbors writes res to w, one row per neighbor in result order.
// A nil codec selects zstd.
func WriteNeighbors[T frnn.Float, I frnn.Integer](w io.Writer, res *frnn.Result[T, I], codec compress.Codec) error {
	if codec == nil {
		codec = &parquet.Zstd
	}
	pw := parquet.NewGenericWriter[NeighborRow](w, parquet.Compression(codec))

	rs := res.NeighborsRowSplits()
	index := res.NeighborsIndex()
	dist := res.NeighborsDistance()
	withDist := len(dist) == len(index) && len(index) > 0

	rows := make([]NeighborRow, 0, min(rowBatchSize, len(index)))
	for q := 0; q+1 < len(rs); q++ {
		for k := rs[q]; k < rs[q+1]; k++ {
			row := NeighborRow{Query: int64(q), Neighbor: int64(index[k])}
			if withDist {
				d := float64(dist[k])
				row.Distance = &d
			}
			rows = append(rows, row)
			if len(rows) == cap(rows) {
				if _, err := pw.Write(rows); err != nil {
					return fmt.Errorf("pointio: write neighbors: %w", err)
				}
				rows = rows[:0]
			}
		}
	}
	if len(rows) > 0 {
		if _, err := pw.Write(rows); err != nil {
			return fmt.Errorf("pointio: write neighbors: %w", err)
		}
	}

	if err := pw.Close(); err != nil {
		return fmt.Errorf("pointio: close writer: %w", err)
	}
	return nil
}

// ReadNeighbors reads a neighbor file for numQueries queries. Queries
// without rows get empty neighbor lists. Rows must be sorted by query.
func ReadNeighbors(r io.ReaderAt, size int64, numQueries int) (*Neighbors, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("pointio: open neighbors: %w", err)
	}

	pr := parquet.NewGenericReader[NeighborRow](pf)
	defer pr.Close()

	counts := make([]int64, numQueries)
	index := make([]int64, 0, pr.NumRows())
	var distances []float64
	last := int64(0)

	buf := make([]NeighborRow, rowBatchSize)
	for {
		n, err := pr.Read(buf)
		for _, row := range buf[:n] {
			if row.Query < last || row.Query >= int64(numQueries) {
				return nil, fmt.Errorf("pointio: query %d out of order or out of range [0, %d)", row.Query, numQueries)
			}
			last = row.Query
			counts[row.Query]++
			index = append(index, row.Neighbor)
			if row.Distance != nil {
				if distances == nil {
					distances = make([]float64, len(index)-1, cap(index))
				}
				distances = append(distances, *row.Distance)
			} else if distances != nil {
				distances = append(distances, 0)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("pointio: read neighbors: %w", err)
		}
	}

	return &Neighbors{
		RowSplits: ragged.SplitsFromCounts(counts),
		Index:     index,
		Distances: distances,
	}, nil
}
