package pointio

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/hupe1980/frnn"
	"github.com/hupe1980/frnn/ragged"
)

// rowBatchSize is the number of rows moved per Read or Write call.
const rowBatchSize = 8192

// ErrUnsortedBatches is returned when point rows are not grouped by
// ascending batch number.
var ErrUnsortedBatches = errors.New("pointio: rows are not sorted by batch")

// PointRow is the Parquet row of a single point.
type PointRow struct {
	Batch int64   `parquet:"batch"`
	X     float64 `parquet:"x"`
	Y     float64 `parquet:"y"`
	Z     float64 `parquet:"z"`
}

// Codec returns the Parquet codec for name ("zstd", "snappy", "gzip", "lz4"
// or "none"). Unknown names fall back to zstd.
func Codec(name string) compress.Codec {
	switch strings.ToLower(name) {
	case "snappy":
		return &parquet.Snappy
	case "gzip":
		return &parquet.Gzip
	case "lz4":
		return &parquet.Lz4Raw
	case "none", "uncompressed":
		return &parquet.Uncompressed
	default:
		return &parquet.Zstd
	}
}

// WritePoints writes ps to w. A nil codec selects zstd.
func WritePoints[T frnn.Float](w io.Writer, ps frnn.PointSet[T], codec compress.Codec) error {
	if codec == nil {
		codec = &parquet.Zstd
	}
	pw := parquet.NewGenericWriter[PointRow](w, parquet.Compression(codec))

	splits := ps.Splits()
	rows := make([]PointRow, 0, min(rowBatchSize, ps.Len()))
	for b := 0; b+1 < len(splits); b++ {
		for i := splits[b]; i < splits[b+1]; i++ {
			p := ps.Point(int(i))
			rows = append(rows, PointRow{Batch: int64(b), X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])})
			if len(rows) == cap(rows) {
				if _, err := pw.Write(rows); err != nil {
					return fmt.Errorf("pointio: write points: %w", err)
				}
				rows = rows[:0]
			}
		}
	}
	if len(rows) > 0 {
		if _, err := pw.Write(rows); err != nil {
			return fmt.Errorf("pointio: write points: %w", err)
		}
	}

	if err := pw.Close(); err != nil {
		return fmt.Errorf("pointio: close writer: %w", err)
	}
	return nil
}

// ReadPoints reads a point file written by WritePoints or any file with the
// same columns. Batch numbers that do not occur become empty batches, so
// numBatches can be larger than the largest batch number plus one. With
// numBatches <= 0 the batch count is derived from the data.
func ReadPoints[T frnn.Float](r io.ReaderAt, size int64, numBatches int) (frnn.PointSet[T], error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return frnn.PointSet[T]{}, fmt.Errorf("pointio: open points: %w", err)
	}

	pr := parquet.NewGenericReader[PointRow](pf)
	defer pr.Close()

	coords := make([]T, 0, 3*pr.NumRows())
	counts := make([]int64, 0, max(numBatches, 1))

	buf := make([]PointRow, rowBatchSize)
	for {
		n, err := pr.Read(buf)
		for _, row := range buf[:n] {
			switch {
			case row.Batch < 0:
				return frnn.PointSet[T]{}, fmt.Errorf("%w: negative batch %d", ErrUnsortedBatches, row.Batch)
			case row.Batch < int64(len(counts))-1:
				return frnn.PointSet[T]{}, fmt.Errorf("%w: batch %d after batch %d", ErrUnsortedBatches, row.Batch, len(counts)-1)
			}
			for int64(len(counts)) <= row.Batch {
				counts = append(counts, 0)
			}
			counts[row.Batch]++
			coords = append(coords, T(row.X), T(row.Y), T(row.Z))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return frnn.PointSet[T]{}, fmt.Errorf("pointio: read points: %w", err)
		}
	}

	if numBatches > 0 {
		if len(counts) > numBatches {
			return frnn.PointSet[T]{}, fmt.Errorf("pointio: batch %d exceeds batch count %d", len(counts)-1, numBatches)
		}
		for len(counts) < numBatches {
			counts = append(counts, 0)
		}
	}
	if len(counts) == 0 {
		counts = append(counts, 0)
	}

	return frnn.NewPointSet(coords, ragged.SplitsFromCounts(counts)), nil
}
