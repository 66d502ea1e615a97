package snapshot

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIndex() *Index[float32] {
	return &Index[float32]{
		BuildID:     [16]byte{1, 2, 3, 4},
		Radius:      0.5,
		PointSplits: []int64{0, 2, 3},
		Coords:      []float32{0, 0, 0, 0.25, 0, 0, 7, 8, 9},
		TableSplits: []int64{0, 2, 3},
		CellSplits:  []int64{0, 1, 2, 3},
		CellIndex:   []int64{1, 0, 2},
	}
}

func TestWriteRead(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			idx := sampleIndex()

			var buf bytes.Buffer
			n, err := Write(&buf, idx, c)
			require.NoError(t, err)
			assert.Equal(t, int64(buf.Len()), n)

			got, err := Read[float32](&buf)
			require.NoError(t, err)
			assert.Equal(t, idx, got)
		})
	}
}

func TestWriteRead_Float64(t *testing.T) {
	idx := &Index[float64]{
		Radius:      2,
		PointSplits: []int64{0, 1},
		Coords:      []float64{1.5, -2.25, 1e300},
		TableSplits: []int64{0, 1},
		CellSplits:  []int64{0, 1},
		CellIndex:   []int64{0},
	}

	var buf bytes.Buffer
	_, err := Write(&buf, idx, CompressionZSTD)
	require.NoError(t, err)

	got, err := Read[float64](&buf)
	require.NoError(t, err)
	assert.Equal(t, idx, got)
}

func TestRead_CoordTypeMismatch(t *testing.T) {
	var buf bytes.Buffer
	_, err := Write(&buf, sampleIndex(), CompressionLZ4)
	require.NoError(t, err)

	_, err = Read[float64](&buf)
	var ct *CoordTypeError
	require.True(t, errors.As(err, &ct))
	assert.Equal(t, CoordFloat32, ct.Stored)
	assert.Equal(t, CoordFloat64, ct.Want)
}

func TestRead_Corruption(t *testing.T) {
	var buf bytes.Buffer
	_, err := Write(&buf, sampleIndex(), CompressionNone)
	require.NoError(t, err)
	data := buf.Bytes()

	t.Run("BadMagic", func(t *testing.T) {
		b := bytes.Clone(data)
		b[0] = 'X'
		_, err := Read[float32](bytes.NewReader(b))
		assert.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("FutureVersion", func(t *testing.T) {
		b := bytes.Clone(data)
		b[4] = 99
		_, err := Read[float32](bytes.NewReader(b))
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("FlippedBodyByte", func(t *testing.T) {
		b := bytes.Clone(data)
		// First byte of the coordinates in the only uncompressed block.
		b[HeaderSize+blockHeaderSize+3*8] ^= 0xff
		_, err := Read[float32](bytes.NewReader(b))
		assert.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := Read[float32](bytes.NewReader(data[:len(data)-2]))
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("ShortHeader", func(t *testing.T) {
		_, err := Read[float32](bytes.NewReader(data[:10]))
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestHeader_Counts(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(h *Header)
		wantErr bool
	}{
		{"Sample", func(*Header) {}, false},
		{"NoBatches", func(h *Header) { h.NumPoints, h.NumBatches, h.NumCells = 0, 0, 0 }, false},
		{"FewerCellsThanBatches", func(h *Header) { h.NumCells = 0 }, true},
		{"PointsWithoutBatches", func(h *Header) { h.NumBatches, h.NumCells = 0, 0 }, true},
		{"CellsWithoutBatches", func(h *Header) { h.NumPoints, h.NumBatches = 0, 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := sampleIndex().Header(CompressionNone)
			tt.mutate(&h)

			b, err := h.MarshalBinary()
			require.NoError(t, err)

			var got Header
			err = got.UnmarshalBinary(b)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCorrupt)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, h, got)
		})
	}
}

func TestHeader_BodySize(t *testing.T) {
	h := sampleIndex().Header(CompressionNone)
	// 3+3 splits, 4 cell splits, 3 index entries, 9 float32 coordinates.
	assert.Equal(t, int64(8*(3+3+4+3)+4*9), h.BodySize(4))
}
