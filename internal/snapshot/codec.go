package snapshot

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/frnn/distance"
	"github.com/hupe1980/frnn/internal/checksum"
)

// Index is the decoded content of a snapshot.
type Index[T distance.Float] struct {
	BuildID     [16]byte
	Radius      float64
	PointSplits []int64
	Coords      []T
	TableSplits []int64
	CellSplits  []int64
	CellIndex   []int64
}

// Header returns the header describing idx.
func (idx *Index[T]) Header(c Compression) Header {
	return Header{
		Version:     Version,
		Coord:       CoordTypeOf[T](),
		Compression: c,
		Radius:      idx.Radius,
		NumPoints:   int64(len(idx.Coords) / 3),
		NumBatches:  int64(len(idx.PointSplits) - 1),
		NumCells:    int64(len(idx.CellSplits) - 1),
		BuildID:     idx.BuildID,
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Write encodes idx to w and returns the number of bytes written.
//
// Layout: header, then the block-compressed body (point splits, coordinates,
// table splits, cell splits, cell index; all little endian), then the
// CRC32C of the uncompressed body.
func Write[T distance.Float](w io.Writer, idx *Index[T], c Compression) (int64, error) {
	cw := &countingWriter{w: w}

	hdr, _ := idx.Header(c).MarshalBinary()
	if _, err := cw.Write(hdr); err != nil {
		return cw.n, err
	}

	bw := NewBlockWriter(cw, c, DefaultBlockSize)
	crc := checksum.NewWriter(bw)
	e := &encoder{w: crc}

	e.int64s(idx.PointSplits)
	writeFloats(e, idx.Coords)
	e.int64s(idx.TableSplits)
	e.int64s(idx.CellSplits)
	e.int64s(idx.CellIndex)
	if e.err != nil {
		return cw.n, e.err
	}
	if err := bw.Close(); err != nil {
		return cw.n, err
	}

	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], crc.Sum32())
	_, err := cw.Write(trailer[:])
	return cw.n, err
}

// ReadHeader reads and checks the snapshot header.
func ReadHeader(r io.Reader) (Header, error) {
	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Header{}, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	var h Header
	if err := h.UnmarshalBinary(b[:]); err != nil {
		return Header{}, err
	}
	return h, nil
}

// ReadBody decodes the body following hdr. It fails with a *CoordTypeError
// if T does not match the stored coordinate type.
func ReadBody[T distance.Float](r io.Reader, hdr Header) (*Index[T], error) {
	if want := CoordTypeOf[T](); hdr.Coord != want {
		return nil, &CoordTypeError{Stored: hdr.Coord, Want: want}
	}

	br := NewBlockReader(r, hdr.Compression, 2*DefaultBlockSize)
	crc := checksum.NewReader(br)
	d := &decoder{r: crc}

	idx := &Index[T]{BuildID: hdr.BuildID, Radius: hdr.Radius}
	idx.PointSplits = d.int64s(hdr.NumBatches + 1)
	idx.Coords = readFloats[T](d, 3*hdr.NumPoints)
	idx.TableSplits = d.int64s(hdr.NumBatches + 1)
	idx.CellSplits = d.int64s(hdr.NumCells + 1)
	idx.CellIndex = d.int64s(hdr.NumPoints)
	if d.err != nil {
		return nil, d.err
	}

	if err := expectEOF(br); err != nil {
		return nil, err
	}
	if err := verify(r, crc.Sum32()); err != nil {
		return nil, err
	}
	return idx, nil
}

// Read decodes a complete snapshot.
func Read[T distance.Float](r io.Reader) (*Index[T], error) {
	hdr, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	return ReadBody[T](r, hdr)
}

func expectEOF(br *BlockReader) error {
	var b [1]byte
	n, err := br.Read(b[:])
	if n > 0 {
		return fmt.Errorf("%w: trailing body data", ErrCorrupt)
	}
	if err != io.EOF {
		return err
	}
	return nil
}

func verify(r io.Reader, sum uint32) error {
	var trailer [4]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return fmt.Errorf("%w: checksum: %v", ErrCorrupt, err)
	}
	if binary.LittleEndian.Uint32(trailer[:]) != sum {
		return ErrChecksum
	}
	return nil
}

const scratchSize = 64 * 1024

type encoder struct {
	w       io.Writer
	scratch [scratchSize]byte
	err     error
}

func (e *encoder) int64s(v []int64) {
	for len(v) > 0 && e.err == nil {
		n := min(len(v), scratchSize/8)
		for i, x := range v[:n] {
			binary.LittleEndian.PutUint64(e.scratch[8*i:], uint64(x))
		}
		_, e.err = e.w.Write(e.scratch[:8*n])
		v = v[n:]
	}
}

func writeFloats[T distance.Float](e *encoder, v []T) {
	if CoordTypeOf[T]() == CoordFloat32 {
		for len(v) > 0 && e.err == nil {
			n := min(len(v), scratchSize/4)
			for i, x := range v[:n] {
				binary.LittleEndian.PutUint32(e.scratch[4*i:], math.Float32bits(float32(x)))
			}
			_, e.err = e.w.Write(e.scratch[:4*n])
			v = v[n:]
		}
		return
	}
	for len(v) > 0 && e.err == nil {
		n := min(len(v), scratchSize/8)
		for i, x := range v[:n] {
			binary.LittleEndian.PutUint64(e.scratch[8*i:], math.Float64bits(float64(x)))
		}
		_, e.err = e.w.Write(e.scratch[:8*n])
		v = v[n:]
	}
}

type decoder struct {
	r       io.Reader
	scratch [scratchSize]byte
	err     error
}

func (d *decoder) fill(n int) []byte {
	if d.err != nil {
		return nil
	}
	if _, err := io.ReadFull(d.r, d.scratch[:n]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = fmt.Errorf("%w: body truncated", ErrCorrupt)
		}
		d.err = err
		return nil
	}
	return d.scratch[:n]
}

func (d *decoder) int64s(count int64) []int64 {
	v := make([]int64, count)
	for off := 0; off < len(v) && d.err == nil; {
		n := min(len(v)-off, scratchSize/8)
		b := d.fill(8 * n)
		for i := 0; i < len(b)/8; i++ {
			v[off+i] = int64(binary.LittleEndian.Uint64(b[8*i:]))
		}
		off += n
	}
	return v
}

func readFloats[T distance.Float](d *decoder, count int64) []T {
	v := make([]T, count)
	if CoordTypeOf[T]() == CoordFloat32 {
		for off := 0; off < len(v) && d.err == nil; {
			n := min(len(v)-off, scratchSize/4)
			b := d.fill(4 * n)
			for i := 0; i < len(b)/4; i++ {
				v[off+i] = T(math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:])))
			}
			off += n
		}
		return v
	}
	for off := 0; off < len(v) && d.err == nil; {
		n := min(len(v)-off, scratchSize/8)
		b := d.fill(8 * n)
		for i := 0; i < len(b)/8; i++ {
			v[off+i] = T(math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:])))
		}
		off += n
	}
	return v
}
