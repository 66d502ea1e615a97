package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unsafe"

	"github.com/hupe1980/frnn/distance"
	"github.com/hupe1980/frnn/internal/conv"
)

// Magic identifies a spatial index snapshot.
const Magic = "FRNN"

// Version is the current format version.
const Version uint16 = 1

// maxCount bounds the element counts a header may declare.
const maxCount = 1 << 40

// HeaderSize is the encoded size of Header.
const HeaderSize = 56

var (
	// ErrBadMagic means the blob is not a snapshot.
	ErrBadMagic = errors.New("snapshot: bad magic")
	// ErrUnsupportedVersion means the snapshot was written by a newer format.
	ErrUnsupportedVersion = errors.New("snapshot: unsupported version")
	// ErrChecksum means the body does not match its CRC32C trailer.
	ErrChecksum = errors.New("snapshot: checksum mismatch")
	// ErrCorrupt means the snapshot is truncated or malformed.
	ErrCorrupt = errors.New("snapshot: corrupt")
)

// CoordType tags the coordinate type of a snapshot.
type CoordType uint8

const (
	CoordFloat32 CoordType = 1
	CoordFloat64 CoordType = 2
)

func (c CoordType) String() string {
	switch c {
	case CoordFloat32:
		return "float32"
	case CoordFloat64:
		return "float64"
	default:
		return fmt.Sprintf("CoordType(%d)", uint8(c))
	}
}

// CoordTypeOf returns the tag of T.
func CoordTypeOf[T distance.Float]() CoordType {
	if unsafe.Sizeof(T(0)) == 4 {
		return CoordFloat32
	}
	return CoordFloat64
}

// CoordTypeError is returned when a snapshot is read with a coordinate type
// other than the one it was written with.
type CoordTypeError struct {
	Stored CoordType
	Want   CoordType
}

func (e *CoordTypeError) Error() string {
	return fmt.Sprintf("snapshot: stored coordinates are %s, want %s", e.Stored, e.Want)
}

// Header is the fixed-size snapshot prefix.
//
//	magic[4] version u16 coord u8 compression u8 radius f64
//	points i64 batches i64 cells i64 build_id[16]
type Header struct {
	Version     uint16
	Coord       CoordType
	Compression Compression
	Radius      float64
	NumPoints   int64
	NumBatches  int64
	NumCells    int64
	BuildID     [16]byte
}

// MarshalBinary encodes the header.
func (h Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)
	copy(b[0:4], Magic)
	binary.LittleEndian.PutUint16(b[4:], h.Version)
	b[6] = byte(h.Coord)
	b[7] = byte(h.Compression)
	binary.LittleEndian.PutUint64(b[8:], math.Float64bits(h.Radius))
	binary.LittleEndian.PutUint64(b[16:], uint64(h.NumPoints))
	binary.LittleEndian.PutUint64(b[24:], uint64(h.NumBatches))
	binary.LittleEndian.PutUint64(b[32:], uint64(h.NumCells))
	copy(b[40:56], h.BuildID[:])
	return b, nil
}

// UnmarshalBinary decodes and sanity checks the header.
func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: header of %d bytes", ErrCorrupt, len(b))
	}
	if string(b[0:4]) != Magic {
		return ErrBadMagic
	}

	h.Version = binary.LittleEndian.Uint16(b[4:])
	if h.Version == 0 || h.Version > Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	h.Coord = CoordType(b[6])
	h.Compression = Compression(b[7])
	h.Radius = math.Float64frombits(binary.LittleEndian.Uint64(b[8:]))
	for i, dst := range []*int64{&h.NumPoints, &h.NumBatches, &h.NumCells} {
		v, err := conv.Uint64ToInt64(binary.LittleEndian.Uint64(b[16+8*i:]))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		*dst = v
	}
	copy(h.BuildID[:], b[40:56])

	switch {
	case h.Coord != CoordFloat32 && h.Coord != CoordFloat64:
		return fmt.Errorf("%w: coordinate type %d", ErrCorrupt, h.Coord)
	case h.Compression > CompressionZSTD:
		return fmt.Errorf("%w: compression %d", ErrCorrupt, h.Compression)
	case h.NumPoints < 0 || h.NumBatches < 0 || h.NumCells < h.NumBatches,
		h.NumBatches == 0 && (h.NumPoints != 0 || h.NumCells != 0),
		h.NumPoints > maxCount || h.NumCells > maxCount:
		return fmt.Errorf("%w: counts points=%d batches=%d cells=%d", ErrCorrupt, h.NumPoints, h.NumBatches, h.NumCells)
	}
	return nil
}

// BodySize returns the uncompressed body size in bytes for coordinates of
// coordSize bytes.
func (h Header) BodySize(coordSize int64) int64 {
	return 8*(2*(h.NumBatches+1)+h.NumCells+1+h.NumPoints) + 3*h.NumPoints*coordSize
}
