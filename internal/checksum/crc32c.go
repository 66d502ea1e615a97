package checksum

import (
	"hash"
	"hash/crc32"
	"io"
)

// table is computed once for the Castagnoli polynomial.
var table = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, table)
}

// New returns a streaming CRC32C hash.
func New() hash.Hash32 {
	return crc32.New(table)
}

// Writer forwards writes to an underlying writer and checksums every byte
// that was written successfully.
type Writer struct {
	w io.Writer
	h hash.Hash32
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, h: New()}
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.h.Write(p[:n])
	return n, err
}

// Sum32 returns the checksum of everything written so far.
func (w *Writer) Sum32() uint32 { return w.h.Sum32() }

// Reader checksums every byte read from an underlying reader.
type Reader struct {
	r io.Reader
	h hash.Hash32
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, h: New()}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.h.Write(p[:n])
	return n, err
}

// Sum32 returns the checksum of everything read so far.
func (r *Reader) Sum32() uint32 { return r.h.Sum32() }
