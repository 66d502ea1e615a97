// Package checksum provides the CRC32-Castagnoli (CRC32C) checksums used by
// index snapshots and blob uploads.
//
// Go's hash/crc32 uses hardware instructions for this polynomial on x86
// (SSE4.2) and ARM64, so streaming a snapshot through a checksum Writer or
// Reader costs little next to the compression.
//
// For one-shot checksums:
//
//	sum := checksum.CRC32C(data)
//
// For streams:
//
//	w := checksum.NewWriter(dst)
//	w.Write(chunk)
//	sum := w.Sum32()
package checksum
