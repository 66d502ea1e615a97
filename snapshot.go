package frnn

import (
	"bufio"
	"context"
	"fmt"
	"time"
	"unsafe"

	"github.com/google/uuid"

	"github.com/hupe1980/frnn/blobstore"
	"github.com/hupe1980/frnn/internal/snapshot"
)

// Snapshot errors. A failed LoadIndex wraps one of them unless the store
// itself failed or the coordinate type does not match.
var (
	ErrNotSnapshot      = snapshot.ErrBadMagic
	ErrSnapshotVersion  = snapshot.ErrUnsupportedVersion
	ErrSnapshotChecksum = snapshot.ErrChecksum
	ErrSnapshotCorrupt  = snapshot.ErrCorrupt
)

const ioBufferSize = 1 << 20

// SaveIndex writes idx to store under name. The blob only becomes visible
// once the snapshot has been written completely.
//
// Writes are throttled by the I/O limit of the resource controller, if any.
func SaveIndex[T Float](ctx context.Context, store blobstore.BlobStore, name string, idx *SpatialIndex[T], optFns ...Option) (err error) {
	o := idx.options(optFns)

	start := time.Now()
	var written int64
	defer func() {
		o.metricsCollector.RecordSnapshot("save", written, time.Since(start), err)
		o.logger.LogSnapshot(ctx, "save", name, written, err)
	}()

	if o.compression > CompressionZSTD {
		return invalid("compression", "unknown compression %v", o.compression)
	}

	w, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("frnn: create snapshot %s: %w", name, err)
	}

	bw := bufio.NewWriterSize(o.controller.LimitWriter(ctx, w), ioBufferSize)
	written, err = snapshot.Write(bw, &snapshot.Index[T]{
		BuildID:     [16]byte(idx.id),
		Radius:      idx.table.radius,
		PointSplits: idx.points.RowSplits,
		Coords:      idx.points.Coords,
		TableSplits: idx.table.splits,
		CellSplits:  idx.table.CellSplits(),
		CellIndex:   idx.table.Index(),
	}, o.compression)
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		if a, ok := w.(blobstore.Abortable); ok {
			_ = a.Abort()
		} else {
			_ = w.Close()
		}
		return fmt.Errorf("frnn: write snapshot %s: %w", name, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("frnn: commit snapshot %s: %w", name, err)
	}
	return nil
}

// LoadIndex reads the snapshot stored under name. The memory for the decoded
// arrays is admitted against the resource controller's limit before it is
// allocated.
//
// A snapshot written with a different coordinate type fails with an
// *UnsupportedTypeError; a damaged snapshot fails with an error wrapping
// ErrSnapshotCorrupt, ErrSnapshotChecksum, ErrNotSnapshot or
// ErrSnapshotVersion. The options apply to searches on the loaded index.
func LoadIndex[T Float](ctx context.Context, store blobstore.BlobStore, name string, optFns ...Option) (idx *SpatialIndex[T], err error) {
	o := applyOptions(optFns)

	start := time.Now()
	var size int64
	defer func() {
		o.metricsCollector.RecordSnapshot("load", size, time.Since(start), err)
		o.logger.LogSnapshot(ctx, "load", name, size, err)
	}()

	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("frnn: open snapshot %s: %w", name, err)
	}
	defer blob.Close()
	size = blob.Size()

	rc, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return nil, fmt.Errorf("frnn: read snapshot %s: %w", name, err)
	}
	defer rc.Close()

	r := bufio.NewReaderSize(o.controller.LimitReader(ctx, rc), ioBufferSize)

	hdr, err := snapshot.ReadHeader(r)
	if err != nil {
		return nil, fmt.Errorf("frnn: read snapshot %s: %w", name, err)
	}
	if want := snapshot.CoordTypeOf[T](); hdr.Coord != want {
		return nil, translateError("snapshot", &snapshot.CoordTypeError{Stored: hdr.Coord, Want: want})
	}

	reserve := hdr.BodySize(int64(unsafe.Sizeof(T(0))))
	if err := o.controller.AcquireMemory(ctx, reserve); err != nil {
		return nil, err
	}
	defer o.controller.ReleaseMemory(reserve)

	s, err := snapshot.ReadBody[T](r, hdr)
	if err != nil {
		return nil, fmt.Errorf("frnn: read snapshot %s: %w", name, err)
	}

	if err := validatePoints("points", s.Coords, s.PointSplits); err != nil {
		return nil, fmt.Errorf("frnn: snapshot %s: %w: %w", name, ErrSnapshotCorrupt, err)
	}
	table, err := NewHashTable(s.Radius, s.TableSplits, s.CellIndex, s.CellSplits)
	if err != nil {
		return nil, fmt.Errorf("frnn: snapshot %s: %w: %w", name, ErrSnapshotCorrupt, err)
	}
	if err := table.checkPoints(len(s.Coords)/3, s.PointSplits); err != nil {
		return nil, fmt.Errorf("frnn: snapshot %s: %w: %w", name, ErrSnapshotCorrupt, err)
	}

	points := PointSet[T]{Coords: s.Coords, RowSplits: s.PointSplits}
	return newSpatialIndex(uuid.UUID(s.BuildID), points, table, optFns), nil
}
