package frnn

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// span is a contiguous range [lo, hi) of rows belonging to one batch.
type span struct {
	batch  int
	lo, hi int64
}

// chunkSpans cuts every batch of splits into spans of at most chunk rows.
// Empty batches produce no span.
func chunkSpans(splits []int64, chunk int) []span {
	var spans []span
	for b := 0; b+1 < len(splits); b++ {
		for lo := splits[b]; lo < splits[b+1]; lo += int64(chunk) {
			spans = append(spans, span{batch: b, lo: lo, hi: min(lo+int64(chunk), splits[b+1])})
		}
	}
	return spans
}

// run executes fn for every task index in [0, n). Tasks run on at most
// o.workers goroutines, each holding a worker slot of the resource controller.
// fn must only write to memory owned by its task.
func (o *options) run(ctx context.Context, n int, fn func(i int)) error {
	if n == 0 {
		return nil
	}
	if o.workers <= 1 || n == 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := o.controller.AcquireWorker(ctx); err != nil {
				return err
			}
			fn(i)
			o.controller.ReleaseWorker()
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for i := 0; i < n; i++ {
		if err := gctx.Err(); err != nil {
			_ = g.Wait()
			return err
		}
		if err := o.controller.AcquireWorker(gctx); err != nil {
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			defer o.controller.ReleaseWorker()
			fn(i)
			return nil
		})
	}

	return g.Wait()
}
