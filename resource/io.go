package resource

import (
	"context"
	"io"
)

// LimitWriter returns w throttled by the I/O limit. Without a limit, w is
// returned unchanged.
func (c *Controller) LimitWriter(ctx context.Context, w io.Writer) io.Writer {
	if c == nil || c.ioLimiter == nil {
		return w
	}
	return &limitedWriter{ctx: ctx, w: w, c: c}
}

// LimitReader returns r throttled by the I/O limit. Without a limit, r is
// returned unchanged.
func (c *Controller) LimitReader(ctx context.Context, r io.Reader) io.Reader {
	if c == nil || c.ioLimiter == nil {
		return r
	}
	return &limitedReader{ctx: ctx, r: r, c: c}
}

type limitedWriter struct {
	ctx context.Context
	w   io.Writer
	c   *Controller
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if err := w.c.AcquireIO(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}

type limitedReader struct {
	ctx context.Context
	r   io.Reader
	c   *Controller
}

// Read pays for the bytes actually returned, after reading.
func (r *limitedReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		if werr := r.c.AcquireIO(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
