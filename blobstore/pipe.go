package blobstore

import (
	"context"
	"io"
	"sync"
)

// UploadFunc consumes the body of a blob being written. It reads r until
// io.EOF and returns once the blob is stored.
type UploadFunc func(r io.Reader) error

// NewPipeWriter returns a WritableBlob that streams its writes into upload,
// which runs on its own goroutine. Close waits for upload and returns its
// error. Abort makes upload read context.Canceled.
//
// Remote stores use it to turn a single streaming request into a
// WritableBlob.
func NewPipeWriter(upload UploadFunc) WritableBlob {
	pr, pw := io.Pipe()
	w := &pipeWriter{pw: pw, done: make(chan error, 1)}

	go func() {
		err := upload(pr)
		// Unblock a writer still waiting on the pipe.
		_ = pr.CloseWithError(err)
		w.done <- err
	}()

	return w
}

type pipeWriter struct {
	pw   *io.PipeWriter
	done chan error

	once sync.Once
	err  error
}

func (w *pipeWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

// Sync is a no-op; the blob is committed on Close.
func (w *pipeWriter) Sync() error {
	return nil
}

func (w *pipeWriter) Close() error {
	w.once.Do(func() {
		_ = w.pw.Close()
		w.err = <-w.done
	})
	return w.err
}

func (w *pipeWriter) Abort() error {
	w.once.Do(func() {
		_ = w.pw.CloseWithError(context.Canceled)
		<-w.done
		w.err = context.Canceled
	})
	return nil
}
