package transfer

import (
	"context"
	"io"
	"time"

	"namdrunner/internal/errdefs"
)

type flusher interface {
	Flush() error
}

type syncer interface {
	Sync() error
}

// flush forces buffered bytes down to the destination. SFTP and local
// files expose this as Sync, in-process buffers as Flush.
func flush(w io.Writer) error {
	switch v := w.(type) {
	case flusher:
		return v.Flush()
	case syncer:
		return v.Sync()
	}
	return nil
}

// copyChunks copies src to dst in fixed-size chunks, flushing after every
// chunk write and reporting cumulative progress through emit. Copying in
// bounded pieces keeps each network write inside its own timeout window
// instead of racing one deadline against the whole file.
func copyChunks(dst io.Writer, src io.Reader, chunkSize int, emit func(written int64)) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64

	for {
		n, readErr := io.ReadFull(src, buf)

		if n > 0 {
			wn, writeErr := dst.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, writeErr
			}
			if wn < n {
				return written, io.ErrShortWrite
			}

			if err := flush(dst); err != nil {
				return written, err
			}

			if emit != nil {
				emit(written)
			}
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// timedWriter bounds each write with its own timeout. A write that
// exceeds it abandons the in-flight operation and surfaces a Timeout
// error; the transfer stops and any partial remote file stays in place.
type timedWriter struct {
	ctx     context.Context
	w       io.Writer
	timeout time.Duration
}

func (tw *timedWriter) Write(p []byte) (int, error) {
	type outcome struct {
		n   int
		err error
	}

	done := make(chan outcome, 1)
	go func() {
		n, err := tw.w.Write(p)
		done <- outcome{n: n, err: err}
	}()

	select {
	case <-tw.ctx.Done():
		return 0, errdefs.Wrap(errdefs.Internal, tw.ctx.Err(), "transfer abandoned")
	case <-time.After(tw.timeout):
		return 0, errdefs.New(errdefs.Timeout, "chunk write timed out after %s", tw.timeout)
	case out := <-done:
		return out.n, out.err
	}
}

func (tw *timedWriter) Flush() error {
	return flush(tw.w)
}

// timedReader is the download-side counterpart of timedWriter.
type timedReader struct {
	ctx     context.Context
	r       io.Reader
	timeout time.Duration
}

func (tr *timedReader) Read(p []byte) (int, error) {
	type outcome struct {
		n   int
		err error
	}

	done := make(chan outcome, 1)
	go func() {
		n, err := tr.r.Read(p)
		done <- outcome{n: n, err: err}
	}()

	select {
	case <-tr.ctx.Done():
		return 0, errdefs.Wrap(errdefs.Internal, tr.ctx.Err(), "transfer abandoned")
	case <-time.After(tr.timeout):
		return 0, errdefs.New(errdefs.Timeout, "chunk read timed out after %s", tr.timeout)
	case out := <-done:
		return out.n, out.err
	}
}
