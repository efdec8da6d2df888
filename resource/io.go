package resource

import (
	"context"
	"io"
)

// RateLimitedWriter wraps an io.Writer with the controller's IO limit.
type RateLimitedWriter struct {
	w   io.Writer
	rc  *Controller
	ctx context.Context
}

// NewRateLimitedWriter creates a new RateLimitedWriter.
func NewRateLimitedWriter(ctx context.Context, w io.Writer, rc *Controller) *RateLimitedWriter {
	return &RateLimitedWriter{
		w:   w,
		rc:  rc,
		ctx: ctx,
	}
}

func (w *RateLimitedWriter) Write(p []byte) (int, error) {
	if err := w.rc.AcquireIO(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}

// RateLimitedReader wraps an io.Reader with the controller's IO limit.
type RateLimitedReader struct {
	r   io.Reader
	rc  *Controller
	ctx context.Context
}

// NewRateLimitedReader creates a new RateLimitedReader.
func NewRateLimitedReader(ctx context.Context, r io.Reader, rc *Controller) *RateLimitedReader {
	return &RateLimitedReader{
		r:   r,
		rc:  rc,
		ctx: ctx,
	}
}

func (r *RateLimitedReader) Read(p []byte) (int, error) {
	// Budget is acquired for the buffer size, the upper bound of the read.
	if err := r.rc.AcquireIO(r.ctx, len(p)); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
