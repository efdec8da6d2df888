// Package resource throttles background work: snapshot IO throughput and
// the number of concurrent background jobs.
package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxBackgroundWorkers is the maximum number of concurrent background
	// jobs. If 0, defaults to 1.
	MaxBackgroundWorkers int64

	// IOLimitBytesPerSec is the maximum IO throughput for snapshot
	// save/load. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages shared resources (IO bandwidth, concurrency).
type Controller struct {
	bgSem     *semaphore.Weighted
	ioLimiter *rate.Limiter
	burst     int
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = 1
	}

	c := &Controller{
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundWorkers),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.burst = int(cfg.IOLimitBytesPerSec)
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), c.burst)
	}

	return c
}

// AcquireIO blocks until n bytes of IO budget are available, or ctx is done.
// With no IO limit configured it returns immediately.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil || n <= 0 {
		return nil
	}

	// WaitN caps n at the burst size, so large writes are split.
	for n > c.burst {
		if err := c.ioLimiter.WaitN(ctx, c.burst); err != nil {
			return err
		}
		n -= c.burst
	}
	return c.ioLimiter.WaitN(ctx, n)
}

// AcquireWorker blocks until a background worker slot is available.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.bgSem.Acquire(ctx, 1)
}

// ReleaseWorker returns a background worker slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.bgSem.Release(1)
}
