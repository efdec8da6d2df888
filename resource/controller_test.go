package resource

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_NilIsUnlimited(t *testing.T) {
	var c *Controller
	require.NoError(t, c.AcquireIO(context.Background(), 1<<30))
	require.NoError(t, c.AcquireWorker(context.Background()))
	c.ReleaseWorker()
}

func TestController_NoLimitConfigured(t *testing.T) {
	c := NewController(Config{})
	require.NoError(t, c.AcquireIO(context.Background(), 1<<30))
}

func TestController_AcquireIOSplitsLargeRequests(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	// Larger than burst; must not error and must not block forever.
	done := make(chan error, 1)
	go func() {
		done <- c.AcquireIO(context.Background(), 2<<20)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("AcquireIO did not finish")
	}
}

func TestController_AcquireIOHonorsContext(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1})

	// Drain the initial burst so the next acquire has to wait.
	require.NoError(t, c.AcquireIO(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := c.AcquireIO(ctx, 1)
	assert.Error(t, err)
}

func TestController_Workers(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 1})

	require.NoError(t, c.AcquireWorker(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireWorker(ctx))

	c.ReleaseWorker()
	require.NoError(t, c.AcquireWorker(context.Background()))
	c.ReleaseWorker()
}

func TestRateLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	w := NewRateLimitedWriter(context.Background(), &buf, c)
	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", buf.String())
}

func TestRateLimitedReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	r := NewRateLimitedReader(context.Background(), bytes.NewReader([]byte("hello")), c)
	p := make([]byte, 5)
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), p)
}
