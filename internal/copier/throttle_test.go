package copier

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottledReaderUnlimited(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("x"), 64*1024)
	tr := NewThrottledReader(context.Background(), bytes.NewReader(data), 0)

	start := time.Now()
	got, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, int64(len(data)), tr.BytesRead())
	assert.Zero(t, tr.SleepTime())
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestThrottledReaderEnforcesRate(t *testing.T) {
	t.Parallel()

	// 2 KiB at 4 KiB/s should take about half a second.
	dataSize := 2 * 1024
	rateLimit := int64(4 * 1024)
	data := bytes.Repeat([]byte("a"), dataSize)

	tr := NewThrottledReader(context.Background(), bytes.NewReader(data), rateLimit)
	start := time.Now()
	got, err := io.ReadAll(tr)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, got, dataSize)
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
	assert.Greater(t, tr.SleepTime(), time.Duration(0))
	assert.Equal(t, int64(dataSize), tr.BytesRead())
}

func TestThrottledReaderSmoothsBursts(t *testing.T) {
	t.Parallel()

	// One oversized read still settles to the average rate rather than
	// being rejected or capped per call.
	data := bytes.Repeat([]byte("b"), 1024)
	tr := NewThrottledReader(context.Background(), bytes.NewReader(data), 2048)

	buf := make([]byte, 1024)
	start := time.Now()
	n, err := tr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 1024, n)
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestThrottledReaderContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	data := bytes.Repeat([]byte("c"), 64*1024)
	// Rate low enough that the first read sleeps for a long time.
	tr := NewThrottledReader(ctx, bytes.NewReader(data), 1024)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	buf := make([]byte, 32*1024)
	_, err := tr.Read(buf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestThrottledReaderString(t *testing.T) {
	t.Parallel()

	data := []byte("hello")
	tr := NewThrottledReader(context.Background(), bytes.NewReader(data), 0)
	_, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Contains(t, tr.String(), "bytes=5")
}
