package copier

import (
	"context"
	"fmt"
	"io"
	"time"
)

// ThrottledReader wraps a byte source and caps the average read rate to a
// configured ceiling. After each read it compares elapsed wall-clock time
// against the time the transferred bytes should have taken at the ceiling,
// and sleeps the difference. Bursts are smoothed against the whole-stream
// average rather than capped per call, so the reader never sleeps a fixed
// constant and never starves.
//
// A limit of zero or less disables throttling entirely.
type ThrottledReader struct {
	r              io.Reader
	maxBytesPerSec int64
	ctx            context.Context

	start     time.Time
	bytesRead int64
	sleepTime time.Duration
}

// NewThrottledReader wraps r with an average-rate ceiling of maxBytesPerSec.
// Sleeps are interruptible through ctx.
func NewThrottledReader(ctx context.Context, r io.Reader, maxBytesPerSec int64) *ThrottledReader {
	return &ThrottledReader{
		r:              r,
		maxBytesPerSec: maxBytesPerSec,
		ctx:            ctx,
		start:          time.Now(),
	}
}

func (t *ThrottledReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		t.bytesRead += int64(n)
		if werr := t.throttle(); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// throttle sleeps just long enough to bring the average rate back under the
// ceiling, or returns early if the context is cancelled.
func (t *ThrottledReader) throttle() error {
	if t.maxBytesPerSec <= 0 {
		return nil
	}

	elapsed := time.Since(t.start)
	expected := time.Duration(float64(t.bytesRead) / float64(t.maxBytesPerSec) * float64(time.Second))
	if expected <= elapsed {
		return nil
	}

	sleep := expected - elapsed
	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		t.sleepTime += sleep
		return nil
	case <-t.ctx.Done():
		return t.ctx.Err()
	}
}

// BytesRead returns the cumulative number of bytes read so far.
func (t *ThrottledReader) BytesRead() int64 { return t.bytesRead }

// SleepTime returns the cumulative time spent sleeping to honour the ceiling.
func (t *ThrottledReader) SleepTime() time.Duration { return t.sleepTime }

func (t *ThrottledReader) String() string {
	elapsed := time.Since(t.start)
	var rate float64
	if elapsed > 0 {
		rate = float64(t.bytesRead) / elapsed.Seconds()
	}
	return fmt.Sprintf("bytes=%d rate=%.0fB/s sleep=%s", t.bytesRead, rate, t.sleepTime)
}
