package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Collector tracks copy operation counters using lock-free atomics. One
// collector may be shared by many concurrent copy tasks.
type Collector struct {
	filesCopied  atomic.Int64
	filesFailed  atomic.Int64
	filesSkipped atomic.Int64
	bytesCopied  atomic.Int64
	attempts     atomic.Int64
	sleepMillis  atomic.Int64
	startTime    time.Time
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesCopied  int64
	FilesFailed  int64
	FilesSkipped int64
	BytesCopied  int64
	Attempts     int64
	SleepTime    time.Duration
	Elapsed      time.Duration
}

func (c *Collector) AddFilesCopied(n int64)  { c.filesCopied.Add(n) }
func (c *Collector) AddFilesFailed(n int64)  { c.filesFailed.Add(n) }
func (c *Collector) AddFilesSkipped(n int64) { c.filesSkipped.Add(n) }
func (c *Collector) AddBytesCopied(n int64)  { c.bytesCopied.Add(n) }
func (c *Collector) AddAttempts(n int64)     { c.attempts.Add(n) }

// AddSleepTime accumulates time spent sleeping inside throttled reads.
func (c *Collector) AddSleepTime(d time.Duration) {
	c.sleepMillis.Add(d.Milliseconds())
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesCopied:  c.filesCopied.Load(),
		FilesFailed:  c.filesFailed.Load(),
		FilesSkipped: c.filesSkipped.Load(),
		BytesCopied:  c.bytesCopied.Load(),
		Attempts:     c.attempts.Load(),
		SleepTime:    time.Duration(c.sleepMillis.Load()) * time.Millisecond,
		Elapsed:      c.Elapsed(),
	}
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"copied=%d failed=%d skipped=%d bytes=%s attempts=%d sleep=%s",
		s.FilesCopied, s.FilesFailed, s.FilesSkipped,
		FormatBytes(s.BytesCopied), s.Attempts, s.SleepTime,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
