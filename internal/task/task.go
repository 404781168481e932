// Package task carries the per-attempt context a copy runs under: a unique
// attempt identifier, a status sink for progress text, and shared counters.
package task

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ferryd/ferry/internal/stats"
)

// StatusFunc receives human-readable progress updates. Implementations must
// be cheap and must not block; errors are not reported because progress is
// advisory only.
type StatusFunc func(status string)

// Context identifies one copy attempt. The AttemptID must be unique across
// concurrent tasks: temp file paths are derived from it and never collide
// as long as the IDs differ.
type Context struct {
	AttemptID string
	Counters  *stats.Collector

	status StatusFunc
}

// New returns a Context with a fresh unique attempt ID.
func New(counters *stats.Collector, status StatusFunc) *Context {
	return &Context{
		AttemptID: fmt.Sprintf("attempt_%s", uuid.New().String()[:8]),
		Counters:  counters,
		status:    status,
	}
}

// WithAttemptID returns a Context with a caller-chosen attempt ID, for
// drivers that manage their own task identifiers.
func WithAttemptID(id string, counters *stats.Collector, status StatusFunc) *Context {
	return &Context{AttemptID: id, Counters: counters, status: status}
}

// SetStatus forwards a progress message to the status sink, if any.
func (c *Context) SetStatus(status string) {
	if c.status != nil {
		c.status(status)
	}
}
