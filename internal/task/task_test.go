package task

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ferryd/ferry/internal/stats"
)

func TestNewUniqueAttemptIDs(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tc := New(stats.NewCollector(), nil)
		assert.NotEmpty(t, tc.AttemptID)
		assert.False(t, seen[tc.AttemptID], "duplicate attempt ID %s", tc.AttemptID)
		seen[tc.AttemptID] = true
	}
}

func TestSetStatus(t *testing.T) {
	t.Parallel()

	var got string
	tc := WithAttemptID("attempt_1", nil, func(s string) { got = s })
	tc.SetStatus("50.0% copying")
	assert.Equal(t, "50.0% copying", got)
}

func TestSetStatusNilSink(t *testing.T) {
	t.Parallel()

	tc := WithAttemptID("attempt_1", nil, nil)
	assert.NotPanics(t, func() { tc.SetStatus("ignored") })
}
