package copier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		bytesRead int64
		total     int64
		want      string
	}{
		{"midway", 512, 1024, "50.0% copying /a [512 B/1.0 KiB]"},
		{"complete", 1024, 1024, "100.0% copying /a [1.0 KiB/1.0 KiB]"},
		{"zero total", 0, 0, "100.0% copying /a [0 B/0 B]"},
		{"fractional", 1, 3, "33.3% copying /a [1 B/3 B]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatProgress(tt.bytesRead, tt.total, "copying /a"))
		})
	}
}
