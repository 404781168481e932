package copier

import (
	"fmt"

	"github.com/ferryd/ferry/internal/stats"
)

// FormatProgress renders a status line of the form
//
//	42.3% copying /src/file [1.2 KiB/3.4 KiB]
//
// A zero total reads as 100%. Formatting is advisory only and never fails
// the copy.
func FormatProgress(bytesRead, total int64, description string) string {
	pct := 100.0
	if total > 0 {
		pct = float64(bytesRead) * 100 / float64(total)
	}
	return fmt.Sprintf("%.1f%% %s [%s/%s]",
		pct, description, stats.FormatBytes(bytesRead), stats.FormatBytes(total))
}
