package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bamsammich/mtpsync/internal/stats"
)

func rate(bytesPerSec float64) string {
	if bytesPerSec < 1 {
		return "0 B/s"
	}
	return stats.FormatBytes(int64(bytesPerSec)) + "/s"
}

func elapsed(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	return d.Round(time.Second).String()
}

func plural(n int64, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// progressLine describes a transfer still in flight.
func progressLine(snap stats.Snapshot, speed float64) string {
	return fmt.Sprintf("%s  %s  %s  %s",
		plural(snap.FilesCopied, "file"),
		stats.FormatBytes(snap.BytesCopied),
		rate(speed),
		elapsed(snap.Elapsed),
	)
}

// SummaryLine describes a finished transfer, e.g.
//
//	done ✓ 12 files, 48.2 MiB in 9s (5.4 MiB/s), 2 folders, 1 skipped
func SummaryLine(snap stats.Snapshot) string {
	mark := "✓"
	if snap.FilesFailed > 0 || snap.FilesVerifyFailed > 0 {
		mark = "✗"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "done %s %s, %s in %s", mark,
		plural(snap.FilesCopied, "file"), stats.FormatBytes(snap.BytesCopied), elapsed(snap.Elapsed))
	if secs := snap.Elapsed.Seconds(); secs > 0 && snap.BytesCopied > 0 {
		fmt.Fprintf(&b, " (%s)", rate(float64(snap.BytesCopied)/secs))
	}

	for _, c := range []struct {
		label string
		n     int64
	}{
		{"folders", snap.DirsCreated},
		{"skipped", snap.FilesSkipped},
		{"verified", snap.FilesVerified},
		{"failed", snap.FilesFailed + snap.FilesVerifyFailed},
	} {
		if c.n > 0 {
			fmt.Fprintf(&b, ", %d %s", c.n, c.label)
		}
	}
	return b.String()
}
