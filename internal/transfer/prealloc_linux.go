//go:build linux

package transfer

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocate reserves size bytes for a download without changing the file
// length, so a short copy never leaves zero padding. fallocate is advisory and
// unsupported on some filesystems, so errors are ignored.
//
//nolint:gosec // G115: fd values are small non-negative integers
func preallocate(f *os.File, size int64) {
	if size <= 0 {
		return
	}
	_ = unix.Fallocate(int(f.Fd()), unix.FALLOC_FL_KEEP_SIZE, 0, size)
}
