//go:build !linux

package fsdev

import "os"

// mountID only checks that p is reachable; filesystem IDs are not
// compared on this platform.
func mountID(p string) (uint64, error) {
	_, err := os.Stat(p)
	return 0, err
}

func isFUSE(string) bool { return false }
