//go:build linux

package fsdev

import "golang.org/x/sys/unix"

// fuseSuperMagic is the statfs type of FUSE filesystems (gvfs, jmtpfs,
// go-mtpfs).
const fuseSuperMagic = 0x65735546

// mountID returns the ID of the filesystem holding p. Statting a FUSE
// mount whose daemon died fails with ENOTCONN.
func mountID(p string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(p, &st); err != nil {
		return 0, err
	}
	return st.Dev, nil
}

func isFUSE(p string) bool {
	var st unix.Statfs_t
	return unix.Statfs(p, &st) == nil && st.Type == fuseSuperMagic
}
