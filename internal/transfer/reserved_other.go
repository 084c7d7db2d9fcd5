//go:build !windows

package transfer

func reservedRune(r rune) bool {
	return r == 0
}
