//go:build windows

package transfer

import "strings"

func reservedRune(r rune) bool {
	return r < 0x20 || strings.ContainsRune(`<>|"`, r)
}
