package transfer

import (
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/bamsammich/mtpsync/internal/device"
)

// ValidPath reports whether p is usable as a source or destination: not
// empty, not only whitespace, and free of reserved path characters.
func ValidPath(p string) bool {
	if strings.TrimSpace(p) == "" {
		return false
	}
	return !strings.ContainsFunc(p, reservedRune)
}

// checkArgs runs the shared preconditions in order: source, destination,
// then device connectivity.
func checkArgs(dev device.Device, source, destination string) error {
	if !ValidPath(source) {
		return errors.Errorf("source %q: %w", source, ErrInvalidArgument)
	}
	if !ValidPath(destination) {
		return errors.Errorf("destination %q: %w", destination, ErrInvalidArgument)
	}
	if dev == nil {
		return errors.Errorf("nil device: %w", ErrInvalidArgument)
	}
	if !dev.IsConnected() {
		return errors.WithStack(device.ErrNotConnected)
	}
	return nil
}
