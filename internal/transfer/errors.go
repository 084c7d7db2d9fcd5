package transfer

import "gitlab.com/tozd/go/errors"

var (
	// ErrInvalidArgument is returned for a missing or malformed source or
	// destination path. No I/O has been done when it is returned.
	ErrInvalidArgument = errors.Base("invalid argument")

	// ErrVerifyFailed is returned when a copied file's destination hash does
	// not match the hash of the bytes read from the source.
	ErrVerifyFailed = errors.Base("verification failed")
)
