package config

import (
	"math"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// ErrInvalidSize is returned by ParseSize.
var ErrInvalidSize = errors.Base("invalid size")

// Binary unit prefixes in order; K is 1<<10, T is 1<<40.
const sizeUnits = "KMGT"

// ParseSize parses a byte count such as 512, 64K, 1.5M, 2MiB or 10M/s.
// Units are powers of 1024 and case-insensitive. A trailing /s is accepted
// so bandwidth limits can be written as rates.
func ParseSize(s string) (int64, error) {
	num := strings.ToUpper(strings.TrimSpace(s))
	num = strings.TrimSuffix(num, "/S")
	num = strings.TrimSuffix(num, "B")
	if n := len(num); n > 1 && num[n-1] == 'I' && strings.IndexByte(sizeUnits, num[n-2]) >= 0 {
		num = num[:n-1]
	}

	var shift uint
	if n := len(num); n > 0 {
		if i := strings.IndexByte(sizeUnits, num[n-1]); i >= 0 {
			shift = 10 * uint(i+1)
			num = num[:n-1]
		}
	}
	if num == "" {
		return 0, errors.WithDetails(ErrInvalidSize, "size", s)
	}

	if n, err := strconv.ParseUint(num, 10, 63); err == nil {
		if n > math.MaxInt64>>shift {
			return 0, errors.WithDetails(ErrInvalidSize, "size", s, "reason", "overflows int64")
		}
		return int64(n) << shift, nil //nolint:gosec // bounded above
	}

	f, err := strconv.ParseFloat(num, 64)
	switch {
	case err != nil && !errors.Is(err, strconv.ErrRange), math.IsNaN(f):
		return 0, errors.WithDetails(ErrInvalidSize, "size", s)
	case f < 0:
		return 0, errors.WithDetails(ErrInvalidSize, "size", s, "reason", "negative")
	}
	v := f * float64(int64(1)<<shift)
	if v >= math.MaxInt64 {
		return 0, errors.WithDetails(ErrInvalidSize, "size", s, "reason", "overflows int64")
	}
	return int64(v), nil
}
