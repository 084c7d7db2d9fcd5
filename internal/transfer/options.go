package transfer

import (
	"path"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/time/rate"

	"github.com/bamsammich/mtpsync/internal/event"
	"github.com/bamsammich/mtpsync/internal/stats"
)

// Option configures a transfer.
type Option func(*options) error

type options struct {
	events   chan<- event.Event
	stats    *stats.Collector
	limiter  *rate.Limiter
	excludes []string
	verify   bool
	dryRun   bool
}

// WithEvents sends progress events to ch. Sends never block; events are
// dropped when ch is full.
func WithEvents(ch chan<- event.Event) Option {
	return func(o *options) error {
		o.events = ch
		return nil
	}
}

// WithStats records counters into c.
func WithStats(c *stats.Collector) Option {
	return func(o *options) error {
		o.stats = c
		return nil
	}
}

// WithBWLimit caps copy throughput at bytesPerSec. Zero means unlimited.
func WithBWLimit(bytesPerSec int64) Option {
	return func(o *options) error {
		if bytesPerSec < 0 {
			return errors.Errorf("bandwidth limit %d: %w", bytesPerSec, ErrInvalidArgument)
		}
		if bytesPerSec > 0 {
			o.limiter = NewBWLimiter(bytesPerSec)
		}
		return nil
	}
}

// WithVerify re-reads every copied file from the destination and compares
// its BLAKE3 hash with the bytes read from the source.
func WithVerify(on bool) Option {
	return func(o *options) error {
		o.verify = on
		return nil
	}
}

// WithFilter excludes entries whose slash-separated path relative to the
// transfer root, or any of its parent directories, matches one of patterns.
func WithFilter(patterns ...string) Option {
	return func(o *options) error {
		for _, p := range patterns {
			if !doublestar.ValidatePattern(p) {
				return errors.WithDetails(doublestar.ErrBadPattern, "pattern", p)
			}
		}
		o.excludes = append(o.excludes, patterns...)
		return nil
	}
}

// WithDryRun enumerates the source and reports what would be copied
// without touching the destination.
func WithDryRun(on bool) Option {
	return func(o *options) error {
		o.dryRun = on
		return nil
	}
}

func buildOptions(opts []Option) (*options, error) {
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.stats == nil {
		o.stats = stats.NewCollector()
	}
	return o, nil
}

// excluded reports whether rel or one of its parents matches an exclude
// pattern.
func (o *options) excluded(rel string) bool {
	for p := rel; p != "." && p != "/" && p != ""; p = path.Dir(p) {
		for _, pattern := range o.excludes {
			if ok, _ := doublestar.Match(pattern, p); ok {
				return true
			}
		}
	}
	return false
}
