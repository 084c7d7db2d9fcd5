package transfer

import (
	"context"
	"encoding/hex"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/time/rate"

	"github.com/bamsammich/mtpsync/internal/stats"
)

// NewBWLimiter creates a rate.Limiter capping throughput to bytesPerSec.
// The burst is 1 MB, or bytesPerSec when that is smaller.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	burst := 1 << 20
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// meter observes the bytes of one file copy as they pass: it throttles,
// counts, and optionally hashes them.
type meter struct {
	ctx     context.Context
	limiter *rate.Limiter
	stats   *stats.Collector
	hash    *blake3.Hasher
	n       int64
}

func newMeter(ctx context.Context, o *options) *meter {
	m := &meter{ctx: ctx, limiter: o.limiter, stats: o.stats}
	if o.verify {
		m.hash = blake3.New()
	}
	return m
}

func (m *meter) Write(p []byte) (int, error) {
	if m.limiter != nil {
		// WaitN rejects requests larger than the burst.
		burst := m.limiter.Burst()
		for rest := len(p); rest > 0; rest -= burst {
			if err := m.limiter.WaitN(m.ctx, min(rest, burst)); err != nil {
				return 0, err
			}
		}
	}
	if m.hash != nil {
		_, _ = m.hash.Write(p)
	}
	m.n += int64(len(p))
	m.stats.AddBytesCopied(int64(len(p)))
	return len(p), nil
}

// sum returns the hex BLAKE3 digest of everything written so far.
func (m *meter) sum() string {
	return hex.EncodeToString(m.hash.Sum(nil))
}

// hashOf returns the hex BLAKE3 digest of everything fill writes.
func hashOf(fill func(w io.Writer) error) (string, error) {
	h := blake3.New()
	if err := fill(h); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
