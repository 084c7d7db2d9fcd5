package transfer

import (
	"context"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/bamsammich/mtpsync/internal/device"
	"github.com/bamsammich/mtpsync/internal/event"
)

// Depth selects which source entries a tree copy visits.
type Depth int

const (
	// Flat visits only the direct file children of the source root.
	Flat Depth = iota
	// Recursive visits every descendant, containers before their children.
	Recursive
)

func depthOf(recursive bool) Depth {
	if recursive {
		return Recursive
	}
	return Flat
}

// item is one entry of a transfer.
type item struct {
	entry device.Entry     // FullName addresses the entry on the source side
	rel   string           // slash-separated destination path relative to the sink root
	file  device.FileEntry // set for files yielded by Directory.EnumerateFiles
	skip  bool             // reported as skipped, never copied
}

// source enumerates entries and produces their bytes.
type source interface {
	walk(ctx context.Context, depth Depth, fn func(item) error) error
	copyTo(ctx context.Context, it item, w io.Writer) error
}

// opener is implemented by sources that can hand out a reader, which
// reader-driven sinks need.
type opener interface {
	open(ctx context.Context, it item) (io.ReadCloser, error)
}

// sink materializes entries under its root.
type sink interface {
	ensureRoot(ctx context.Context) error
	ensureDir(ctx context.Context, rel string) error
	receive(ctx context.Context, it item, src source, m *meter) error
	hash(ctx context.Context, rel string) (string, error)
}

type job struct {
	src   source
	dst   sink
	opts  *options
	depth Depth
}

// run copies the source tree into the sink. The first failure aborts the
// remaining traversal; entries already written are left in place.
func run(ctx context.Context, j job) error {
	log := zerolog.Ctx(ctx)
	event.Emit(j.opts.events, event.Event{Type: event.TransferStarted})

	if !j.opts.dryRun {
		if err := j.dst.ensureRoot(ctx); err != nil {
			return err
		}
	}

	err := j.src.walk(ctx, j.depth, func(it item) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if j.opts.excluded(it.rel) {
			log.Debug().Str("path", it.rel).Msg("excluded")
			if !it.entry.IsContainer() {
				j.opts.stats.AddFilesSkipped(1)
				event.Emit(j.opts.events, event.Event{Type: event.FileSkipped, Path: it.rel, Size: it.entry.Size})
			}
			return nil
		}
		if it.skip {
			log.Debug().Str("path", it.rel).Msg("unsupported entry")
			j.opts.stats.AddFilesSkipped(1)
			event.Emit(j.opts.events, event.Event{Type: event.FileSkipped, Path: it.rel})
			return nil
		}
		if it.entry.IsContainer() {
			return j.mkdir(ctx, it.rel)
		}
		return copyFile(ctx, j, it)
	})

	snap := j.opts.stats.Snapshot()
	event.Emit(j.opts.events, event.Event{Type: event.TransferComplete, Size: snap.BytesCopied, Error: err})
	return err
}

func (j job) mkdir(ctx context.Context, rel string) error {
	if j.opts.dryRun {
		return nil
	}
	if err := j.dst.ensureDir(ctx, rel); err != nil {
		return errors.Errorf("create directory %s: %w", rel, err)
	}
	j.opts.stats.AddDirsCreated(1)
	event.Emit(j.opts.events, event.Event{Type: event.DirCreated, Path: rel})
	return nil
}

// copyFile transfers one file and, when enabled, verifies it.
func copyFile(ctx context.Context, j job, it item) error {
	o := j.opts
	o.stats.AddFilesSeen(1)

	if o.dryRun {
		o.stats.AddFilesSkipped(1)
		event.Emit(o.events, event.Event{Type: event.FileSkipped, Path: it.rel, Size: it.entry.Size})
		return nil
	}

	event.Emit(o.events, event.Event{Type: event.FileStarted, Path: it.rel, Size: it.entry.Size})
	m := newMeter(ctx, o)
	if err := j.dst.receive(ctx, it, j.src, m); err != nil {
		o.stats.AddFilesFailed(1)
		event.Emit(o.events, event.Event{Type: event.FileFailed, Path: it.rel, Error: err})
		return errors.Errorf("copy %s: %w", it.entry.FullName, err)
	}

	if o.verify {
		if err := verify(ctx, j, it, m.sum()); err != nil {
			return err
		}
	}

	o.stats.AddFilesCopied(1)
	event.Emit(o.events, event.Event{Type: event.FileCompleted, Path: it.rel, Size: m.n})
	zerolog.Ctx(ctx).Debug().Str("path", it.rel).Int64("bytes", m.n).Msg("copied")
	return nil
}

func verify(ctx context.Context, j job, it item, want string) error {
	o := j.opts
	got, err := j.dst.hash(ctx, it.rel)
	if err != nil {
		err = errors.Errorf("hash %s: %w", it.rel, err)
	} else if got != want {
		err = errors.WithDetails(ErrVerifyFailed, "path", it.rel, "source", want, "destination", got)
	}
	if err != nil {
		o.stats.AddFilesVerifyFailed(1)
		event.Emit(o.events, event.Event{Type: event.VerifyFailed, Path: it.rel, Error: err})
		return err
	}
	o.stats.AddFilesVerified(1)
	event.Emit(o.events, event.Event{Type: event.VerifyOK, Path: it.rel})
	return nil
}

// relativePath strips root and one separator from full. root may itself
// end in sep, as the filesystem root does.
func relativePath(root, full, sep string) (string, error) {
	prefix := strings.TrimSuffix(root, sep) + sep
	rel, ok := strings.CutPrefix(full, prefix)
	if !ok || rel == "" {
		return "", errors.Errorf("%s is not below %s", full, root)
	}
	return rel, nil
}
