package transfer

import (
	"context"
	"io"
	"path"

	"gitlab.com/tozd/go/errors"

	"github.com/bamsammich/mtpsync/internal/device"
)

var (
	_ source = deviceSource{}
	_ sink   = (*deviceSink)(nil)
)

// deviceSource reads a tree from a device directory.
type deviceSource struct {
	dev  device.Device
	root string
}

func (s deviceSource) walk(ctx context.Context, depth Depth, fn func(item) error) error {
	dir, err := s.dev.GetDirectoryInfo(ctx, s.root)
	if err != nil {
		return errors.Errorf("open device directory %s: %w", s.root, err)
	}
	root := dir.FullName()
	toItem := func(e device.Entry) (item, error) {
		rel, err := relativePath(root, e.FullName, "/")
		return item{entry: e, rel: rel}, err
	}

	if depth == Flat {
		return dir.EnumerateFiles(ctx, func(f device.FileEntry) error {
			it, err := toItem(f.Entry())
			if err != nil {
				return err
			}
			it.file = f
			return fn(it)
		})
	}
	return dir.EnumerateFileSystemInfos(ctx, "*", device.AllDirectories, func(e device.Entry) error {
		it, err := toItem(e)
		if err != nil {
			return err
		}
		return fn(it)
	})
}

func (s deviceSource) copyTo(ctx context.Context, it item, w io.Writer) error {
	return s.dev.DownloadFile(ctx, it.entry.FullName, w)
}

// deviceSink writes a tree below a device directory.
type deviceSink struct {
	dev  device.Device
	made map[string]bool
	root string
}

func newDeviceSink(dev device.Device, root string) *deviceSink {
	return &deviceSink{dev: dev, root: device.Clean(root), made: make(map[string]bool)}
}

func (s *deviceSink) path(rel string) string {
	return path.Join(s.root, rel)
}

func (s *deviceSink) ensureRoot(ctx context.Context) error {
	if err := s.dev.CreateDirectory(ctx, s.root); err != nil {
		return errors.Errorf("create device directory %s: %w", s.root, err)
	}
	s.made[s.root] = true
	return nil
}

func (s *deviceSink) ensureDir(ctx context.Context, rel string) error {
	return s.mkdirAll(ctx, s.path(rel))
}

func (s *deviceSink) mkdirAll(ctx context.Context, p string) error {
	if s.made[p] {
		return nil
	}
	if err := s.dev.CreateDirectory(ctx, p); err != nil {
		return err
	}
	s.made[p] = true
	return nil
}

func (s *deviceSink) receive(ctx context.Context, it item, src source, m *meter) error {
	o, ok := src.(opener)
	if !ok {
		return errors.Errorf("source for %s cannot be streamed to a device", it.rel)
	}
	dst := s.path(it.rel)
	if err := s.mkdirAll(ctx, path.Dir(dst)); err != nil {
		return errors.Errorf("create device directory %s: %w", path.Dir(dst), err)
	}

	r, err := o.open(ctx, it)
	if err != nil {
		return err
	}
	defer r.Close()
	return s.dev.UploadFile(ctx, io.TeeReader(r, m), dst)
}

func (s *deviceSink) hash(ctx context.Context, rel string) (string, error) {
	return hashOf(func(w io.Writer) error {
		return s.dev.DownloadFile(ctx, s.path(rel), w)
	})
}
