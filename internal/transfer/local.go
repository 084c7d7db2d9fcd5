package transfer

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/bamsammich/mtpsync/internal/device"
)

const copyBufSize = 256 * 1024

var (
	_ source = localSource{}
	_ opener = localSource{}
	_ sink   = localSink{}
)

// localSource reads a tree from the local filesystem.
type localSource struct {
	root string
}

func newLocalSource(root string) localSource {
	return localSource{root: filepath.Clean(root)}
}

func (s localSource) walk(ctx context.Context, depth Depth, fn func(item) error) error {
	if depth == Flat {
		return s.walkFlat(ctx, fn)
	}
	return filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == s.root {
			if !d.IsDir() {
				return errors.Errorf("%s is not a directory", p)
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		it, ok, err := s.item(p, d)
		if err != nil || !ok {
			return err
		}
		return fn(it)
	})
}

func (s localSource) walkFlat(ctx context.Context, fn func(item) error) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return errors.Errorf("read %s: %w", s.root, err)
	}
	for _, d := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			continue
		}
		it, ok, err := s.item(filepath.Join(s.root, d.Name()), d)
		if err != nil {
			return err
		}
		// A link to a directory is a subfolder too.
		if !ok || it.entry.Kind == device.KindDirectory {
			continue
		}
		if err := fn(it); err != nil {
			return err
		}
	}
	return nil
}

// item converts a directory entry. Symbolic links are followed. Links to
// directories, dangling links and special files come back with skip set.
func (s localSource) item(p string, d fs.DirEntry) (item, bool, error) {
	rel, err := s.rel(p)
	if err != nil {
		return item{}, false, err
	}
	it := item{rel: rel, entry: device.Entry{FullName: p, Kind: device.KindFile}}

	var info fs.FileInfo
	if d.Type()&fs.ModeSymlink != 0 {
		info, err = os.Stat(p)
		if err != nil {
			it.skip = true
			return it, true, nil
		}
	} else if info, err = d.Info(); err != nil {
		return item{}, false, errors.Errorf("stat %s: %w", p, err)
	}
	it.entry.ModTime = info.ModTime()

	switch {
	case info.Mode().IsRegular():
		it.entry.Size = info.Size()
	case info.IsDir():
		it.entry.Kind = device.KindDirectory
		// WalkDir does not descend into linked directories.
		it.skip = d.Type()&fs.ModeSymlink != 0
	default:
		it.skip = true
	}
	return it, true, nil
}

// rel returns p relative to the source root in slash form.
func (s localSource) rel(p string) (string, error) {
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("%s is not below %s", p, s.root)
	}
	return filepath.ToSlash(rel), nil
}

func (localSource) open(_ context.Context, it item) (io.ReadCloser, error) {
	f, err := os.Open(it.entry.FullName)
	if err != nil {
		return nil, errors.Errorf("open %s: %w", it.entry.FullName, err)
	}
	return f, nil
}

func (s localSource) copyTo(ctx context.Context, it item, w io.Writer) error {
	r, err := s.open(ctx, it)
	if err != nil {
		return err
	}
	defer r.Close()
	buf := make([]byte, copyBufSize)
	if _, err := io.CopyBuffer(w, r, buf); err != nil {
		return errors.Errorf("read %s: %w", it.entry.FullName, err)
	}
	return nil
}

// localSink writes a tree to the local filesystem. Files are written to a
// temporary sibling and renamed into place once complete.
type localSink struct {
	root string
}

func newLocalSink(root string) localSink {
	return localSink{root: filepath.Clean(root)}
}

func (s localSink) path(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func (s localSink) ensureRoot(context.Context) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return errors.Errorf("create %s: %w", s.root, err)
	}
	return nil
}

func (s localSink) ensureDir(_ context.Context, rel string) error {
	return os.MkdirAll(s.path(rel), 0o755)
}

func (s localSink) receive(ctx context.Context, it item, src source, m *meter) error {
	dst := s.path(it.rel)
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Errorf("create %s: %w", dir, err)
	}

	tmpPath := filepath.Join(dir, "."+filepath.Base(dst)+"."+uuid.New().String()[:8]+".mtpsync-tmp")
	tmpFiles.add(tmpPath)
	defer func() {
		tmpFiles.remove(tmpPath)
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	create := func(name string) (*os.File, error) {
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			preallocate(f, it.entry.Size)
		}
		return f, err
	}
	if it.file != nil {
		if err := it.file.CopyTo(ctx, tmpPath, device.CreateWith(create), device.Tee(m)); err != nil {
			return err
		}
	} else if err := writeTmp(ctx, tmpPath, create, it, src, m); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return errors.Errorf("rename %s -> %s: %w", tmpPath, dst, err)
	}
	if !it.entry.ModTime.IsZero() {
		if err := os.Chtimes(dst, it.entry.ModTime, it.entry.ModTime); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("path", dst).Msg("set mtime")
		}
	}
	return nil
}

func writeTmp(ctx context.Context, tmpPath string, create func(string) (*os.File, error), it item, src source, m *meter) error {
	f, err := create(tmpPath)
	if err != nil {
		return errors.Errorf("create tmp %s: %w", tmpPath, err)
	}
	if err := src.copyTo(ctx, it, io.MultiWriter(f, m)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Errorf("close tmp %s: %w", tmpPath, err)
	}
	return nil
}

func (s localSink) hash(_ context.Context, rel string) (string, error) {
	f, err := os.Open(s.path(rel))
	if err != nil {
		return "", err
	}
	defer f.Close()
	return hashOf(func(w io.Writer) error {
		_, err := io.Copy(w, f)
		return err
	})
}
