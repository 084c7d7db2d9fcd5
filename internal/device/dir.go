package device

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

// Lister lists the children of a directory in device path space.
// billy.Filesystem and *sftp.Client both satisfy it.
type Lister interface {
	ReadDir(path string) ([]fs.FileInfo, error)
}

// KindFunc classifies a listed child. dir is the parent's device path.
type KindFunc func(dir string, info fs.FileInfo) Kind

// DefaultKind reports directories as KindDirectory and everything else as
// KindFile.
func DefaultKind(_ string, info fs.FileInfo) Kind {
	if info.IsDir() {
		return KindDirectory
	}
	return KindFile
}

// StorageKind reports first-level directories as KindObject, matching how
// MTP exposes storages below the device root.
func StorageKind(dir string, info fs.FileInfo) Kind {
	if info.IsDir() && dir == "/" {
		return KindObject
	}
	return DefaultKind(dir, info)
}

// Match reports whether name matches the glob pattern. An empty pattern
// matches every name.
func Match(pattern, name string) (bool, error) {
	if pattern == "" || pattern == "*" {
		return true, nil
	}
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		return false, errors.WithDetails(err, "pattern", pattern)
	}
	return ok, nil
}

// ListedDirectory implements Directory on top of a Lister.
type ListedDirectory struct {
	dev    Device
	lister Lister
	kindOf KindFunc
	name   string
}

// NewDirectory returns a Directory for fullName. Files yielded by
// EnumerateFiles download through dev.
func NewDirectory(dev Device, lister Lister, fullName string, kindOf KindFunc) *ListedDirectory {
	if kindOf == nil {
		kindOf = DefaultKind
	}
	return &ListedDirectory{
		dev:    dev,
		lister: lister,
		kindOf: kindOf,
		name:   Clean(fullName),
	}
}

func (d *ListedDirectory) FullName() string { return d.name }

func (d *ListedDirectory) EnumerateFileSystemInfos(
	ctx context.Context,
	pattern string,
	opt SearchOption,
	fn func(Entry) error,
) error {
	if !doublestar.ValidatePattern(pattern) {
		return errors.WithDetails(doublestar.ErrBadPattern, "pattern", pattern)
	}
	return d.walk(ctx, d.name, pattern, opt, fn)
}

func (d *ListedDirectory) walk(ctx context.Context, dir, pattern string, opt SearchOption, fn func(Entry) error) error {
	children, err := d.list(dir)
	if err != nil {
		return err
	}
	for _, entry := range children {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := Match(pattern, entry.Name())
		if err != nil {
			return err
		}
		if ok {
			if err := fn(entry); err != nil {
				return err
			}
		}
		if opt == AllDirectories && entry.IsContainer() {
			if err := d.walk(ctx, entry.FullName, pattern, opt, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *ListedDirectory) EnumerateFiles(ctx context.Context, fn func(FileEntry) error) error {
	children, err := d.list(d.name)
	if err != nil {
		return err
	}
	for _, entry := range children {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.Kind != KindFile {
			continue
		}
		if err := fn(&listedFile{dev: d.dev, entry: entry}); err != nil {
			return err
		}
	}
	return nil
}

func (d *ListedDirectory) list(dir string) ([]Entry, error) {
	infos, err := d.lister.ReadDir(dir)
	if err != nil {
		return nil, errors.Errorf("list %s: %w", dir, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entry := Entry{
			FullName: path.Join(dir, info.Name()),
			Kind:     d.kindOf(dir, info),
			ModTime:  info.ModTime(),
		}
		if entry.Kind == KindFile {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

type listedFile struct {
	dev   Device
	entry Entry
}

func (f *listedFile) Entry() Entry { return f.entry }

func (f *listedFile) CopyTo(ctx context.Context, localPath string, opts ...CopyOption) error {
	o := copyOptions{create: os.Create}
	for _, opt := range opts {
		opt(&o)
	}

	out, err := o.create(localPath)
	if err != nil {
		return errors.Errorf("create %s: %w", localPath, err)
	}
	var w io.Writer = out
	if o.tee != nil {
		w = io.MultiWriter(out, o.tee)
	}
	if err := f.dev.DownloadFile(ctx, f.entry.FullName, w); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return errors.Errorf("close %s: %w", localPath, err)
	}
	return nil
}
