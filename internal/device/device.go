// Package device defines the contract the transfer engine consumes from a
// portable media device, plus the entry model shared by device backends.
package device

import (
	"context"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"
)

// ErrNotConnected is returned when an operation needs a connected device.
var ErrNotConnected = errors.Base("device not connected")

// Kind identifies the kind of a device filesystem entry.
type Kind int

const (
	KindFile Kind = iota + 1
	KindDirectory
	// KindObject is a device-specific container such as an MTP storage or
	// functional object. It is traversed like a directory.
	KindObject
)

var kindNames = [...]string{
	KindFile:      "file",
	KindDirectory: "directory",
	KindObject:    "object",
}

func (k Kind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// SearchOption selects how deep an enumeration goes.
type SearchOption int

const (
	TopDirectoryOnly SearchOption = iota
	AllDirectories
)

// Entry describes one node of a device tree.
type Entry struct {
	ModTime  time.Time
	FullName string // absolute, slash-separated
	Size     int64  // files only
	Kind     Kind
}

// Name returns the last element of FullName.
func (e Entry) Name() string { return path.Base(e.FullName) }

// IsContainer reports whether the entry is a directory or device object.
func (e Entry) IsContainer() bool {
	return e.Kind == KindDirectory || e.Kind == KindObject
}

// Device is a connected (or connectable) portable media device.
type Device interface {
	IsConnected() bool
	Connect(ctx context.Context) error

	// CreateDirectory creates path and any missing parents. Creating an
	// existing directory is not an error.
	CreateDirectory(ctx context.Context, path string) error

	// UploadFile writes the contents of src to the device file at path,
	// replacing it if present.
	UploadFile(ctx context.Context, src io.Reader, path string) error

	// DownloadFile copies the device file at path into dst.
	DownloadFile(ctx context.Context, path string, dst io.Writer) error

	GetDirectoryInfo(ctx context.Context, path string) (Directory, error)

	Close() error
}

// Directory is a handle to a device directory.
type Directory interface {
	FullName() string

	// EnumerateFileSystemInfos calls fn for every entry whose name matches
	// pattern. With AllDirectories the walk descends into containers and
	// yields each container before its children.
	EnumerateFileSystemInfos(ctx context.Context, pattern string, opt SearchOption, fn func(Entry) error) error

	// EnumerateFiles calls fn for each direct file child.
	EnumerateFiles(ctx context.Context, fn func(FileEntry) error) error
}

// FileEntry is a device file that can copy itself to the local filesystem.
type FileEntry interface {
	Entry() Entry
	// CopyTo creates or truncates localPath and downloads the file into it.
	CopyTo(ctx context.Context, localPath string, opts ...CopyOption) error
}

// CopyOption configures FileEntry.CopyTo.
type CopyOption func(*copyOptions)

type copyOptions struct {
	tee    io.Writer
	create func(name string) (*os.File, error)
}

// Tee also writes every downloaded byte to w, after it reached the local
// file. An error from w aborts the copy.
func Tee(w io.Writer) CopyOption {
	return func(o *copyOptions) { o.tee = w }
}

// CreateWith replaces os.Create for opening the local file.
func CreateWith(create func(name string) (*os.File, error)) CopyOption {
	return func(o *copyOptions) { o.create = create }
}

// Clean normalizes a device path to an absolute, slash-separated form.
func Clean(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return path.Clean("/" + p)
}
