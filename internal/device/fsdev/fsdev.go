// Package fsdev implements a device over a go-billy filesystem: an MTP
// device mounted by gvfs, jmtpfs or go-mtpfs, or an in-memory tree in tests.
package fsdev

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/bamsammich/mtpsync/internal/device"
	"github.com/bamsammich/mtpsync/internal/stream"
)

var _ device.Device = (*Device)(nil)

const copyBufSize = 256 * 1024

// Option configures a Device.
type Option func(*Device)

// WithStorageObjects reports first-level directories as device objects.
func WithStorageObjects(on bool) Option {
	return func(d *Device) {
		if on {
			d.kindOf = device.StorageKind
		} else {
			d.kindOf = device.DefaultKind
		}
	}
}

// Device is a filesystem-backed portable device.
type Device struct {
	fs         billy.Filesystem
	kindOf     device.KindFunc
	mountPoint string
	mountDev   uint64 // filesystem ID of mountPoint at Connect
	connected  bool
}

// New wraps fs. The device reports connected after Connect.
func New(fs billy.Filesystem, opts ...Option) *Device {
	d := &Device{fs: fs, kindOf: device.DefaultKind}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewMount returns a device rooted at a mount point on the local host.
func NewMount(mountPoint string, opts ...Option) *Device {
	d := New(osfs.New(mountPoint), opts...)
	d.mountPoint = mountPoint
	return d
}

// IsConnected reports whether Connect succeeded and, for mounted devices,
// the same filesystem is still mounted there. When a FUSE mount goes away
// the mount point either vanishes, fails with ENOTCONN, or reverts to the
// bare directory of the parent filesystem.
func (d *Device) IsConnected() bool {
	if !d.connected {
		return false
	}
	if d.mountPoint == "" {
		return true
	}
	id, err := mountID(d.mountPoint)
	return err == nil && id == d.mountDev
}

func (d *Device) Connect(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	if d.mountPoint != "" {
		info, err := os.Stat(d.mountPoint)
		if err != nil {
			return errors.WithDetails(device.ErrNotConnected, "mount", d.mountPoint, "cause", err.Error())
		}
		if !info.IsDir() {
			return errors.WithDetails(device.ErrNotConnected, "mount", d.mountPoint, "cause", "not a directory")
		}
		id, err := mountID(d.mountPoint)
		if err != nil {
			return errors.WithDetails(device.ErrNotConnected, "mount", d.mountPoint, "cause", err.Error())
		}
		d.mountDev = id
		if !isFUSE(d.mountPoint) {
			log.Debug().Str("mount", d.mountPoint).Msg("mount point is not a FUSE filesystem")
		}
	}
	d.connected = true
	log.Debug().Str("mount", d.mountPoint).Msg("device connected")
	return nil
}

func (d *Device) CreateDirectory(_ context.Context, p string) error {
	p = device.Clean(p)
	if err := d.fs.MkdirAll(p, 0o755); err != nil {
		return errors.Errorf("mkdir %s: %w", p, err)
	}
	return nil
}

func (d *Device) UploadFile(ctx context.Context, src io.Reader, p string) (err error) {
	p = device.Clean(p)
	if err := d.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return errors.Errorf("mkdir %s: %w", path.Dir(p), err)
	}

	f, err := d.fs.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Errorf("create %s: %w", p, err)
	}
	s, err := d.openStream(ctx, f, p)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = errors.Errorf("close %s: %w", p, cerr)
		}
	}()

	buf := make([]byte, copyBufSize)
	if _, err := io.CopyBuffer(s, src, buf); err != nil {
		return errors.Errorf("upload %s: %w", p, err)
	}
	if err := s.Flush(); err != nil {
		return errors.Errorf("commit %s: %w", p, err)
	}
	return nil
}

func (d *Device) DownloadFile(ctx context.Context, p string, dst io.Writer) error {
	p = device.Clean(p)
	info, err := d.fs.Stat(p)
	if err != nil {
		return errors.Errorf("stat %s: %w", p, err)
	}
	if info.IsDir() {
		return errors.Errorf("download %s: is a directory", p)
	}

	f, err := d.fs.Open(p)
	if err != nil {
		return errors.Errorf("open %s: %w", p, err)
	}
	s, err := d.openStream(ctx, f, p)
	if err != nil {
		return err
	}
	defer s.Close()

	buf := make([]byte, copyBufSize)
	if _, err := io.CopyBuffer(dst, s, buf); err != nil {
		return errors.Errorf("download %s: %w", p, err)
	}
	return nil
}

//nolint:ireturn // implements device.Device
func (d *Device) GetDirectoryInfo(_ context.Context, p string) (device.Directory, error) {
	p = device.Clean(p)
	info, err := d.fs.Stat(p)
	if err != nil {
		return nil, errors.Errorf("stat %s: %w", p, err)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", p)
	}
	return device.NewDirectory(d, d.fs, p, d.kindOf), nil
}

func (d *Device) Close() error {
	d.connected = false
	return nil
}

func (d *Device) openStream(ctx context.Context, f billy.File, p string) (*stream.Adapter, error) {
	s, err := stream.New(&fileNative{fs: d.fs, file: f, path: p}, stream.WithLogger(zerolog.Ctx(ctx)))
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}
