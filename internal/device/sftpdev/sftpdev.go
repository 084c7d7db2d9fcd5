// Package sftpdev implements a device reached over SFTP, for phones running
// an SSH server app.
package sftpdev

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/crypto/ssh"

	"github.com/bamsammich/mtpsync/internal/device"
	"github.com/bamsammich/mtpsync/internal/stream"
)

var _ device.Device = (*Device)(nil)

const copyBufSize = 256 * 1024

// Options configures an SFTP device.
type Options struct {
	Host           string
	User           string
	Root           string // remote directory that device paths are relative to
	SSH            SSHOpts
	StorageObjects bool
}

// Device is a portable device reached over SFTP.
type Device struct {
	ssh    *ssh.Client
	client *sftp.Client
	kindOf device.KindFunc
	opts   Options
}

// New returns an unconnected device.
func New(opts Options) *Device {
	if opts.Root == "" {
		opts.Root = "/"
	}
	d := &Device{opts: opts, kindOf: device.DefaultKind}
	if opts.StorageObjects {
		d.kindOf = device.StorageKind
	}
	return d
}

// NewFromClient returns a connected device over an existing SFTP client.
// Close closes the client.
func NewFromClient(client *sftp.Client, opts Options) *Device {
	d := New(opts)
	d.client = client
	return d
}

func (d *Device) IsConnected() bool {
	if d.client == nil {
		return false
	}
	_, err := d.client.Stat(d.opts.Root)
	return err == nil
}

func (d *Device) Connect(ctx context.Context) error {
	if d.client != nil {
		return nil
	}
	sshClient, err := dialSSH(ctx, d.opts.Host, d.opts.User, d.opts.SSH)
	if err != nil {
		return errors.WithDetails(device.ErrNotConnected, "host", d.opts.Host, "cause", err.Error())
	}
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return errors.Errorf("sftp client: %w", err)
	}
	d.ssh = sshClient
	d.client = client
	zerolog.Ctx(ctx).Debug().Str("host", d.opts.Host).Str("root", d.opts.Root).Msg("device connected")
	return nil
}

func (d *Device) CreateDirectory(_ context.Context, p string) error {
	if err := d.checkClient(); err != nil {
		return err
	}
	abs := d.remote(p)
	if err := d.client.MkdirAll(abs); err != nil {
		return errors.Errorf("sftp mkdir %s: %w", abs, err)
	}
	return nil
}

func (d *Device) UploadFile(ctx context.Context, src io.Reader, p string) (err error) {
	if err := d.checkClient(); err != nil {
		return err
	}
	abs := d.remote(p)
	if err := d.client.MkdirAll(path.Dir(abs)); err != nil {
		return errors.Errorf("sftp mkdir %s: %w", path.Dir(abs), err)
	}

	f, err := d.client.OpenFile(abs, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return errors.Errorf("sftp create %s: %w", abs, err)
	}
	s, err := d.openStream(ctx, f)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = errors.Errorf("sftp close %s: %w", abs, cerr)
		}
	}()

	buf := make([]byte, copyBufSize)
	if _, err := io.CopyBuffer(s, src, buf); err != nil {
		return errors.Errorf("sftp upload %s: %w", abs, err)
	}
	if err := s.Flush(); err != nil {
		return errors.Errorf("sftp commit %s: %w", abs, err)
	}
	return nil
}

func (d *Device) DownloadFile(ctx context.Context, p string, dst io.Writer) error {
	if err := d.checkClient(); err != nil {
		return err
	}
	abs := d.remote(p)
	f, err := d.client.Open(abs)
	if err != nil {
		return errors.Errorf("sftp open %s: %w", abs, err)
	}
	s, err := d.openStream(ctx, f)
	if err != nil {
		return err
	}
	defer s.Close()

	buf := make([]byte, copyBufSize)
	if _, err := io.CopyBuffer(dst, s, buf); err != nil {
		return errors.Errorf("sftp download %s: %w", abs, err)
	}
	return nil
}

//nolint:ireturn // implements device.Device
func (d *Device) GetDirectoryInfo(_ context.Context, p string) (device.Directory, error) {
	if err := d.checkClient(); err != nil {
		return nil, err
	}
	abs := d.remote(p)
	info, err := d.client.Stat(abs)
	if err != nil {
		return nil, errors.Errorf("sftp stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", p)
	}
	return device.NewDirectory(d, lister{d}, p, d.kindOf), nil
}

func (d *Device) Close() error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	if d.ssh != nil {
		if sshErr := d.ssh.Close(); sshErr != nil && err == nil {
			err = sshErr
		}
	}
	d.client = nil
	d.ssh = nil
	return err
}

func (d *Device) checkClient() error {
	if d.client == nil {
		return device.ErrNotConnected
	}
	return nil
}

// remote maps a device path to a path on the SFTP server.
func (d *Device) remote(p string) string {
	return path.Join(d.opts.Root, device.Clean(p))
}

func (d *Device) openStream(ctx context.Context, f *sftp.File) (*stream.Adapter, error) {
	_, canSync := d.client.HasExtension(fsyncExtension)
	s, err := stream.New(&fileNative{file: f, canSync: canSync}, stream.WithLogger(zerolog.Ctx(ctx)))
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// lister lists directories in device path space.
type lister struct {
	d *Device
}

func (l lister) ReadDir(p string) ([]fs.FileInfo, error) {
	return l.d.client.ReadDir(l.d.remote(p))
}
