package sftpdev_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/mtpsync/internal/device"
	"github.com/bamsammich/mtpsync/internal/device/sftpdev"
)

// newInMemDevice wires an SFTP client to an in-process, in-memory SFTP
// server over pipes.
func newInMemDevice(t *testing.T) *sftpdev.Device {
	t.Helper()

	clientToServerR, clientToServerW := io.Pipe()
	serverToClientR, serverToClientW := io.Pipe()

	server := sftp.NewRequestServer(struct {
		io.Reader
		io.WriteCloser
	}{clientToServerR, serverToClientW}, sftp.InMemHandler())
	go func() { _ = server.Serve() }()

	client, err := sftp.NewClientPipe(serverToClientR, clientToServerW)
	require.NoError(t, err)

	dev := sftpdev.NewFromClient(client, sftpdev.Options{Root: "/"})
	t.Cleanup(func() {
		_ = dev.Close()
		_ = server.Close()
	})
	return dev
}

func TestDevice_NotConnected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dev := sftpdev.New(sftpdev.Options{Host: "phone.invalid"})

	assert.False(t, dev.IsConnected())
	assert.ErrorIs(t, dev.CreateDirectory(ctx, "/x"), device.ErrNotConnected)
	assert.ErrorIs(t, dev.UploadFile(ctx, bytes.NewReader(nil), "/x"), device.ErrNotConnected)
	assert.ErrorIs(t, dev.DownloadFile(ctx, "/x", io.Discard), device.ErrNotConnected)
	_, err := dev.GetDirectoryInfo(ctx, "/")
	assert.ErrorIs(t, err, device.ErrNotConnected)
	assert.NoError(t, dev.Close())
}

func TestDevice_UploadDownloadEnumerate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dev := newInMemDevice(t)
	require.True(t, dev.IsConnected())

	require.NoError(t, dev.CreateDirectory(ctx, "/DCIM/Camera"))

	photo := bytes.Repeat([]byte{0xff, 0xd8, 0xff, 0xe0}, 50_000)
	require.NoError(t, dev.UploadFile(ctx, bytes.NewReader(photo), "/DCIM/Camera/IMG_0001.jpg"))
	require.NoError(t, dev.UploadFile(ctx, bytes.NewReader([]byte("hi")), "/DCIM/note.txt"))

	var got bytes.Buffer
	require.NoError(t, dev.DownloadFile(ctx, "/DCIM/Camera/IMG_0001.jpg", &got))
	assert.Equal(t, photo, got.Bytes())

	dir, err := dev.GetDirectoryInfo(ctx, "/DCIM")
	require.NoError(t, err)

	var names []string
	err = dir.EnumerateFileSystemInfos(ctx, "*", device.AllDirectories, func(e device.Entry) error {
		names = append(names, e.FullName+":"+e.Kind.String())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/DCIM/Camera:directory",
		"/DCIM/Camera/IMG_0001.jpg:file",
		"/DCIM/note.txt:file",
	}, names)

	_, err = dev.GetDirectoryInfo(ctx, "/DCIM/note.txt")
	assert.Error(t, err)
}
