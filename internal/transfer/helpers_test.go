package transfer

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/mtpsync/internal/device"
	"github.com/bamsammich/mtpsync/internal/device/fsdev"
	"github.com/bamsammich/mtpsync/internal/event"
)

// newPhone returns a connected in-memory device:
//
//	/Internal shared storage/DCIM/Camera/IMG_0001.jpg
//	/Internal shared storage/DCIM/Camera/IMG_0002.jpg
//	/Internal shared storage/Download/notes.txt
//	/Internal shared storage/readme.txt
func newPhone(t *testing.T, opts ...fsdev.Option) *fsdev.Device {
	t.Helper()
	fs := memfs.New()
	for name, content := range phoneFiles {
		require.NoError(t, util.WriteFile(fs, name, []byte(content), 0o644))
	}
	dev := fsdev.New(fs, opts...)
	require.NoError(t, dev.Connect(context.Background()))
	return dev
}

var phoneFiles = map[string]string{
	"/Internal shared storage/DCIM/Camera/IMG_0001.jpg": "jpeg one",
	"/Internal shared storage/DCIM/Camera/IMG_0002.jpg": "jpeg two",
	"/Internal shared storage/Download/notes.txt":        "notes",
	"/Internal shared storage/readme.txt":                "readme",
}

// newEmptyDevice returns a connected, empty in-memory device.
func newEmptyDevice(t *testing.T) *fsdev.Device {
	t.Helper()
	dev := fsdev.New(memfs.New())
	require.NoError(t, dev.Connect(context.Background()))
	return dev
}

// writeTree creates files (slash-separated relative path -> content)
// below root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// localTree lists every entry below root as a relative slash path;
// directories carry a trailing slash.
func localTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			rel += "/"
		}
		out = append(out, rel)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

// deviceTree lists every entry below dir on dev, in the same form as
// localTree.
func deviceTree(t *testing.T, dev device.Device, dir string) []string {
	t.Helper()
	ctx := context.Background()
	d, err := dev.GetDirectoryInfo(ctx, dir)
	require.NoError(t, err)
	var out []string
	err = d.EnumerateFileSystemInfos(ctx, "*", device.AllDirectories, func(e device.Entry) error {
		rel := strings.TrimPrefix(e.FullName, strings.TrimSuffix(d.FullName(), "/")+"/")
		if e.IsContainer() {
			rel += "/"
		}
		out = append(out, rel)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

func readDeviceFile(t *testing.T, dev device.Device, p string) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, dev.DownloadFile(context.Background(), p, &sb))
	return sb.String()
}

func readLocalFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(data)
}

// recordingDevice counts every device call other than IsConnected.
type recordingDevice struct {
	device.Device
	mu    sync.Mutex
	calls []string
}

func (r *recordingDevice) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recordingDevice) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingDevice) CreateDirectory(ctx context.Context, p string) error {
	r.record("CreateDirectory " + p)
	return r.Device.CreateDirectory(ctx, p)
}

func (r *recordingDevice) UploadFile(ctx context.Context, src io.Reader, p string) error {
	r.record("UploadFile " + p)
	return r.Device.UploadFile(ctx, src, p)
}

func (r *recordingDevice) DownloadFile(ctx context.Context, p string, dst io.Writer) error {
	r.record("DownloadFile " + p)
	return r.Device.DownloadFile(ctx, p, dst)
}

func (r *recordingDevice) GetDirectoryInfo(ctx context.Context, p string) (device.Directory, error) {
	r.record("GetDirectoryInfo " + p)
	return r.Device.GetDirectoryInfo(ctx, p)
}

// copyToDevice records the local paths FileEntry.CopyTo writes to.
type copyToDevice struct {
	device.Device
	mu     sync.Mutex
	copied []string
}

func (d *copyToDevice) GetDirectoryInfo(ctx context.Context, p string) (device.Directory, error) {
	dir, err := d.Device.GetDirectoryInfo(ctx, p)
	if err != nil {
		return nil, err
	}
	return copyToDirectory{Directory: dir, dev: d}, nil
}

type copyToDirectory struct {
	device.Directory
	dev *copyToDevice
}

func (d copyToDirectory) EnumerateFiles(ctx context.Context, fn func(device.FileEntry) error) error {
	return d.Directory.EnumerateFiles(ctx, func(f device.FileEntry) error {
		return fn(copyToEntry{FileEntry: f, dev: d.dev})
	})
}

type copyToEntry struct {
	device.FileEntry
	dev *copyToDevice
}

func (e copyToEntry) CopyTo(ctx context.Context, localPath string, opts ...device.CopyOption) error {
	e.dev.mu.Lock()
	e.dev.copied = append(e.dev.copied, localPath)
	e.dev.mu.Unlock()
	return e.FileEntry.CopyTo(ctx, localPath, opts...)
}

// faultyDevice fails downloads of one path.
type faultyDevice struct {
	device.Device
	failOn string
}

func (d faultyDevice) DownloadFile(ctx context.Context, p string, dst io.Writer) error {
	if p == d.failOn {
		// Deliver some bytes first so a truncated target would be visible.
		_, _ = dst.Write([]byte("partial"))
		return errBoom
	}
	return d.Device.DownloadFile(ctx, p, dst)
}

// corruptingDevice flips the first byte of every upload.
type corruptingDevice struct {
	device.Device
}

func (d corruptingDevice) UploadFile(ctx context.Context, src io.Reader, p string) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		data[0] ^= 0xff
	}
	return d.Device.UploadFile(ctx, strings.NewReader(string(data)), p)
}

// drain returns every event buffered in ch.
func drain(ch chan event.Event) []event.Event {
	var out []event.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventsOf(evs []event.Event, typ event.Type) []string {
	var out []string
	for _, ev := range evs {
		if ev.Type == typ {
			out = append(out, ev.Path)
		}
	}
	return out
}
