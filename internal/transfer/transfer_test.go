package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/mtpsync/internal/device"
	"github.com/bamsammich/mtpsync/internal/device/fsdev"
	"github.com/bamsammich/mtpsync/internal/event"
	"github.com/bamsammich/mtpsync/internal/stats"
)

var errBoom = errors.New("boom")

type operation struct {
	name string
	call func(ctx context.Context, dev device.Device, source, destination string) error
}

var operations = []operation{
	{"DownloadFile", func(ctx context.Context, dev device.Device, s, d string) error {
		return DownloadFile(ctx, dev, s, d)
	}},
	{"UploadFile", func(ctx context.Context, dev device.Device, s, d string) error {
		return UploadFile(ctx, dev, s, d)
	}},
	{"DownloadFolder", func(ctx context.Context, dev device.Device, s, d string) error {
		return DownloadFolder(ctx, dev, s, d, true)
	}},
	{"UploadFolder", func(ctx context.Context, dev device.Device, s, d string) error {
		return UploadFolder(ctx, dev, s, d, true)
	}},
}

func TestValidPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path string
		want bool
	}{
		{"/dest", true},
		{"relative/dir", true},
		{"name with spaces.txt", true},
		{"", false},
		{"   ", false},
		{"\t\n", false},
		{"bad\x00name", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPath(tt.path), "%q", tt.path)
	}
}

func TestOperations_InvalidArgumentBeforeIO(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for _, op := range operations {
		op := op
		t.Run(op.name, func(t *testing.T) {
			t.Parallel()
			local := t.TempDir()
			rec := &recordingDevice{Device: newPhone(t)}

			err := op.call(ctx, rec, "/Internal shared storage", "")
			require.ErrorIs(t, err, ErrInvalidArgument)
			assert.Contains(t, err.Error(), "destination")

			err = op.call(ctx, rec, "  ", filepath.Join(local, "out"))
			require.ErrorIs(t, err, ErrInvalidArgument)
			assert.Contains(t, err.Error(), "source")

			// Source is checked first.
			err = op.call(ctx, rec, "", "")
			require.ErrorIs(t, err, ErrInvalidArgument)
			assert.Contains(t, err.Error(), "source")

			err = op.call(ctx, nil, "/a", "/b")
			require.ErrorIs(t, err, ErrInvalidArgument)

			assert.Empty(t, rec.Calls())
			assert.Empty(t, localTree(t, local))
		})
	}
}

func TestOperations_NotConnectedBeforeIO(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for _, op := range operations {
		op := op
		t.Run(op.name, func(t *testing.T) {
			t.Parallel()
			local := t.TempDir()
			writeTree(t, local, map[string]string{"src/a.txt": "a"})

			rec := &recordingDevice{Device: fsdev.New(memfs.New())} // never connected
			var source, destination string
			if strings.HasPrefix(op.name, "Download") {
				source, destination = "/DCIM", filepath.Join(local, "out")
			} else {
				source, destination = filepath.Join(local, "src"), "/dest"
			}

			err := op.call(ctx, rec, source, destination)
			require.ErrorIs(t, err, device.ErrNotConnected)
			assert.Empty(t, rec.Calls())
			assert.Equal(t, []string{"src/", "src/a.txt"}, localTree(t, local))
		})
	}
}

func TestUploadFolder_Recursive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "root")
	writeTree(t, root, map[string]string{
		"a.txt":     "alpha",
		"sub/b.txt": "bravo",
	})
	dev := newEmptyDevice(t)
	collector := stats.NewCollector()

	require.NoError(t, UploadFolder(ctx, dev, root, "/dest", true, WithStats(collector)))

	assert.Equal(t, []string{"a.txt", "sub/", "sub/b.txt"}, deviceTree(t, dev, "/dest"))
	assert.Equal(t, "alpha", readDeviceFile(t, dev, "/dest/a.txt"))
	assert.Equal(t, "bravo", readDeviceFile(t, dev, "/dest/sub/b.txt"))

	snap := collector.Snapshot()
	assert.Equal(t, int64(2), snap.FilesCopied)
	assert.Equal(t, int64(1), snap.DirsCreated)
	assert.Equal(t, int64(len("alpha")+len("bravo")), snap.BytesCopied)
}

func TestUploadFolder_CreatesDirectoriesBeforeChildren(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"x/y/z.txt": "z",
		"x/w.txt":   "w",
	})
	rec := &recordingDevice{Device: newEmptyDevice(t)}

	require.NoError(t, UploadFolder(ctx, rec, root, "/dest", true))

	calls := rec.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "CreateDirectory /dest", calls[0])
	index := func(call string) int {
		for i, c := range calls {
			if c == call {
				return i
			}
		}
		t.Fatalf("missing call %q in %v", call, calls)
		return -1
	}
	assert.Less(t, index("CreateDirectory /dest/x"), index("UploadFile /dest/x/w.txt"))
	assert.Less(t, index("CreateDirectory /dest/x/y"), index("UploadFile /dest/x/y/z.txt"))
}

func TestUploadFolder_Flat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":     "alpha",
		"c.txt":     "charlie",
		"sub/b.txt": "bravo",
	})
	dev := newEmptyDevice(t)

	require.NoError(t, UploadFolder(ctx, dev, root, "/dest", false))
	assert.Equal(t, []string{"a.txt", "c.txt"}, deviceTree(t, dev, "/dest"))
}

func TestUploadFolder_EmptySourceStillCreatesDestination(t *testing.T) {
	t.Parallel()
	dev := newEmptyDevice(t)
	require.NoError(t, UploadFolder(context.Background(), dev, t.TempDir(), "/empty", true))
	assert.Empty(t, deviceTree(t, dev, "/empty"))
}

func TestUploadFolder_SourceNotADirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local := t.TempDir()
	writeTree(t, local, map[string]string{"a.txt": "a"})
	dev := newEmptyDevice(t)

	assert.Error(t, UploadFolder(ctx, dev, filepath.Join(local, "a.txt"), "/dest", true))
	assert.Error(t, UploadFolder(ctx, dev, filepath.Join(local, "a.txt"), "/dest", false))
	assert.Error(t, UploadFolder(ctx, dev, filepath.Join(local, "missing"), "/dest", true))
}

// Not parallel: t.Chdir changes the process working directory.
func TestUploadFolder_CurrentDirectory(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":     "alpha",
		"sub/b.txt": "bravo",
	})
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(root))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	dev := newEmptyDevice(t)
	require.NoError(t, UploadFolder(ctx, dev, ".", "/dest", true))
	assert.Equal(t, []string{"a.txt", "sub/", "sub/b.txt"}, deviceTree(t, dev, "/dest"))

	dev = newEmptyDevice(t)
	require.NoError(t, UploadFolder(ctx, dev, ".", "/dest", false))
	assert.Equal(t, []string{"a.txt"}, deviceTree(t, dev, "/dest"))

	dev = newEmptyDevice(t)
	require.NoError(t, UploadFolder(ctx, dev, "./sub/", "/dest", true))
	assert.Equal(t, []string{"b.txt"}, deviceTree(t, dev, "/dest"))
}

func TestUploadFolder_FollowsFileLinks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	base := t.TempDir()
	root := filepath.Join(base, "root")
	writeTree(t, base, map[string]string{
		"real.txt":      "linked",
		"root/a.txt":    "alpha",
		"elsewhere/c.x": "c",
	})
	require.NoError(t, os.Symlink(filepath.Join(base, "real.txt"), filepath.Join(root, "link.txt")))
	require.NoError(t, os.Symlink(filepath.Join(base, "missing.txt"), filepath.Join(root, "dangling.txt")))
	require.NoError(t, os.Symlink(filepath.Join(base, "elsewhere"), filepath.Join(root, "linkdir")))

	for _, recursive := range []bool{false, true} {
		dev := newEmptyDevice(t)
		events := make(chan event.Event, 64)
		collector := stats.NewCollector()

		require.NoError(t, UploadFolder(ctx, dev, root, "/dest", recursive, WithEvents(events), WithStats(collector)))

		assert.Equal(t, []string{"a.txt", "link.txt"}, deviceTree(t, dev, "/dest"), "recursive=%v", recursive)
		assert.Equal(t, "linked", readDeviceFile(t, dev, "/dest/link.txt"))

		skipped := eventsOf(drain(events), event.FileSkipped)
		if recursive {
			assert.ElementsMatch(t, []string{"dangling.txt", "linkdir"}, skipped)
		} else {
			assert.Equal(t, []string{"dangling.txt"}, skipped)
		}
		assert.Equal(t, int64(len(skipped)), collector.Snapshot().FilesSkipped)
	}
}

func TestDownloadFolder_Recursive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dev := newPhone(t)
	dst := filepath.Join(t.TempDir(), "backup")

	require.NoError(t, DownloadFolder(ctx, dev, "/Internal shared storage", dst, true))

	// Destination paths are exactly the source's relative paths.
	assert.Equal(t, deviceTree(t, dev, "/Internal shared storage"), localTree(t, dst))
	for name, content := range phoneFiles {
		rel := strings.TrimPrefix(name, "/Internal shared storage/")
		assert.Equal(t, content, readLocalFile(t, filepath.Join(dst, filepath.FromSlash(rel))))
	}
}

func TestDownloadFolder_Flat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dev := newPhone(t)
	dst := t.TempDir()

	require.NoError(t, DownloadFolder(ctx, dev, "/Internal shared storage", dst, false))
	assert.Equal(t, []string{"readme.txt"}, localTree(t, dst))
}

func TestDownloadFolder_FlatCopiesThroughFileEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dev := &copyToDevice{Device: newPhone(t)}
	dst := t.TempDir()
	collector := stats.NewCollector()

	require.NoError(t, DownloadFolder(ctx, dev, "/Internal shared storage", dst, false,
		WithVerify(true), WithStats(collector)))

	require.Len(t, dev.copied, 1)
	assert.Equal(t, dst, filepath.Dir(dev.copied[0]))
	assert.True(t, strings.HasSuffix(dev.copied[0], ".mtpsync-tmp"), dev.copied[0])
	assert.Equal(t, "readme", readLocalFile(t, filepath.Join(dst, "readme.txt")))
	assert.Equal(t, []string{"readme.txt"}, localTree(t, dst))

	snap := collector.Snapshot()
	assert.Equal(t, int64(len("readme")), snap.BytesCopied)
	assert.Equal(t, int64(1), snap.FilesVerified)

	// Recursive downloads walk entries, not file handles.
	dev.copied = nil
	require.NoError(t, DownloadFolder(ctx, dev, "/Internal shared storage", t.TempDir(), true))
	assert.Empty(t, dev.copied)
}

func TestDownloadFolder_FromDeviceRoot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dev := newPhone(t, fsdev.WithStorageObjects(true))
	dst := t.TempDir()

	require.NoError(t, DownloadFolder(ctx, dev, "/", dst, true))
	assert.Equal(t, []string{
		"Internal shared storage/",
		"Internal shared storage/DCIM/",
		"Internal shared storage/DCIM/Camera/",
		"Internal shared storage/DCIM/Camera/IMG_0001.jpg",
		"Internal shared storage/DCIM/Camera/IMG_0002.jpg",
		"Internal shared storage/Download/",
		"Internal shared storage/Download/notes.txt",
		"Internal shared storage/readme.txt",
	}, localTree(t, dst))
}

func TestDownloadFolder_FaultAbortsRemainingTree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dev := faultyDevice{Device: newPhone(t), failOn: "/Internal shared storage/DCIM/Camera/IMG_0002.jpg"}
	dst := t.TempDir()
	events := make(chan event.Event, 64)

	err := DownloadFolder(ctx, dev, "/Internal shared storage", dst, true, WithEvents(events))
	require.ErrorIs(t, err, errBoom)

	// Entries before the fault stay; nothing after it is touched and no
	// temporary or truncated file is left behind.
	assert.Equal(t, []string{
		"DCIM/",
		"DCIM/Camera/",
		"DCIM/Camera/IMG_0001.jpg",
	}, localTree(t, dst))
	assert.Equal(t, []string{"DCIM/Camera/IMG_0002.jpg"}, eventsOf(drain(events), event.FileFailed))
}

func TestDownloadFolder_MissingSource(t *testing.T) {
	t.Parallel()
	err := DownloadFolder(context.Background(), newPhone(t), "/nope", t.TempDir(), true)
	assert.Error(t, err)
}

func TestDownloadFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dev := newPhone(t)
	local := t.TempDir()
	dst := filepath.Join(local, "photo.jpg")
	require.NoError(t, os.WriteFile(dst, []byte("an older, longer photo"), 0o644))

	require.NoError(t, DownloadFile(ctx, dev, "/Internal shared storage/DCIM/Camera/IMG_0001.jpg", dst))
	assert.Equal(t, "jpeg one", readLocalFile(t, dst))
	assert.Equal(t, []string{"photo.jpg"}, localTree(t, local))
}

func TestDownloadFile_MissingSourceLeavesNothing(t *testing.T) {
	t.Parallel()
	local := t.TempDir()
	err := DownloadFile(context.Background(), newPhone(t), "/missing.jpg", filepath.Join(local, "x.jpg"))
	require.Error(t, err)
	assert.Empty(t, localTree(t, local))
}

func TestUploadFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local := t.TempDir()
	writeTree(t, local, map[string]string{"song.mp3": "la la la"})
	dev := newEmptyDevice(t)

	require.NoError(t, UploadFile(ctx, dev, filepath.Join(local, "song.mp3"), "/Music/track01.mp3"))
	assert.Equal(t, "la la la", readDeviceFile(t, dev, "/Music/track01.mp3"))

	err := UploadFile(ctx, dev, local, "/Music/dir.mp3")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Error(t, UploadFile(ctx, dev, filepath.Join(local, "missing"), "/Music/x"))
}

func TestVerify(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "alpha", "sub/b.txt": "bravo"})
	dev := newEmptyDevice(t)
	events := make(chan event.Event, 64)
	collector := stats.NewCollector()

	require.NoError(t, UploadFolder(ctx, dev, root, "/dest", true,
		WithVerify(true), WithEvents(events), WithStats(collector)))

	assert.ElementsMatch(t, []string{"a.txt", "sub/b.txt"}, eventsOf(drain(events), event.VerifyOK))
	assert.Equal(t, int64(2), collector.Snapshot().FilesVerified)

	dst := t.TempDir()
	require.NoError(t, DownloadFolder(ctx, dev, "/dest", dst, true, WithVerify(true)))
	assert.Equal(t, "bravo", readLocalFile(t, filepath.Join(dst, "sub", "b.txt")))
}

func TestVerify_Mismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "alpha"})
	dev := corruptingDevice{Device: newEmptyDevice(t)}
	events := make(chan event.Event, 64)

	err := UploadFolder(ctx, dev, root, "/dest", true, WithVerify(true), WithEvents(events))
	require.ErrorIs(t, err, ErrVerifyFailed)
	assert.Equal(t, []string{"a.txt"}, eventsOf(drain(events), event.VerifyFailed))

	// Without verification the corruption goes unnoticed.
	require.NoError(t, UploadFolder(ctx, dev, root, "/dest", true))
}

func TestFilter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dev := newPhone(t)
	dst := t.TempDir()
	events := make(chan event.Event, 64)

	require.NoError(t, DownloadFolder(ctx, dev, "/Internal shared storage", dst, true,
		WithFilter("Download", "**/*0002.jpg"), WithEvents(events)))

	assert.Equal(t, []string{
		"DCIM/",
		"DCIM/Camera/",
		"DCIM/Camera/IMG_0001.jpg",
		"readme.txt",
	}, localTree(t, dst))
	assert.ElementsMatch(t,
		[]string{"DCIM/Camera/IMG_0002.jpg", "Download/notes.txt"},
		eventsOf(drain(events), event.FileSkipped))
}

func TestFilter_BadPattern(t *testing.T) {
	t.Parallel()
	rec := &recordingDevice{Device: newPhone(t)}
	err := DownloadFolder(context.Background(), rec, "/", t.TempDir(), true, WithFilter("["))
	require.ErrorIs(t, err, doublestar.ErrBadPattern)
	assert.Empty(t, rec.Calls())
}

func TestDryRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "alpha", "sub/b.txt": "bravo"})
	rec := &recordingDevice{Device: newEmptyDevice(t)}
	events := make(chan event.Event, 64)

	require.NoError(t, UploadFolder(ctx, rec, root, "/dest", true, WithDryRun(true), WithEvents(events)))
	assert.Empty(t, rec.Calls())
	assert.ElementsMatch(t, []string{"a.txt", "sub/b.txt"}, eventsOf(drain(events), event.FileSkipped))

	dst := filepath.Join(t.TempDir(), "out")
	require.NoError(t, DownloadFolder(ctx, newPhone(t), "/", dst, true, WithDryRun(true)))
	_, err := os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
}

func TestBWLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	writeTree(t, root, map[string]string{"big.bin": strings.Repeat("x", 96*1024)})
	dev := newEmptyDevice(t)

	// The first 64 KiB pass on the initial burst; the rest waits ~0.5s.
	start := time.Now()
	require.NoError(t, UploadFolder(ctx, dev, root, "/dest", true, WithBWLimit(64*1024)))
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)

	err := UploadFolder(ctx, dev, root, "/dest", true, WithBWLimit(-1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewBWLimiter(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1<<20, NewBWLimiter(100<<20).Burst())
	assert.Equal(t, 4096, NewBWLimiter(4096).Burst())
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "alpha"})
	err := UploadFolder(ctx, newEmptyDevice(t), root, "/dest", true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransferEvents(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "alpha", "sub/b.txt": "bravo"})
	events := make(chan event.Event, 64)

	require.NoError(t, UploadFolder(context.Background(), newEmptyDevice(t), root, "/dest", true, WithEvents(events)))

	evs := drain(events)
	require.NotEmpty(t, evs)
	assert.Equal(t, event.TransferStarted, evs[0].Type)
	assert.Equal(t, event.TransferComplete, evs[len(evs)-1].Type)
	assert.Equal(t, []string{"sub"}, eventsOf(evs, event.DirCreated))
	assert.ElementsMatch(t, []string{"a.txt", "sub/b.txt"}, eventsOf(evs, event.FileStarted))
	assert.ElementsMatch(t, []string{"a.txt", "sub/b.txt"}, eventsOf(evs, event.FileCompleted))
}

func TestRelativePath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		root, full, sep, want string
	}{
		{"/dest", "/dest/a.txt", "/", "a.txt"},
		{"/dest/", "/dest/sub/b.txt", "/", "sub/b.txt"},
		{"/", "/Internal shared storage", "/", "Internal shared storage"},
		{`C:\src`, `C:\src\sub\b.txt`, `\`, `sub\b.txt`},
	}
	for _, tt := range tests {
		got, err := relativePath(tt.root, tt.full, tt.sep)
		require.NoError(t, err, "%s in %s", tt.full, tt.root)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range [][2]string{
		{"/dest", "/destination/a.txt"},
		{"/dest", "/dest"},
		{"/dest", "/other/a.txt"},
	} {
		_, err := relativePath(bad[0], bad[1], "/")
		assert.Error(t, err, "%s in %s", bad[1], bad[0])
	}
}

func TestCleanupTempFiles(t *testing.T) {
	// Not parallel: shares the package-wide registry.
	p := filepath.Join(t.TempDir(), ".x.mtpsync-tmp")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	tmpFiles.add(p)

	CleanupTempFiles()
	_, err := os.Stat(p)
	assert.True(t, os.IsNotExist(err))
}
