package fsdev

import (
	"encoding/binary"

	"github.com/go-git/go-billy/v5"

	"github.com/bamsammich/mtpsync/internal/stream"
)

var _ stream.Native = (*fileNative)(nil)

// fileNative exposes an open billy.File as a native stream handle.
type fileNative struct {
	fs   billy.Filesystem
	file billy.File
	path string
}

func (n *fileNative) Read(p []byte) (int, error) {
	return n.file.Read(p)
}

func (n *fileNative) Write(p, written []byte) error {
	c, err := n.file.Write(p)
	binary.LittleEndian.PutUint32(written, uint32(c)) //nolint:gosec // G115: c <= len(p)
	return err
}

func (n *fileNative) Seek(offset int64, origin int) (int64, error) {
	return n.file.Seek(offset, origin)
}

func (n *fileNative) Stat() (stream.Stat, error) {
	info, err := n.fs.Stat(n.path)
	if err != nil {
		return stream.Stat{}, err
	}
	return stream.Stat{Size: info.Size()}, nil
}

func (n *fileNative) SetSize(size int64) error {
	return n.file.Truncate(size)
}

func (n *fileNative) Commit(stream.CommitFlags) error {
	if s, ok := n.file.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

func (n *fileNative) Release() error {
	return n.file.Close()
}
