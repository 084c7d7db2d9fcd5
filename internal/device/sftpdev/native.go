package sftpdev

import (
	"encoding/binary"

	"github.com/pkg/sftp"

	"github.com/bamsammich/mtpsync/internal/stream"
)

const fsyncExtension = "fsync@openssh.com"

var _ stream.Native = (*fileNative)(nil)

// fileNative exposes an open *sftp.File as a native stream handle.
type fileNative struct {
	file    *sftp.File
	canSync bool
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
	info, err := n.file.Stat()
	if err != nil {
		return stream.Stat{}, err
	}
	return stream.Stat{Size: info.Size()}, nil
}

func (n *fileNative) SetSize(size int64) error {
	return n.file.Truncate(size)
}

// Commit asks the server to fsync when it supports the OpenSSH extension;
// otherwise writes are already committed when acknowledged.
func (n *fileNative) Commit(stream.CommitFlags) error {
	if !n.canSync {
		return nil
	}
	return n.file.Sync()
}

func (n *fileNative) Release() error {
	return n.file.Close()
}
