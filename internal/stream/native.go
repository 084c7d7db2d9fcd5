package stream

// WriteScratchSize is the size of the scratch buffer handed to Native.Write
// for the written-count out-parameter. Only four bytes carry the count; some
// MTP driver builds write past a smaller buffer, so sixteen are always
// allocated.
const WriteScratchSize = 16

// CommitFlags are passed through to Native.Commit.
type CommitFlags uint32

// CommitDefault requests a plain commit with no flags.
const CommitDefault CommitFlags = 0

// Stat is the metadata reported by a native stream.
type Stat struct {
	Size int64
}

// Native is a device-side, cursor-based byte stream bound to a single open
// file transfer. It is owned by exactly one Adapter and released once.
type Native interface {
	// Read fills p starting at element 0 and returns the number of bytes
	// read. A short read is not an error.
	Read(p []byte) (int, error)

	// Write writes p at the cursor and stores the number of bytes written as
	// a little-endian uint32 in written[0:4]. len(written) is at least
	// WriteScratchSize.
	Write(p []byte, written []byte) error

	// Seek moves the cursor. origin is 0 (start), 1 (current) or 2 (end).
	// It returns the new absolute position.
	Seek(offset int64, origin int) (int64, error)

	// Stat reports the stream size.
	Stat() (Stat, error)

	// SetSize resizes the stream.
	SetSize(size int64) error

	// Commit flushes pending writes to the device.
	Commit(flags CommitFlags) error

	// Release frees the handle. It is called exactly once.
	Release() error
}
