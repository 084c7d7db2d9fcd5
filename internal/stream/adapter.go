package stream

import (
	"encoding/binary"
	"io"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Compile-time interface checks.
var (
	_ io.ReadWriteSeeker = (*Adapter)(nil)
	_ io.Closer          = (*Adapter)(nil)
)

// Adapter exposes a Native handle as a seekable byte stream. It keeps no
// position of its own; every position query goes to the native cursor.
//
// An Adapter is not safe for concurrent use.
type Adapter struct {
	native  Native
	logger  *zerolog.Logger
	scratch [WriteScratchSize]byte
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used to report degraded reads.
func WithLogger(l *zerolog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// New takes ownership of native. The caller must Close the returned Adapter.
func New(native Native, opts ...Option) (*Adapter, error) {
	if native == nil {
		return nil, errors.New("stream: nil native handle")
	}
	nop := zerolog.Nop()
	a := &Adapter{native: native, logger: &nop}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (*Adapter) CanRead() bool  { return true }
func (*Adapter) CanSeek() bool  { return true }
func (*Adapter) CanWrite() bool { return true }

// Read implements io.Reader. A native read fault, like end of stream, ends
// the read with io.EOF.
func (a *Adapter) Read(p []byte) (int, error) {
	n, err := a.ReadRange(p, 0, len(p))
	if err != nil {
		return 0, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadRange reads up to count bytes into buf[offset:offset+count] and returns
// the number of bytes read. A native read fault is logged and reported as
// zero bytes read.
func (a *Adapter) ReadRange(buf []byte, offset, count int) (int, error) {
	if err := a.checkOpen(); err != nil {
		return 0, err
	}
	if err := checkRange(buf, offset, count); err != nil {
		return 0, err
	}

	// The native handle always fills its target from element 0.
	target := buf[:count]
	if offset > 0 {
		target = make([]byte, count)
	}

	n, err := a.native.Read(target)
	if err != nil && !errors.Is(err, io.EOF) {
		a.logger.Warn().Err(err).Int("count", count).Msg("native read failed, reporting end of stream")
		return 0, nil
	}
	n = max(0, min(n, count))

	if offset > 0 {
		copy(buf[offset:], target[:n])
	}
	return n, nil
}

// Write implements io.Writer.
func (a *Adapter) Write(p []byte) (int, error) {
	if err := a.WriteRange(p, 0, len(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteRange writes buf[offset:offset+count] at the native cursor.
func (a *Adapter) WriteRange(buf []byte, offset, count int) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	if err := checkRange(buf, offset, count); err != nil {
		return err
	}

	src := buf[:count]
	if offset > 0 {
		src = make([]byte, count)
		copy(src, buf[offset:offset+count])
	}

	clear(a.scratch[:])
	if err := a.native.Write(src, a.scratch[:]); err != nil {
		return transportFault("write", err)
	}
	if written := int(binary.LittleEndian.Uint32(a.scratch[:4])); written < count {
		return transportFault("write", errors.WithDetails(io.ErrShortWrite, "written", written, "count", count))
	}
	return nil
}

// Seek implements io.Seeker. whence must be io.SeekStart, io.SeekCurrent or
// io.SeekEnd.
func (a *Adapter) Seek(offset int64, whence int) (int64, error) {
	if err := a.checkOpen(); err != nil {
		return 0, err
	}

	var origin int
	switch whence {
	case io.SeekStart:
		origin = 0
	case io.SeekCurrent:
		origin = 1
	case io.SeekEnd:
		origin = 2
	default:
		return 0, errors.WithDetails(ErrInvalidRange, "whence", whence)
	}

	pos, err := a.native.Seek(offset, origin)
	if err != nil {
		return 0, transportFault("seek", err)
	}
	return pos, nil
}

// Position returns the native cursor position.
func (a *Adapter) Position() (int64, error) {
	return a.Seek(0, io.SeekCurrent)
}

// SetPosition moves the native cursor to pos.
func (a *Adapter) SetPosition(pos int64) error {
	_, err := a.Seek(pos, io.SeekStart)
	return err
}

// Length returns the stream size reported by the native handle.
func (a *Adapter) Length() (int64, error) {
	if err := a.checkOpen(); err != nil {
		return 0, err
	}
	st, err := a.native.Stat()
	if err != nil {
		return 0, transportFault("stat", err)
	}
	return st.Size, nil
}

// SetLength resizes the stream.
func (a *Adapter) SetLength(size int64) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	if err := a.native.SetSize(size); err != nil {
		return transportFault("set size", err)
	}
	return nil
}

// Flush commits pending writes.
func (a *Adapter) Flush() error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	if err := a.native.Commit(CommitDefault); err != nil {
		return transportFault("commit", err)
	}
	return nil
}

// Close releases the native handle. Closing twice is a no-op.
func (a *Adapter) Close() error {
	if a.native == nil {
		return nil
	}
	native := a.native
	a.native = nil
	if err := native.Release(); err != nil {
		return transportFault("release", err)
	}
	return nil
}

func (a *Adapter) checkOpen() error {
	if a.native == nil {
		return ErrDisposed
	}
	return nil
}

func checkRange(buf []byte, offset, count int) error {
	if offset < 0 || count < 0 || offset > len(buf) || count > len(buf)-offset {
		return errors.WithDetails(ErrInvalidRange, "offset", offset, "count", count, "len", len(buf))
	}
	return nil
}
