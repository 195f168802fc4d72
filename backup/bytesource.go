package backup

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// ErrEndOfStream is returned by Session.Next when the source is exhausted
// after the last frame has been yielded. It is distinct from the Go-level
// io.EOF a ByteSource reports internally, and from the non-fatal
// InvalidFrame data outcome.
var ErrEndOfStream = errors.New("backup: end of stream")

// ByteSource is a seekable byte stream with absolute positioning, as
// spec.md §4.1 describes. Reads return a short slice only at true EOF; a
// short read mid-frame is reported by the caller as a TruncatedError, not by
// ByteSource itself, since only the caller knows whether a read was
// supposed to land exactly at EOF.
type ByteSource interface {
	// Read returns exactly n bytes, or fewer only if the source is
	// exhausted before n bytes could be produced (reported via the
	// returned int and a nil error, OR via io.EOF when zero bytes were
	// available at all).
	Read(n int) ([]byte, int, error)
	SeekAbsolute(pos int64) error
	SeekRelative(delta int64) error
	Position() int64
	Size() int64
	Eof() bool
}

// FileSource is a ByteSource backed by an *os.File.
type FileSource struct {
	f    *os.File
	size int64
	pos  int64
}

// OpenFileSource opens path for reading and stats its size.
func OpenFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open backup file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "unable to get size of backup file")
	}
	return &FileSource{f: f, size: info.Size()}, nil
}

// NewFileSource wraps an already-open file, trusting the caller's Seek
// position as the starting position.
func NewFileSource(f *os.File, size int64) (*FileSource, error) {
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, errors.Wrap(err, "unable to locate backup file position")
	}
	return &FileSource{f: f, size: size, pos: pos}, nil
}

func (s *FileSource) Read(n int) ([]byte, int, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(s.f, buf)
	s.pos += int64(read)
	switch err {
	case io.EOF:
		return nil, 0, io.EOF
	case io.ErrUnexpectedEOF:
		return buf[:read], read, nil
	case nil:
		return buf, read, nil
	default:
		return nil, read, errors.Wrap(err, "reading backup file")
	}
}

func (s *FileSource) SeekAbsolute(pos int64) error {
	p, err := s.f.Seek(pos, io.SeekStart)
	if err != nil {
		return errors.Wrap(err, "seeking backup file")
	}
	s.pos = p
	return nil
}

func (s *FileSource) SeekRelative(delta int64) error {
	p, err := s.f.Seek(delta, io.SeekCurrent)
	if err != nil {
		return errors.Wrap(err, "seeking backup file")
	}
	s.pos = p
	return nil
}

func (s *FileSource) Position() int64 { return s.pos }
func (s *FileSource) Size() int64     { return s.size }
func (s *FileSource) Eof() bool       { return s.pos >= s.size }

// Close releases the underlying file handle.
func (s *FileSource) Close() error { return s.f.Close() }
