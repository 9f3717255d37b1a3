package tilepkg

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
)

// fileSource implements ByteSource over a local *os.File. It is stateless
// with respect to "must reload" tracking — local files have no ETag and
// are assumed not to mutate mid-session (§5).
type fileSource struct {
	file   *os.File
	size   int64
	closed atomic.Bool
}

// NewFileSource opens path and returns a ByteSource backed by it.
func NewFileSource(path string) (ByteSource, error) {
	f, err := os.Open(path) //nolint:gosec // caller-supplied archive path is the whole point of this accessor
	if err != nil {
		return nil, fmt.Errorf("tilepkg: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("tilepkg: stat %s: %w", path, err)
	}
	return &fileSource{file: f, size: info.Size()}, nil
}

func (s *fileSource) Size() int64 { return s.size }

func (s *fileSource) ETag() string { return "" }

func (s *fileSource) Read(_ context.Context, offset, length int64) (ReadResult, error) {
	if s.closed.Load() {
		return ReadResult{}, ErrClosed
	}
	if offset < 0 || length < 0 {
		return ReadResult{}, fmt.Errorf("tilepkg: read range %d+%d: negative offset or length", offset, length)
	}
	if offset >= s.size {
		return ReadResult{}, fmt.Errorf("%w: offset %d beyond size %d", ErrTransport, offset, s.size)
	}
	if offset+length > s.size {
		length = s.size - offset
	}
	buf := make([]byte, length)
	if _, err := s.file.ReadAt(buf, offset); err != nil {
		return ReadResult{}, fmt.Errorf("%w: %v", ErrTransport, err) //nolint:errorlint // wrapping a non-sentinel underlying error
	}
	return ReadResult{Bytes: buf}, nil
}

// Close releases the underlying file descriptor. Reads issued after Close
// returns ErrClosed rather than an *os.File "file already closed" error.
func (s *fileSource) Close() error {
	s.closed.Store(true)
	return s.file.Close()
}
