// Package core holds the dependency-free types shared by the root
// tilepkg package and its internal components: the ByteSource contract
// and the sentinel errors named in the accessor's error design. It exists
// so internal/* packages can depend on these types without importing the
// root package, which itself composes internal/* — avoiding an import
// cycle while keeping ByteSource and the sentinel errors a single
// canonical type, re-exported from the root package as aliases.
package core

import (
	"context"
	"io"
)

// ReadResult carries bytes read from a ByteSource along with whatever
// caching metadata the underlying transport observed.
type ReadResult struct {
	Bytes        []byte
	ETag         string
	CacheControl string
	Expires      string
}

// ByteSource is a random-access byte range reader with a known size and an
// optional ETag. Implementations exist for local files and HTTP range
// requests.
//
// A ByteSource must tolerate concurrent, overlapping reads: the facade and
// cache may issue reads from multiple goroutines against the same source.
type ByteSource interface {
	// Size returns the total size of the underlying content in bytes.
	Size() int64

	// Read returns length bytes starting at offset. Implementations that
	// observe a validator (ETag) return it in the result regardless of
	// whether the caller supplied a prior value; ErrEtagMismatch is
	// raised by HTTP implementations when a prior ETag no longer matches.
	Read(ctx context.Context, offset, length int64) (ReadResult, error)

	// ETag returns the last-observed ETag, or "" if the source does not
	// support validators (e.g. a local file).
	ETag() string
}

// ReaderAtSource adapts a ByteSource to io.ReaderAt for components that
// only need synchronous random access and do not care about cache
// metadata.
type ReaderAtSource struct {
	ctx context.Context //nolint:containedctx // adapter bridges a context-free stdlib interface
	src ByteSource
}

// NewReaderAtSource returns an io.ReaderAt view of src bound to ctx.
func NewReaderAtSource(ctx context.Context, src ByteSource) io.ReaderAt {
	return &ReaderAtSource{ctx: ctx, src: src}
}

func (r *ReaderAtSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.src.Size() {
		return 0, io.EOF
	}
	length := int64(len(p))
	if off+length > r.src.Size() {
		length = r.src.Size() - off
	}
	res, err := r.src.Read(r.ctx, off, length)
	if err != nil {
		return 0, err
	}
	n := copy(p, res.Bytes)
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}
