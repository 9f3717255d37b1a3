package core

import "errors"

// Sentinel errors for the error kinds named in the accessor's design.
// TileAbsent and MaxDzExceeded are not sentinel errors: both are
// represented as a (nil, nil) "no data" result from GetZxy.
var (
	// ErrMalformedArchive is returned when the end-of-central-directory
	// record or central directory itself cannot be parsed.
	ErrMalformedArchive = errors.New("tilepkg: malformed archive")

	// ErrUnsupportedCompression is returned when a tile's declared
	// compression tag is neither "none" nor a supported algorithm.
	ErrUnsupportedCompression = errors.New("tilepkg: unsupported compression")

	// ErrEtagMismatch is returned when a byte source observes a changed
	// ETag mid-session. It is recovered once by the facade: the header
	// slot is invalidated and the operation retried. A second occurrence
	// propagates to the caller.
	ErrEtagMismatch = errors.New("tilepkg: etag mismatch")

	// ErrContainmentViolation is returned when the subdivider is invoked
	// with a target tile that is not a descendant of the parent tile.
	// It indicates a programming bug, not a data problem.
	ErrContainmentViolation = errors.New("tilepkg: containment violation")

	// ErrTransport is returned when the underlying byte source read fails
	// for reasons other than an ETag mismatch.
	ErrTransport = errors.New("tilepkg: transport error")

	// ErrClosed is returned by a ByteSource whose Close method has already
	// been called.
	ErrClosed = errors.New("tilepkg: closed")
)
