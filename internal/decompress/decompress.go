// Package decompress applies a TilePackage's declared tile compression to
// raw bundle-slab bytes. It recognizes "none" and "gzip" (§6); any other
// tag fails with core.ErrUnsupportedCompression.
package decompress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/esri-tilepkg/tilepkg/internal/core"
)

// Tag identifies a tile compression algorithm, taken verbatim from the
// Header's declared tileCompression string.
type Tag string

const (
	None Tag = "none"
	Gzip Tag = "gzip"
)

// Decompress returns the decompressed tile bytes for the given tag. An
// empty tag is treated the same as None, matching the HeaderBuilder's
// default (§4.C: "tileCompression defaults to none").
//
// klauspost/compress/gzip is used in place of the standard library's
// compress/gzip — same teacher dependency used for its zstd pool, applied
// here to the algorithm the spec actually requires (gzip, not zstd).
func Decompress(tag Tag, raw []byte) ([]byte, error) {
	switch tag {
	case "", None:
		return raw, nil
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrUnsupportedCompression, err) //nolint:errorlint // wraps a codec error, not a sentinel
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrUnsupportedCompression, err) //nolint:errorlint // wraps a codec error, not a sentinel
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedCompression, tag)
	}
}
