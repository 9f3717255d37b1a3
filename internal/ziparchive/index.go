package ziparchive

import (
	"context"
	"fmt"

	"github.com/esri-tilepkg/tilepkg/internal/core"
)

// FileEntry is one archive member: its stored byte size and the offset of
// its payload, already adjusted past the local file header.
type FileEntry struct {
	Size          uint64
	PayloadOffset uint64
}

// Index is the parsed central directory: an archive-relative path to
// FileEntry table.
type Index struct {
	Files map[string]FileEntry
}

// Load reads the end-of-central-directory record (classic or ZIP64) and
// the full central directory of src, returning the resulting file table.
//
// Every returned FileEntry.PayloadOffset is guaranteed to lie within
// [0, src.Size()) — testable property 2 of the design.
func Load(ctx context.Context, src core.ByteSource) (*Index, error) {
	info, err := readEOCD(ctx, src)
	if err != nil {
		return nil, err
	}
	raw, err := parseCentralDirectory(ctx, src, info)
	if err != nil {
		return nil, err
	}

	files := make(map[string]FileEntry, len(raw))
	for _, e := range raw {
		off := payloadOffset(e.relativeOffset, len(e.name))
		if off >= uint64(src.Size()) { //nolint:gosec // archive sizes bounded below int64 in practice
			return nil, fmt.Errorf("%w: payload offset %d for %q exceeds archive size %d", core.ErrMalformedArchive, off, e.name, src.Size())
		}
		files[e.name] = FileEntry{Size: e.compressedSize, PayloadOffset: off}
	}
	return &Index{Files: files}, nil
}

// Lookup returns the FileEntry for path, if present.
func (idx *Index) Lookup(path string) (FileEntry, bool) {
	e, ok := idx.Files[path]
	return e, ok
}
