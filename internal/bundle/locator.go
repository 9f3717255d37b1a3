package bundle

import (
	"context"
	"fmt"

	"github.com/esri-tilepkg/tilepkg/internal/decompress"
	"github.com/esri-tilepkg/tilepkg/internal/ziparchive"

	"github.com/esri-tilepkg/tilepkg/internal/core"
)

// Prefix names the archive-relative directory a bundle tree lives under.
type Prefix string

const (
	// PrefixRaster is the bundle root for TPKX raster packages.
	PrefixRaster Prefix = "tile"
	// PrefixVector is the bundle root for VTPK vector packages.
	PrefixVector Prefix = "p12/tile"
)

// Locator resolves (z,x,y) tile coordinates to a bundle path and, given
// that bundle's decoded Directory, to the tile's raw bytes within an
// archive's file table.
type Locator struct {
	prefix Prefix
	index  *ziparchive.Index
}

// NewLocator builds a Locator over the given archive file table.
func NewLocator(prefix Prefix, index *ziparchive.Index) *Locator {
	return &Locator{prefix: prefix, index: index}
}

// origin returns the 128-aligned row/col origin of the bundle block that
// contains tile (x, y).
func origin(coord uint32) uint32 {
	return (coord / Dim) * Dim
}

// Path builds the archive-relative path of the bundle file holding tile
// (z, x, y), following the "${prefix}/L${zz}/R${rowHex}C${colHex}.bundle"
// layout: zz is z zero-padded to two digits, row/col are the block's
// 128-aligned origins rendered as lowercase four-digit hex.
func (l *Locator) Path(z uint32, x, y uint32) string {
	rowOrigin := origin(y)
	colOrigin := origin(x)
	return fmt.Sprintf("%s/L%02d/R%04xC%04x.bundle", l.prefix, z, rowOrigin, colOrigin)
}

// Fetch loads the decoded bundle Directory for the block containing tile
// (z, x, y), returning (nil, false, nil) if no such bundle file exists in
// the archive (an empty, never-populated 128x128 block).
func (l *Locator) Fetch(ctx context.Context, src core.ByteSource, z uint32, x, y uint32) (*Directory, bool, error) {
	path := l.Path(z, x, y)
	file, ok := l.index.Lookup(path)
	if !ok {
		return nil, false, nil
	}
	dir, err := Load(ctx, src, file.PayloadOffset)
	if err != nil {
		return nil, false, err
	}
	return dir, true, nil
}

// Tile fetches and decompresses the raw tile bytes for (z, x, y), given the
// bundle file's archive FileEntry and its decoded Directory. It returns
// (nil, false, nil) when the directory has no entry for this tile (an
// absent slot within an otherwise-present bundle).
func (l *Locator) Tile(ctx context.Context, src core.ByteSource, file ziparchive.FileEntry, dir *Directory, x, y uint32, compression decompress.Tag) ([]byte, bool, error) {
	entry, ok := dir.Lookup(y, x)
	if !ok {
		return nil, false, nil
	}
	slabOffset := file.PayloadOffset + entry.Offset
	res, err := src.Read(ctx, int64(slabOffset), int64(entry.Size)) //nolint:gosec // archive/tile sizes bounded well below int64 in practice
	if err != nil {
		return nil, false, err
	}
	if uint64(len(res.Bytes)) != entry.Size {
		return nil, false, fmt.Errorf("%w: short tile slab read for row=%d col=%d", core.ErrMalformedArchive, y, x)
	}
	raw, err := decompress.Decompress(compression, res.Bytes)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// FileEntry looks up the archive FileEntry of the bundle file at path.
func (l *Locator) FileEntry(path string) (ziparchive.FileEntry, bool) {
	return l.index.Lookup(path)
}
