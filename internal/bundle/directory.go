// Package bundle decodes the 128x128 tile offset/size index inside a
// TilePackage bundle file and maps (z,x,y) tile coordinates to the bundle
// path, slab offset, and slab length that hold them.
//
// The fixed-size binary-record layout mirrors the idiom in
// eak1mov-go-libtiles/tileindex.go (a flat array of little-endian fixed
// records, bulk-decoded in one pass).
package bundle

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/esri-tilepkg/tilepkg/internal/core"
)

const (
	// Dim is the number of tiles along one edge of a bundle block.
	Dim = 128

	// HeaderLen is the size of the opaque bundle header preceding the index.
	HeaderLen = 64

	entrySize  = 8
	IndexLen   = Dim * Dim * entrySize
	offsetMask = 1<<40 - 1
)

// Entry is one decoded index slot: the tile's byte offset and size
// relative to the bundle file's payload. A zero Size means absent.
type Entry struct {
	Offset uint64
	Size   uint64
}

// Present reports whether this slot names an actual tile.
func (e Entry) Present() bool { return e.Size != 0 }

// Directory is the decoded 128x128 index of one bundle file. Omitted
// entries are retained as zero-value (absent) slots rather than compacted
// out, matching the spec's resolution of its "retain as None" open
// question — callers treat a zero Size as "not present".
type Directory struct {
	entries [Dim * Dim]Entry
}

// Load reads and decodes the bundle directory starting at payloadOffset
// within src (i.e. immediately after HeaderLen bytes of opaque header).
func Load(ctx context.Context, src core.ByteSource, payloadOffset uint64) (*Directory, error) {
	res, err := src.Read(ctx, int64(payloadOffset)+HeaderLen, IndexLen) //nolint:gosec // offsets bounded by archive size well under int64 in practice
	if err != nil {
		return nil, err
	}
	if len(res.Bytes) != IndexLen {
		return nil, fmt.Errorf("%w: short bundle index read: got %d of %d bytes", core.ErrMalformedArchive, len(res.Bytes), IndexLen)
	}

	d := &Directory{}
	for i := 0; i < Dim*Dim; i++ {
		raw := binary.LittleEndian.Uint64(res.Bytes[i*entrySize : i*entrySize+entrySize])
		offset := raw & offsetMask
		size := raw >> 40
		if size == 0 {
			continue
		}
		d.entries[i] = Entry{Offset: offset, Size: size}
	}
	return d, nil
}

// Lookup returns the index entry for the tile at (row, col) within this
// bundle's 128x128 block. row/col may be absolute tile coordinates; they
// are reduced modulo Dim here.
func (d *Directory) Lookup(row, col uint32) (Entry, bool) {
	idx := int(Dim*(row%Dim) + (col % Dim))
	e := d.entries[idx]
	if !e.Present() {
		return Entry{}, false
	}
	return e, true
}
