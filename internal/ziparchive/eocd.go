// Package ziparchive parses the ZIP / ZIP64 central directory of a
// TilePackage archive over a random-access byte source, producing a file
// table of archive-relative paths to {size, payloadOffset}.
//
// The parser is hand-rolled against the raw byte layout (rather than
// stdlib archive/zip) because the spec's payloadOffset contract —
// relativeOffset + 30 + nameLen, assuming no local-header extras — and the
// ZIP64 sentinel-replacement rules are lower-level than archive/zip's
// abstraction exposes. The binary-struct-at-fixed-offset idiom follows
// eak1mov-go-libtiles's header/tileindex parsers.
package ziparchive

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/esri-tilepkg/tilepkg/internal/core"
)

const (
	sigEOCD       uint32 = 0x06054b50
	sigEOCD64     uint32 = 0x06064b50
	sigEOCD64Loc  uint32 = 0x07064b50
	sigCentralDir uint32 = 0x02014b50

	classicEOCDLen = 22
	zip64EOCDTailLen = 56 // fixed portion of the ZIP64 EOCD record we read
	trailingScanLen  = 98

	zip64ExtraTag = 0x0001
)

// eocdInfo is the minimal set of fields we need out of either EOCD flavor.
type eocdInfo struct {
	entryCount      uint64
	centralDirSize  uint64
	centralDirStart uint64
}

// readEOCD reads the last trailingScanLen bytes of the archive and
// dispatches on whichever end-of-central-directory signature is present.
// It requires the ZIP64 locator/EOCD, when present, to directly precede
// the terminal classic EOCD record within that trailing window — true for
// well-formed archives with no trailing comment, which is what TilePackage
// producers emit.
func readEOCD(ctx context.Context, src core.ByteSource) (eocdInfo, error) {
	size := src.Size()
	scanLen := int64(trailingScanLen)
	if scanLen > size {
		scanLen = size
	}
	tail, err := readAt(ctx, src, size-scanLen, scanLen)
	if err != nil {
		return eocdInfo{}, err
	}

	if len(tail) >= 4 && binary.LittleEndian.Uint32(tail[0:4]) == sigEOCD64 {
		return parseZip64EOCD(tail)
	}

	classicOff := len(tail) - classicEOCDLen
	if classicOff < 0 || binary.LittleEndian.Uint32(tail[classicOff:classicOff+4]) != sigEOCD {
		return eocdInfo{}, fmt.Errorf("%w: no end-of-central-directory signature found", core.ErrMalformedArchive)
	}
	rec := tail[classicOff:]

	entryCount := uint64(binary.LittleEndian.Uint16(rec[10:12]))
	cdSize := uint64(binary.LittleEndian.Uint32(rec[12:16]))
	cdOffset := uint64(binary.LittleEndian.Uint32(rec[16:20]))

	return eocdInfo{entryCount: entryCount, centralDirSize: cdSize, centralDirStart: cdOffset}, nil
}

// parseZip64EOCD expects tail to begin with the ZIP64 EOCD record (we only
// need the fixed leading fields; the record's own declared size covers a
// variable trailer we don't need).
func parseZip64EOCD(tail []byte) (eocdInfo, error) {
	if len(tail) < zip64EOCDTailLen {
		return eocdInfo{}, fmt.Errorf("%w: truncated zip64 end-of-central-directory record", core.ErrMalformedArchive)
	}
	entryCount := binary.LittleEndian.Uint64(tail[32:40])
	cdSize := binary.LittleEndian.Uint64(tail[40:48])
	cdOffset := binary.LittleEndian.Uint64(tail[48:56])
	return eocdInfo{entryCount: entryCount, centralDirSize: cdSize, centralDirStart: cdOffset}, nil
}

// readAt is a small helper around core.ByteSource.Read returning raw
// bytes, used by the archive-level parsers that don't need ReadResult
// metadata (ETag/cache headers only matter at the facade/cache layer).
func readAt(ctx context.Context, src core.ByteSource, offset, length int64) ([]byte, error) {
	if offset < 0 {
		offset = 0
	}
	res, err := src.Read(ctx, offset, length)
	if err != nil {
		return nil, err
	}
	if int64(len(res.Bytes)) < length {
		return nil, fmt.Errorf("%w: short read at offset %d: got %d of %d bytes", core.ErrMalformedArchive, offset, len(res.Bytes), length)
	}
	return res.Bytes, nil
}
