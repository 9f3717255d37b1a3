package ziparchive

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/esri-tilepkg/tilepkg/internal/core"
)

const centralHeaderFixedLen = 46

// rawEntry is one parsed central directory record, with ZIP64 sentinel
// fields already resolved.
type rawEntry struct {
	name           string
	compressedSize uint64
	relativeOffset uint64
}

// parseCentralDirectory reads the whole central directory in one range
// request and walks its fixed+variable records.
func parseCentralDirectory(ctx context.Context, src core.ByteSource, info eocdInfo) ([]rawEntry, error) {
	if info.centralDirSize == 0 {
		return nil, nil
	}
	buf, err := readAt(ctx, src, int64(info.centralDirStart), int64(info.centralDirSize)) //nolint:gosec // archive sizes are bounded well below int64 in practice
	if err != nil {
		return nil, err
	}

	entries := make([]rawEntry, 0, info.entryCount)
	pos := 0
	for pos+centralHeaderFixedLen <= len(buf) {
		if binary.LittleEndian.Uint32(buf[pos:pos+4]) != sigCentralDir {
			return nil, fmt.Errorf("%w: bad central directory entry signature at offset %d", core.ErrMalformedArchive, pos)
		}
		rec := buf[pos:]

		compressedSize := uint64(binary.LittleEndian.Uint32(rec[20:24]))
		nameLen := int(binary.LittleEndian.Uint16(rec[28:30]))
		extraLen := int(binary.LittleEndian.Uint16(rec[30:32]))
		commentLen := int(binary.LittleEndian.Uint16(rec[32:34]))
		relativeOffset := uint64(binary.LittleEndian.Uint32(rec[42:46]))

		nameStart := centralHeaderFixedLen
		nameEnd := nameStart + nameLen
		extraEnd := nameEnd + extraLen
		commentEnd := extraEnd + commentLen
		if commentEnd > len(rec) {
			return nil, fmt.Errorf("%w: truncated central directory entry", core.ErrMalformedArchive)
		}
		name := string(rec[nameStart:nameEnd])
		extra := rec[nameEnd:extraEnd]

		if compressedSize == 0xffffffff || relativeOffset == 0xffffffff {
			compressedSize, relativeOffset = applyZip64Extra(extra, compressedSize, relativeOffset)
		}

		entries = append(entries, rawEntry{
			name:           name,
			compressedSize: compressedSize,
			relativeOffset: relativeOffset,
		})

		pos += commentEnd
	}
	return entries, nil
}

// applyZip64Extra parses the ZIP64 extended-information extra field (tag
// 0x0001) and replaces whichever sentinel fields (size, then offset) are
// present, in that fixed order. The uncompressed-size field that normally
// leads the block is only present when *that* field was also a sentinel in
// the central header; TilePackage archives store files uncompressed, so
// the central header's uncompressed size is never 0xffffffff and we never
// need to skip it here — only compressed size and relative offset are
// read, matching the spec's two sentinel fields.
func applyZip64Extra(extra []byte, compressedSize, relativeOffset uint64) (uint64, uint64) {
	pos := 0
	for pos+4 <= len(extra) {
		tag := binary.LittleEndian.Uint16(extra[pos : pos+2])
		size := int(binary.LittleEndian.Uint16(extra[pos+2 : pos+4]))
		dataStart := pos + 4
		dataEnd := dataStart + size
		if dataEnd > len(extra) {
			break
		}
		if tag == zip64ExtraTag {
			block := extra[dataStart:dataEnd]
			off := 0
			if compressedSize == 0xffffffff && off+8 <= len(block) {
				compressedSize = binary.LittleEndian.Uint64(block[off : off+8])
				off += 8
			}
			if relativeOffset == 0xffffffff && off+8 <= len(block) {
				relativeOffset = binary.LittleEndian.Uint64(block[off : off+8])
			}
			break
		}
		pos = dataEnd
	}
	return compressedSize, relativeOffset
}

// payloadOffset computes the byte offset of an entry's stored content,
// relying on the producer contract that local-header extras are absent
// (documented in the design as a contract with Esri's TilePackage writer).
func payloadOffset(relativeOffset uint64, nameLen int) uint64 {
	const localHeaderFixedLen = 30
	return relativeOffset + localHeaderFixedLen + uint64(nameLen) //nolint:gosec // nameLen bounded by uint16 field width
}
