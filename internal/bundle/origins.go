package bundle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/esri-tilepkg/tilepkg/internal/ziparchive"
)

// Origins lists the (x, y) origin tile of every bundle file present in
// index at zoom level z under prefix, derived directly from the archive's
// file table rather than walking the full 2^z grid — a VTPK or TPKX only
// ever materializes bundle files for blocks that actually hold tiles.
func Origins(files map[string]ziparchive.FileEntry, prefix Prefix, z uint32) [][2]uint32 {
	levelDir := fmt.Sprintf("%s/L%02d/", prefix, z)
	var origins [][2]uint32
	for path := range files {
		rowOrigin, colOrigin, ok := parseBundleName(path, levelDir)
		if !ok {
			continue
		}
		origins = append(origins, [2]uint32{colOrigin, rowOrigin})
	}
	return origins
}

// parseBundleName extracts the row/col origin from a bundle path shaped
// "${levelDir}R${rowHex}C${colHex}.bundle".
func parseBundleName(path, levelDir string) (row, col uint32, ok bool) {
	rest, found := strings.CutPrefix(path, levelDir)
	if !found {
		return 0, 0, false
	}
	rest, found = strings.CutSuffix(rest, ".bundle")
	if !found || len(rest) != 10 || rest[0] != 'R' || rest[5] != 'C' {
		return 0, 0, false
	}
	r, err := strconv.ParseUint(rest[1:5], 16, 32)
	if err != nil {
		return 0, 0, false
	}
	c, err := strconv.ParseUint(rest[6:10], 16, 32)
	if err != nil {
		return 0, 0, false
	}
	return uint32(r), uint32(c), true
}
