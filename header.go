package tilepkg

import "github.com/esri-tilepkg/tilepkg/internal/tileheader"

// Header is the immutable, fully-resolved description of one TilePackage
// archive returned by PackageFacade.GetHeader.
type Header = tileheader.Header

// HeaderKind identifies which TilePackage flavor a Header describes.
type HeaderKind = tileheader.Kind

// ByteRange names a contiguous span of an archive member's bytes.
type ByteRange = tileheader.ByteRange

const (
	// KindRaster identifies a TPKX raster package.
	KindRaster = tileheader.KindRaster
	// KindVector identifies a VTPK vector package.
	KindVector = tileheader.KindVector
)
