// Package tileheader reads a TilePackage's descriptor JSON/XML files and
// builds the immutable Header value the rest of the accessor works from.
package tileheader

import (
	"github.com/esri-tilepkg/tilepkg/internal/coverage"
	"github.com/esri-tilepkg/tilepkg/internal/decompress"
	"github.com/esri-tilepkg/tilepkg/internal/ziparchive"
)

// Kind identifies which TilePackage flavor a Header describes.
type Kind string

const (
	KindRaster Kind = "tpkx"
	KindVector Kind = "vtpk"
)

// ByteRange names a contiguous span of an archive member's bytes, used to
// expose p12/metadata.json's location without eagerly reading it.
type ByteRange struct {
	Offset uint64
	Size   uint64
}

// Header is the immutable, fully-resolved description of one TilePackage
// archive: everything the facade needs to serve tiles and resources
// without re-parsing descriptor files on every request.
type Header struct {
	Kind Kind

	DisplayName string
	Description string
	Attribution string
	Version     string

	SpatialReferenceWKID int
	HasSpatialReference  bool

	TileCompression decompress.Tag
	TileMediaType   string
	TilePixelSize   int

	MinZoom uint32
	MaxZoom uint32

	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64

	Files *ziparchive.Index

	Coverage *coverage.Map

	ETag string

	MetadataRange *ByteRange
}

// BundlePrefix returns the archive-relative directory bundle files live
// under for this package's kind.
func (h *Header) BundlePrefix() string {
	if h.Kind == KindVector {
		return "p12/tile"
	}
	return "tile"
}

// IsIndexedVector reports whether this is a VTPK with a sparse coverage
// map attached, i.e. a candidate for ancestor-based subdivision.
func (h *Header) IsIndexedVector() bool {
	return h.Kind == KindVector && h.Coverage != nil
}

// detectKind classifies a tile-info-like decoded JSON blob: vtpk when the
// block carries a "format" key, else tpkx.
func detectKind(tileInfo map[string]interface{}) Kind {
	if _, ok := tileInfo["format"]; ok {
		return KindVector
	}
	return KindRaster
}
