package tileheader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/esri-tilepkg/tilepkg/internal/fakesource"
	"github.com/esri-tilepkg/tilepkg/internal/ziparchive"
)

// archiveBuilder lays out a set of named byte blobs back to back in one
// buffer and records their FileEntry offsets, mimicking what ArchiveIndex
// would have produced from a real ZIP central directory.
type archiveBuilder struct {
	buf   []byte
	files map[string]ziparchive.FileEntry
}

func newArchiveBuilder() *archiveBuilder {
	return &archiveBuilder{files: map[string]ziparchive.FileEntry{}}
}

func (a *archiveBuilder) add(name string, content []byte) {
	a.files[name] = ziparchive.FileEntry{Size: uint64(len(content)), PayloadOffset: uint64(len(a.buf))}
	a.buf = append(a.buf, content...)
}

func (a *archiveBuilder) index() *ziparchive.Index {
	return &ziparchive.Index{Files: a.files}
}

func TestBuild_raster(t *testing.T) {
	ab := newArchiveBuilder()
	ab.add("root.json", []byte(`{
		"name": "basemap",
		"tileInfo": {"rows": 256, "cols": 256, "spatialReference": {"latestWkid": 3857, "wkid": 102100}},
		"resourceInfo": {"tileCompression": "gzip"},
		"minZoom": 0, "maxZoom": 15,
		"extent": {"xmin": -1, "ymin": -2, "xmax": 3, "ymax": 4}
	}`))
	ab.add("iteminfo.json", []byte(`{"description": "a basemap", "accessInformation": "Esri"}`))

	src := fakesource.NewWithETag(ab.buf, "etag-1")
	h, err := Build(context.Background(), src, ab.index(), "archive.tpkx", true)
	require.NoError(t, err)

	require.Equal(t, KindRaster, h.Kind)
	require.Equal(t, "basemap", h.DisplayName)
	require.Equal(t, "a basemap", h.Description)
	require.Equal(t, "Esri", h.Attribution)
	require.EqualValues(t, 3857, h.SpatialReferenceWKID)
	require.Equal(t, "gzip", string(h.TileCompression))
	require.EqualValues(t, 0, h.MinZoom)
	require.EqualValues(t, 15, h.MaxZoom)
	require.InDelta(t, -1, h.MinLon, 0)
	require.InDelta(t, 4, h.MaxLat, 0)
	require.Equal(t, "etag-1", h.ETag)
	require.Nil(t, h.Coverage)
}

func TestBuild_vectorWithCoverage(t *testing.T) {
	ab := newArchiveBuilder()
	ab.add("p12/root.json", []byte(`{
		"name": "vector basemap",
		"tileInfo": {"format": "pbf", "rows": 512, "cols": 512, "spatialReference": {"latestWkid": 3857}},
		"minLOD": 0, "maxLOD": 14,
		"extent": {"xmin": -180, "ymin": -85, "xmax": 180, "ymax": 85}
	}`))
	ab.add("p12/metadata.json", []byte(`{"maxzoom": 14}`))
	ab.add("p12/tilemap/root.json", []byte(`{"index": [1, [1, 0, 0, 0], 0, 0]}`))

	src := fakesource.New(ab.buf)
	h, err := Build(context.Background(), src, ab.index(), "archive.vtpk", true)
	require.NoError(t, err)

	require.Equal(t, KindVector, h.Kind)
	require.Equal(t, "vector basemap", h.DisplayName)
	require.EqualValues(t, 14, h.MaxZoom)
	require.NotNil(t, h.MetadataRange)
	require.NotNil(t, h.Coverage)
	require.True(t, h.Coverage.Has(1, 0, 0))
	require.True(t, h.IsIndexedVector())
}

func TestBuild_vectorCoverageCheckDisabled(t *testing.T) {
	ab := newArchiveBuilder()
	ab.add("p12/root.json", []byte(`{"tileInfo": {"format": "pbf"}, "minZoom": 0, "maxZoom": 10, "extent": {}}`))
	ab.add("p12/tilemap/root.json", []byte(`{"index": "blob"}`))

	src := fakesource.New(ab.buf)
	h, err := Build(context.Background(), src, ab.index(), "archive.vtpk", false)
	require.NoError(t, err)
	require.Nil(t, h.Coverage)
	require.False(t, h.IsIndexedVector())
}

func TestBuild_missingRootIsMalformed(t *testing.T) {
	ab := newArchiveBuilder()
	src := fakesource.New(ab.buf)
	_, err := Build(context.Background(), src, ab.index(), "archive.tpkx", true)
	require.Error(t, err)
}
