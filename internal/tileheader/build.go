package tileheader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/esri-tilepkg/tilepkg/internal/core"
	"github.com/esri-tilepkg/tilepkg/internal/coverage"
	"github.com/esri-tilepkg/tilepkg/internal/decompress"
	"github.com/esri-tilepkg/tilepkg/internal/ziparchive"
)

const (
	pathTPKXRoot       = "root.json"
	pathTPKXItemInfo   = "iteminfo.json"
	pathVTPKRoot       = "p12/root.json"
	pathVTPKItemInfo   = "esriinfo/iteminfo.xml"
	pathVTPKMetadata   = "p12/metadata.json"
	pathVTPKTilemap    = "p12/tilemap/root.json"
)

// Build reads a TilePackage's descriptor files over src/index and produces
// its immutable Header. archiveKey is the caller-supplied archive
// identifier (e.g. a file path or URL); its extension selects TPKX vs VTPK
// handling.
func Build(ctx context.Context, src core.ByteSource, index *ziparchive.Index, archiveKey string, coverageCheck bool) (*Header, error) {
	if strings.HasSuffix(strings.ToLower(archiveKey), ".tpkx") {
		return buildRaster(ctx, src, index)
	}
	return buildVector(ctx, src, index, coverageCheck)
}

func buildRaster(ctx context.Context, src core.ByteSource, index *ziparchive.Index) (*Header, error) {
	root, err := readJSON(ctx, src, index, pathTPKXRoot)
	if err != nil {
		return nil, err
	}
	itemInfo, _ := readJSONOptional(ctx, src, index, pathTPKXItemInfo)

	h := newHeaderFromRoot(root, KindRaster)
	mergeItemInfoJSON(h, itemInfo)
	h.Files = index
	h.ETag = src.ETag()
	return h, nil
}

func buildVector(ctx context.Context, src core.ByteSource, index *ziparchive.Index, coverageCheck bool) (*Header, error) {
	root, err := readJSON(ctx, src, index, pathVTPKRoot)
	if err != nil {
		return nil, err
	}

	h := newHeaderFromRoot(root, KindVector)

	if xmlBytes, ok, err := readArchiveFile(ctx, src, index, pathVTPKItemInfo); err != nil {
		return nil, err
	} else if ok {
		tree, err := decodeXMLTree(bytes.NewReader(xmlBytes))
		if err != nil {
			return nil, fmt.Errorf("tileheader: parsing %s: %w", pathVTPKItemInfo, err)
		}
		mergeItemInfoXML(h, tree)
	}

	if entry, ok := index.Lookup(pathVTPKMetadata); ok {
		h.MetadataRange = &ByteRange{Offset: entry.PayloadOffset, Size: entry.Size}
	}

	if coverageCheck {
		if tilemapBytes, ok, err := readArchiveFile(ctx, src, index, pathVTPKTilemap); err != nil {
			return nil, err
		} else if ok {
			cov, err := buildCoverage(tilemapBytes)
			if err != nil {
				return nil, err
			}
			h.Coverage = cov
		}
	}

	h.Files = index
	h.ETag = src.ETag()
	return h, nil
}

func buildCoverage(tilemapBytes []byte) (*coverage.Map, error) {
	var doc struct {
		Index interface{} `json:"index"`
	}
	if err := json.Unmarshal(tilemapBytes, &doc); err != nil {
		return nil, fmt.Errorf("tileheader: parsing %s: %w", pathVTPKTilemap, err)
	}
	b := coverage.NewBuilder()
	if err := coverage.Walk(doc.Index, b); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// newHeaderFromRoot extracts the common root.json fields shared by both
// TPKX and VTPK descriptors.
func newHeaderFromRoot(root jsonMap, kind Kind) *Header {
	tileInfo := getMap(root, "tileInfo")
	if tileInfo == nil {
		tileInfo = jsonMap{}
	}
	resourceInfo := getMap(root, "resourceInfo")

	h := &Header{
		Kind:            detectKindOrFallback(tileInfo, kind),
		TileCompression: decompress.None,
		TileMediaType:   firstString(tileInfo, "format"),
		DisplayName:     firstString(root, "name"),
	}

	if tag := firstString(resourceInfo, "tileCompression"); tag != "" {
		h.TileCompression = decompress.Tag(tag)
	}

	if sr := getMap(tileInfo, "spatialReference"); sr != nil {
		if wkid, ok := firstFloat(sr, "latestWkid", "wkid"); ok {
			h.SpatialReferenceWKID = int(wkid)
			h.HasSpatialReference = true
		}
	}

	if rows, ok := getFloat(tileInfo, "rows"); ok {
		h.TilePixelSize = int(rows)
	} else if cols, ok := getFloat(tileInfo, "cols"); ok {
		h.TilePixelSize = int(cols)
	}

	minZoom, hasMin := firstFloat(root, "minZoom", "minLOD")
	maxZoom, hasMax := firstFloat(root, "maxZoom", "maxLOD")
	if hasMin {
		h.MinZoom = uint32(minZoom)
	}
	if hasMax {
		h.MaxZoom = uint32(maxZoom)
	}

	if extent := getMap(root, "extent"); extent != nil {
		if v, ok := getFloat(extent, "xmin"); ok {
			h.MinLon = v
		}
		if v, ok := getFloat(extent, "ymin"); ok {
			h.MinLat = v
		}
		if v, ok := getFloat(extent, "xmax"); ok {
			h.MaxLon = v
		}
		if v, ok := getFloat(extent, "ymax"); ok {
			h.MaxLat = v
		}
	}

	return h
}

// detectKindOrFallback applies the format-key heuristic but never
// downgrades an already-known VTPK (file layout is authoritative).
func detectKindOrFallback(tileInfo jsonMap, known Kind) Kind {
	if known == KindVector {
		return KindVector
	}
	return detectKind(tileInfo)
}

// mergeItemInfoJSON fills DisplayName/Description/Attribution/Version from
// a decoded iteminfo.json, without overwriting fields root.json already
// populated.
func mergeItemInfoJSON(h *Header, itemInfo jsonMap) {
	if itemInfo == nil {
		return
	}
	if h.DisplayName == "" {
		h.DisplayName = firstString(itemInfo, "name", "title")
	}
	if h.Description == "" {
		h.Description = firstString(itemInfo, "description", "snippet", "summary")
	}
	if h.Attribution == "" {
		h.Attribution = firstString(itemInfo, "accessInformation", "credits")
	}
	if h.Version == "" {
		h.Version = firstString(itemInfo, "version")
	}
}

// mergeItemInfoXML fills DisplayName/Description/Attribution from a decoded
// esriinfo/iteminfo.xml element tree when root.json didn't already set
// them. Version is not read from the XML.
func mergeItemInfoXML(h *Header, tree map[string]interface{}) {
	root := findXMLRoot(tree)
	if root == nil {
		return
	}
	if h.DisplayName == "" {
		h.DisplayName = firstXMLString(root, "title", "name")
	}
	if h.Description == "" {
		h.Description = firstXMLString(root, "description", "summary")
	}
	if h.Attribution == "" {
		h.Attribution = firstXMLString(root, "accessInformation", "credits")
	}
}

// findXMLRoot unwraps the single top-level element decodeXMLTree produces.
func findXMLRoot(tree map[string]interface{}) map[string]interface{} {
	for _, v := range tree {
		if m, ok := v.(map[string]interface{}); ok {
			return m
		}
	}
	return nil
}

func firstXMLString(node map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := node[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func readArchiveFile(ctx context.Context, src core.ByteSource, index *ziparchive.Index, path string) ([]byte, bool, error) {
	entry, ok := index.Lookup(path)
	if !ok {
		return nil, false, nil
	}
	res, err := src.Read(ctx, int64(entry.PayloadOffset), int64(entry.Size)) //nolint:gosec // descriptor files are small and well within int64 range
	if err != nil {
		return nil, false, err
	}
	if uint64(len(res.Bytes)) != entry.Size {
		return nil, false, fmt.Errorf("%w: short read for %s", core.ErrMalformedArchive, path)
	}
	return res.Bytes, true, nil
}

func readJSON(ctx context.Context, src core.ByteSource, index *ziparchive.Index, path string) (jsonMap, error) {
	raw, ok, err := readArchiveFile(ctx, src, index, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing required descriptor %s", core.ErrMalformedArchive, path)
	}
	var m jsonMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("tileheader: parsing %s: %w", path, err)
	}
	return m, nil
}

func readJSONOptional(ctx context.Context, src core.ByteSource, index *ziparchive.Index, path string) (jsonMap, bool) {
	raw, ok, err := readArchiveFile(ctx, src, index, path)
	if err != nil || !ok {
		return nil, false
	}
	var m jsonMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}
