// Package tilepkg provides a read-only accessor for Esri TilePackage
// archives — raster TPKX and vector VTPK — over a random-access byte source
// (local file or HTTP range requests).
//
// It resolves individual map tiles, auxiliary resources (styles, sprites,
// glyphs, metadata), and, for vector packages with a sparse indexed
// pyramid, synthesizes missing high-zoom tiles by sub-dividing an ancestor
// tile's Mapbox Vector Tile payload.
//
// The package never writes or mutates archives: it is a reader only.
package tilepkg
