// Package subdivide synthesizes a descendant vector tile from an ancestor
// tile's Mapbox Vector Tile payload: every feature is scaled into the
// descendant's coordinate frame and clipped to its buffered extent, then
// the surviving layers are re-encoded.
package subdivide

import "github.com/paulmach/orb"

// transform applies p' = p*scale - (offsetX, offsetY) to every coordinate
// of geom, returning a new geometry of the same concrete type.
func transform(geom orb.Geometry, scale, offsetX, offsetY float64) orb.Geometry {
	switch g := geom.(type) {
	case orb.Point:
		return transformPoint(g, scale, offsetX, offsetY)
	case orb.MultiPoint:
		out := make(orb.MultiPoint, len(g))
		for i, p := range g {
			out[i] = transformPoint(p, scale, offsetX, offsetY)
		}
		return out
	case orb.LineString:
		return transformLineString(g, scale, offsetX, offsetY)
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(g))
		for i, ls := range g {
			out[i] = transformLineString(ls, scale, offsetX, offsetY)
		}
		return out
	case orb.Ring:
		return orb.Ring(transformLineString(orb.LineString(g), scale, offsetX, offsetY))
	case orb.Polygon:
		out := make(orb.Polygon, len(g))
		for i, ring := range g {
			out[i] = orb.Ring(transformLineString(orb.LineString(ring), scale, offsetX, offsetY))
		}
		return out
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(g))
		for i, poly := range g {
			out[i] = transform(poly, scale, offsetX, offsetY).(orb.Polygon)
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, len(g))
		for i, child := range g {
			out[i] = transform(child, scale, offsetX, offsetY)
		}
		return out
	default:
		return geom
	}
}

func transformPoint(p orb.Point, scale, offsetX, offsetY float64) orb.Point {
	return orb.Point{p[0]*scale - offsetX, p[1]*scale - offsetY}
}

func transformLineString(ls orb.LineString, scale, offsetX, offsetY float64) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = transformPoint(p, scale, offsetX, offsetY)
	}
	return out
}
