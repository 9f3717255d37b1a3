package subdivide

import "github.com/paulmach/orb"

// box is the target clipping rectangle: [-buffer, extent+buffer] on both
// axes, in the already-transformed target tile's coordinate frame.
type box struct {
	xmin, xmax, ymin, ymax float64
}

// clip dispatches to the geometry-type-specific clip rule (§4.G): points
// require strict interior containment, lines fragment on exit via
// Liang-Barsky segment clipping, polygons clip per-axis with
// Sutherland-Hodgman and are re-closed afterward. It returns ok=false when
// the geometry is empty after clipping.
func clip(geom orb.Geometry, b box) (orb.Geometry, bool) {
	switch g := geom.(type) {
	case orb.Point:
		if pointStrictlyInside(g, b) {
			return g, true
		}
		return nil, false
	case orb.MultiPoint:
		var out orb.MultiPoint
		for _, p := range g {
			if pointStrictlyInside(p, b) {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	case orb.LineString:
		out := clipLineString(g, b)
		if len(out) == 0 {
			return nil, false
		}
		if len(out) == 1 {
			return out[0], true
		}
		return orb.MultiLineString(out), true
	case orb.MultiLineString:
		var out orb.MultiLineString
		for _, ls := range g {
			out = append(out, clipLineString(ls, b)...)
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	case orb.Polygon:
		out := clipPolygon(g, b)
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	case orb.MultiPolygon:
		var out orb.MultiPolygon
		for _, poly := range g {
			if clipped := clipPolygon(poly, b); len(clipped) > 0 {
				out = append(out, clipped)
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	default:
		return geom, true
	}
}

func pointStrictlyInside(p orb.Point, b box) bool {
	return p[0] > b.xmin && p[0] < b.xmax && p[1] > b.ymin && p[1] < b.ymax
}

// clipLineString clips a polyline against b, returning zero or more
// fragments: a segment that exits and later re-enters the box produces
// separate pieces rather than one line jumping across the gap.
func clipLineString(ls orb.LineString, b box) []orb.LineString {
	var result []orb.LineString
	var current orb.LineString

	flush := func() {
		if len(current) >= 2 {
			result = append(result, current)
		}
		current = nil
	}

	for i := 0; i+1 < len(ls); i++ {
		p0, p1, visible := liangBarsky(ls[i], ls[i+1], b)
		if !visible {
			flush()
			continue
		}
		if len(current) == 0 {
			current = append(current, p0)
		} else if current[len(current)-1] != p0 {
			flush()
			current = append(current, p0)
		}
		current = append(current, p1)
		if end := ls[i+1]; end[0] < b.xmin || end[0] > b.xmax || end[1] < b.ymin || end[1] > b.ymax {
			// the segment leaves the box: this fragment ends here
			flush()
		}
	}
	flush()
	return result
}

// liangBarsky clips segment p0->p1 to rectangle b, returning the clipped
// endpoints and whether any part of the segment survives.
func liangBarsky(p0, p1 orb.Point, b box) (orb.Point, orb.Point, bool) {
	dx := p1[0] - p0[0]
	dy := p1[1] - p0[1]
	t0, t1 := 0.0, 1.0

	edges := [4]struct{ p, q float64 }{
		{-dx, p0[0] - b.xmin},
		{dx, b.xmax - p0[0]},
		{-dy, p0[1] - b.ymin},
		{dy, b.ymax - p0[1]},
	}
	for _, e := range edges {
		if e.p == 0 {
			if e.q < 0 {
				return orb.Point{}, orb.Point{}, false
			}
			continue
		}
		r := e.q / e.p
		if e.p < 0 {
			if r > t1 {
				return orb.Point{}, orb.Point{}, false
			}
			if r > t0 {
				t0 = r
			}
		} else {
			if r < t0 {
				return orb.Point{}, orb.Point{}, false
			}
			if r < t1 {
				t1 = r
			}
		}
	}
	if t0 > t1 {
		return orb.Point{}, orb.Point{}, false
	}
	return orb.Point{p0[0] + t0*dx, p0[1] + t0*dy}, orb.Point{p0[0] + t1*dx, p0[1] + t1*dy}, true
}

// clipPolygon clips every ring of poly independently against b using
// Sutherland-Hodgman, keeping one ring per input ring and re-closing any
// ring whose first and last point end up differing.
func clipPolygon(poly orb.Polygon, b box) orb.Polygon {
	var out orb.Polygon
	for _, ring := range poly {
		clipped := clipRingSutherlandHodgman([]orb.Point(ring), b)
		if len(clipped) < 3 {
			continue
		}
		if clipped[0] != clipped[len(clipped)-1] {
			clipped = append(clipped, clipped[0])
		}
		out = append(out, orb.Ring(clipped))
	}
	return out
}

type halfPlane struct {
	inside func(orb.Point) bool
	isect  func(a, b orb.Point) orb.Point
}

func clipRingSutherlandHodgman(ring []orb.Point, b box) []orb.Point {
	planes := []halfPlane{
		{
			inside: func(p orb.Point) bool { return p[0] >= b.xmin },
			isect:  func(a, c orb.Point) orb.Point { return lerpX(a, c, b.xmin) },
		},
		{
			inside: func(p orb.Point) bool { return p[0] <= b.xmax },
			isect:  func(a, c orb.Point) orb.Point { return lerpX(a, c, b.xmax) },
		},
		{
			inside: func(p orb.Point) bool { return p[1] >= b.ymin },
			isect:  func(a, c orb.Point) orb.Point { return lerpY(a, c, b.ymin) },
		},
		{
			inside: func(p orb.Point) bool { return p[1] <= b.ymax },
			isect:  func(a, c orb.Point) orb.Point { return lerpY(a, c, b.ymax) },
		},
	}

	out := ring
	for _, plane := range planes {
		out = clipRingAgainstPlane(out, plane)
		if len(out) == 0 {
			return nil
		}
	}
	return out
}

func clipRingAgainstPlane(ring []orb.Point, plane halfPlane) []orb.Point {
	if len(ring) == 0 {
		return nil
	}
	var out []orb.Point
	prev := ring[len(ring)-1]
	prevIn := plane.inside(prev)
	for _, cur := range ring {
		curIn := plane.inside(cur)
		if curIn {
			if !prevIn {
				out = append(out, plane.isect(prev, cur))
			}
			out = append(out, cur)
		} else if prevIn {
			out = append(out, plane.isect(prev, cur))
		}
		prev, prevIn = cur, curIn
	}
	return out
}

func lerpX(a, c orb.Point, x float64) orb.Point {
	t := (x - a[0]) / (c[0] - a[0])
	return orb.Point{x, a[1] + t*(c[1]-a[1])}
}

func lerpY(a, c orb.Point, y float64) orb.Point {
	t := (y - a[1]) / (c[1] - a[1])
	return orb.Point{a[0] + t*(c[0]-a[0]), y}
}
