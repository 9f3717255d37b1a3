package subdivide

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestTransform_point(t *testing.T) {
	p := orb.Point{10, 20}
	got := transform(p, 2, 3, 4)
	assert.Equal(t, orb.Point{17, 36}, got)
}

func TestTransform_lineString(t *testing.T) {
	ls := orb.LineString{{0, 0}, {1, 1}}
	got := transform(ls, 2, 0, 0).(orb.LineString)
	assert.Equal(t, orb.LineString{{0, 0}, {2, 2}}, got)
}

func TestTransform_polygon(t *testing.T) {
	poly := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}
	got := transform(poly, 1, 1, 1).(orb.Polygon)
	assert.Equal(t, orb.Ring{{-1, -1}, {0, -1}, {0, 0}, {-1, -1}}, got[0])
}
