package subdivide

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"
)

func buildParentTile(t *testing.T, extent uint32, points []orb.Point) []byte {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	for i, p := range points {
		f := geojson.NewFeature(orb.Geometry(p))
		f.ID = float64(i)
		f.Properties = geojson.Properties{"name": "f"}
		fc.Append(f)
	}
	layer := &mvt.Layer{Name: "points", Version: 2, Extent: extent, Features: fc.Features}
	data, err := mvt.Marshal(mvt.Layers{layer})
	require.NoError(t, err)
	return data
}

func TestSubdivide_dzZeroReturnsInputUnchanged(t *testing.T) {
	parent := buildParentTile(t, 4096, []orb.Point{{100, 100}})
	out, err := Subdivide(context.Background(), parent, 5, 3, 7, 5, 3, 7, Options{})
	require.NoError(t, err)
	require.Equal(t, parent, out)
}

func TestSubdivide_containmentViolation(t *testing.T) {
	parent := buildParentTile(t, 4096, []orb.Point{{100, 100}})
	_, err := Subdivide(context.Background(), parent, 4, 2, 3, 6, 100, 100, Options{})
	require.Error(t, err)
}

func TestSubdivide_scalesFeatureIntoChildFrame(t *testing.T) {
	// Parent tile (4,2,3), extent 4096; a feature near the NW quadrant's
	// interior should survive subdivision into child (5,4,6) (the NW child).
	parent := buildParentTile(t, 4096, []orb.Point{{1000, 1000}})
	out, err := Subdivide(context.Background(), parent, 4, 2, 3, 5, 4, 6, Options{})
	require.NoError(t, err)

	layers, err := mvt.Unmarshal(out)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	require.Len(t, layers[0].Features, 1)
}

func TestSubdivide_featureOutsideChildDropped(t *testing.T) {
	// A feature in the SE quadrant of the parent should not survive
	// subdivision into the NW child.
	parent := buildParentTile(t, 4096, []orb.Point{{3000, 3000}})
	out, err := Subdivide(context.Background(), parent, 4, 2, 3, 5, 4, 6, Options{})
	require.NoError(t, err)

	layers, err := mvt.Unmarshal(out)
	require.NoError(t, err)
	require.Empty(t, layers)
}

func TestSubdivide_includeLayersFilter(t *testing.T) {
	parent := buildParentTile(t, 4096, []orb.Point{{1000, 1000}})
	out, err := Subdivide(context.Background(), parent, 4, 2, 3, 5, 4, 6, Options{
		IncludeLayers: func(name string) bool { return name != "points" },
	})
	require.NoError(t, err)

	layers, err := mvt.Unmarshal(out)
	require.NoError(t, err)
	require.Empty(t, layers)
}
