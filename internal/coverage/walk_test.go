package coverage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalk_expandsQuadtreeIntoBuilder(t *testing.T) {
	raw := []byte(`"blob"`)
	var root interface{}
	require.NoError(t, json.Unmarshal(raw, &root))

	b := NewBuilder()
	require.NoError(t, Walk(root, b))
	m := b.Build()
	require.False(t, m.Has(0, 0, 0), "root sentinel alone carries no scalar coverage")
}

func TestWalk_recursesIntoChildrenAndRecordsLeaves(t *testing.T) {
	raw := []byte(`[1, [1, 0, 0, 0], 0, 0]`)
	var root interface{}
	require.NoError(t, json.Unmarshal(raw, &root))

	b := NewBuilder()
	require.NoError(t, Walk(root, b))
	m := b.Build()

	require.True(t, m.Has(1, 0, 0), "NW child at depth 1")
	require.True(t, m.Has(2, 2, 0), "NW child of the NE child at depth 2")
	require.False(t, m.Has(2, 1, 0))
}

func TestWalk_rejectsMalformedNode(t *testing.T) {
	raw := []byte(`[1, 2, 3]`)
	var root interface{}
	require.NoError(t, json.Unmarshal(raw, &root))

	b := NewBuilder()
	require.Error(t, Walk(root, b))
}
