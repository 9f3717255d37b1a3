package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder_setAndHas(t *testing.T) {
	b := NewBuilder()
	b.Set(4, 2, 3)
	b.Set(7, 100, 120)
	m := b.Build()

	assert.True(t, m.Has(4, 2, 3))
	assert.False(t, m.Has(4, 2, 4))
	assert.True(t, m.Has(7, 100, 120))
	assert.False(t, m.Has(7, 100, 121))
	assert.False(t, m.Has(99, 0, 0))
}

func TestMorton_distinctCoordinatesDistinctIndex(t *testing.T) {
	seen := map[uint64]bool{}
	for x := uint32(0); x < 16; x++ {
		for y := uint32(0); y < 16; y++ {
			idx := morton(x, y)
			assert.False(t, seen[idx], "collision at x=%d y=%d", x, y)
			seen[idx] = true
		}
	}
}

func TestAncestorSearch_findsFirstCoveredAncestor(t *testing.T) {
	b := NewBuilder()
	b.Set(4, 2, 3)
	m := b.Build()

	pz, px, py, ok := AncestorSearch(m, 6, 8, 13, 0)
	assert := assert.New(t)
	assert.True(ok)
	assert.Equal(uint32(4), pz)
	assert.Equal(uint32(2), px)
	assert.Equal(uint32(3), py)
}

func TestAncestorSearch_stopsAtMinZoomInclusive(t *testing.T) {
	b := NewBuilder()
	b.Set(3, 1, 1)
	m := b.Build()

	_, _, _, ok := AncestorSearch(m, 5, 4, 4, 3)
	assert.True(t, ok)

	_, _, _, ok = AncestorSearch(m, 5, 4, 4, 4)
	assert.False(t, ok)
}

func TestAncestorSearch_noneFound(t *testing.T) {
	m := NewBuilder().Build()
	_, _, _, ok := AncestorSearch(m, 5, 4, 4, 0)
	assert.False(t, ok)
}
