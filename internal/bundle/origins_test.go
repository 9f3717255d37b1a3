package bundle

import (
	"testing"

	"github.com/esri-tilepkg/tilepkg/internal/ziparchive"
	"github.com/stretchr/testify/assert"
)

func TestOrigins_parsesPresentBundleFiles(t *testing.T) {
	files := map[string]ziparchive.FileEntry{
		"p12/tile/L04/R0000C0000.bundle": {},
		"p12/tile/L04/R0080C0000.bundle": {},
		"p12/tile/L05/R0000C0000.bundle": {}, // different zoom, excluded
		"p12/root.json":                  {}, // not a bundle file at all
	}

	got := Origins(files, PrefixVector, 4)
	assert.ElementsMatch(t, [][2]uint32{{0, 0}, {0, 128}}, got)
}

func TestOrigins_emptyWhenLevelAbsent(t *testing.T) {
	files := map[string]ziparchive.FileEntry{
		"p12/tile/L04/R0000C0000.bundle": {},
	}
	assert.Empty(t, Origins(files, PrefixVector, 9))
}
