package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoscraper/tile-service/internal/types"
)

func TestTileURL(t *testing.T) {
	c := types.TileCoord{Z: 5, X: 16, Y: 15}

	assert.Equal(t, "https://mt1.google.com/vt/lyrs=s&x=16&y=15&z=5", DefaultProviders[GoogleSatellite].TileURL(c))
	assert.Equal(t, "https://tile.openstreetmap.org/5/16/15.png", DefaultProviders[OSMStandard].TileURL(c))
	assert.Equal(t, "https://a.tile.opentopomap.org/5/16/15.png", DefaultProviders[OSMTopo].TileURL(c))
}

func TestRegistryOverrides(t *testing.T) {
	reg, err := NewRegistry(map[string]string{"osm-standard": "http://localhost:8080/{z}/{x}/{y}.png"})
	require.NoError(t, err)

	p, err := reg.Get("osm-standard")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/1/2/3.png", p.TileURL(types.TileCoord{Z: 1, X: 2, Y: 3}))

	p, err = reg.Get("osm-topo")
	require.NoError(t, err)
	assert.Equal(t, DefaultProviders[OSMTopo].URLTemplate, p.URLTemplate)

	assert.Len(t, reg.List(), len(MapTypes))
}

func TestRegistryRejectsBadOverrides(t *testing.T) {
	_, err := NewRegistry(map[string]string{"bing": "http://x/{z}/{x}/{y}"})
	assert.Error(t, err)

	_, err = NewRegistry(map[string]string{"osm-topo": "http://x/{z}/{x}"})
	assert.Error(t, err)
}

func TestUnknownMapType(t *testing.T) {
	reg, err := NewRegistry(nil)
	require.NoError(t, err)

	_, err = reg.Get("bing")
	assert.Error(t, err)
	assert.False(t, IsValidMapType("bing"))
	assert.True(t, IsValidMapType("google-satellite"))
}
