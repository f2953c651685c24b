// Package providers holds the closed set of tile providers and their URL templates.
package providers

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/geoscraper/tile-service/internal/types"
)

// MapType identifies a tile provider; it is also the cache-sharing key
type MapType string

const (
	GoogleSatellite MapType = "google-satellite"
	OSMStandard     MapType = "osm-standard"
	OSMTopo         MapType = "osm-topo"
)

// MapTypes contains all supported map types
var MapTypes = []MapType{
	GoogleSatellite,
	OSMStandard,
	OSMTopo,
}

// Provider describes where tiles of one map type come from
type Provider struct {
	MapType     MapType `json:"mapType"`
	Name        string  `json:"name"`
	URLTemplate string  `json:"urlTemplate"`
	MaxZoom     int     `json:"maxZoom"`
}

// TileURL substitutes {z}, {x} and {y} into the provider template
func (p Provider) TileURL(c types.TileCoord) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(c.Z),
		"{x}", strconv.Itoa(c.X),
		"{y}", strconv.Itoa(c.Y),
	).Replace(p.URLTemplate)
}

// DefaultProviders contains the built-in provider definitions
var DefaultProviders = map[MapType]Provider{
	GoogleSatellite: {
		MapType:     GoogleSatellite,
		Name:        "Google Satellite",
		URLTemplate: "https://mt1.google.com/vt/lyrs=s&x={x}&y={y}&z={z}",
		MaxZoom:     22,
	},
	OSMStandard: {
		MapType:     OSMStandard,
		Name:        "OpenStreetMap Standard",
		URLTemplate: "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		MaxZoom:     19,
	},
	OSMTopo: {
		MapType:     OSMTopo,
		Name:        "OpenTopoMap",
		URLTemplate: "https://a.tile.opentopomap.org/{z}/{x}/{y}.png",
		MaxZoom:     17,
	},
}

// IsValidMapType checks if a map type is one of the supported providers
func IsValidMapType(mapType string) bool {
	_, ok := DefaultProviders[MapType(mapType)]
	return ok
}

// Registry resolves map types to providers, with optional template overrides
type Registry struct {
	providers map[MapType]Provider
}

// NewRegistry creates a registry from the defaults, replacing URL templates
// for map types present in overrides. Unknown map types are rejected.
func NewRegistry(overrides map[string]string) (*Registry, error) {
	providers := make(map[MapType]Provider, len(DefaultProviders))
	for k, v := range DefaultProviders {
		providers[k] = v
	}

	for mapType, tmpl := range overrides {
		p, ok := providers[MapType(mapType)]
		if !ok {
			return nil, fmt.Errorf("unknown map type in provider overrides: %s", mapType)
		}
		if !strings.Contains(tmpl, "{z}") || !strings.Contains(tmpl, "{x}") || !strings.Contains(tmpl, "{y}") {
			return nil, fmt.Errorf("provider template for %s must contain {z}, {x} and {y}", mapType)
		}
		p.URLTemplate = tmpl
		providers[MapType(mapType)] = p
	}

	return &Registry{providers: providers}, nil
}

// Get returns the provider for a map type
func (r *Registry) Get(mapType string) (Provider, error) {
	p, ok := r.providers[MapType(mapType)]
	if !ok {
		return Provider{}, fmt.Errorf("unknown map type: %s", mapType)
	}
	return p, nil
}

// List returns all providers sorted by map type
func (r *Registry) List() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MapType < out[j].MapType })
	return out
}
