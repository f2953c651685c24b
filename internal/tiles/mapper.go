// Package tiles converts geographic bounding boxes into slippy-map tile coordinates.
package tiles

import (
	"math"

	"github.com/geoscraper/tile-service/internal/types"
)

// MaxZoom is the highest zoom level accepted by the mapper
const MaxZoom = 22

// MaxLatitude is the Web Mercator latitude limit
const MaxLatitude = 85.05112878

// DefaultMaxTaskTiles bounds the tiles one task may cover
const DefaultMaxTaskTiles = 5_000_000

// LonToTileX converts a longitude to a tile column at zoom z
func LonToTileX(lon float64, z int) int {
	n := math.Exp2(float64(z))
	x := int(math.Floor((lon + 180) / 360 * n))
	return clamp(x, z)
}

// LatToTileY converts a latitude to a tile row at zoom z
func LatToTileY(lat float64, z int) int {
	lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
	n := math.Exp2(float64(z))
	rad := lat * math.Pi / 180
	y := int(math.Floor((1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2 * n))
	return clamp(y, z)
}

// clamp keeps an index inside [0, 2^z). lon=180 and the poles land one past the edge.
func clamp(v, z int) int {
	maxIdx := (1 << z) - 1
	if v < 0 {
		return 0
	}
	if v > maxIdx {
		return maxIdx
	}
	return v
}

// Range is the inclusive tile index range covering a box at one zoom level
type Range struct {
	Z    int
	MinX int
	MaxX int
	MinY int
	MaxY int
}

// Count returns the number of tiles in the range, zero for inverted ranges
func (r Range) Count() int {
	w := r.MaxX - r.MinX + 1
	h := r.MaxY - r.MinY + 1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// RangeFor computes the tile range for bounds at zoom z.
// The northeast latitude gives the minimum row because rows grow southward.
func RangeFor(b types.Bounds, z int) Range {
	return Range{
		Z:    z,
		MinX: LonToTileX(b.SW.Lng, z),
		MaxX: LonToTileX(b.NE.Lng, z),
		MinY: LatToTileY(b.NE.Lat, z),
		MaxY: LatToTileY(b.SW.Lat, z),
	}
}

// Ranges returns one range per distinct valid zoom level, in the given order
func Ranges(b types.Bounds, zooms []int) []Range {
	if b.IsZero() || len(zooms) == 0 {
		return nil
	}
	out := make([]Range, 0, len(zooms))
	for _, z := range UniqueZooms(zooms) {
		if z < 0 || z > MaxZoom {
			continue
		}
		out = append(out, RangeFor(b, z))
	}
	return out
}

// Coordinates materializes every tile covering the bounds at each zoom level.
// Zooms are visited in order; within a zoom x is the outer loop and y the inner.
func Coordinates(b types.Bounds, zooms []int) []types.TileCoord {
	ranges := Ranges(b, zooms)
	total := 0
	for _, r := range ranges {
		total += r.Count()
	}
	coords := make([]types.TileCoord, 0, total)
	for _, r := range ranges {
		for x := r.MinX; x <= r.MaxX; x++ {
			for y := r.MinY; y <= r.MaxY; y++ {
				coords = append(coords, types.TileCoord{Z: r.Z, X: x, Y: y})
			}
		}
	}
	return coords
}

// Count returns the number of tiles Coordinates would produce without materializing them
func Count(b types.Bounds, zooms []int) int {
	total := 0
	for _, r := range Ranges(b, zooms) {
		total += r.Count()
	}
	return total
}
