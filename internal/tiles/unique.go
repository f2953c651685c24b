package tiles

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/geoscraper/tile-service/internal/types"
)

// Unique drops repeated coordinates, keeping the first occurrence of each
func Unique(coords []types.TileCoord) []types.TileCoord {
	seen := mapset.NewThreadUnsafeSetWithSize[types.TileCoord](len(coords))
	out := make([]types.TileCoord, 0, len(coords))
	for _, c := range coords {
		if seen.Add(c) {
			out = append(out, c)
		}
	}
	return out
}

// UniqueZooms drops repeated zoom levels, keeping the first occurrence of each
func UniqueZooms(zooms []int) []int {
	seen := mapset.NewThreadUnsafeSetWithSize[int](len(zooms))
	out := make([]int, 0, len(zooms))
	for _, z := range zooms {
		if seen.Add(z) {
			out = append(out, z)
		}
	}
	return out
}
