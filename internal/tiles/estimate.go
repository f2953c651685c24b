package tiles

import (
	"fmt"

	"github.com/geoscraper/tile-service/internal/types"
)

// DefaultAvgTileKB is the assumed size of one cached tile
const DefaultAvgTileKB = 25

// Estimate is a pre-flight sizing of an acquisition
type Estimate struct {
	TileCount int    `json:"tileCount" jsonschema:"required"`
	DiskUsage string `json:"diskUsage" jsonschema:"required"`
	Bytes     int64  `json:"bytes" jsonschema:"required"`
}

// EstimateFor sizes an acquisition of bounds at zooms, assuming avgTileKB per tile
func EstimateFor(b types.Bounds, zooms []int, avgTileKB float64) Estimate {
	if avgTileKB <= 0 {
		avgTileKB = DefaultAvgTileKB
	}
	count := Count(b, zooms)
	return Estimate{
		TileCount: count,
		DiskUsage: FormatDiskUsage(count, avgTileKB),
		Bytes:     int64(float64(count) * avgTileKB * 1024),
	}
}

// FormatDiskUsage renders the expected disk usage of count tiles
func FormatDiskUsage(count int, avgTileKB float64) string {
	if count <= 0 {
		return "0 MB"
	}
	kb := float64(count) * avgTileKB
	mb := kb / 1024
	gb := mb / 1024

	switch {
	case gb >= 1:
		return fmt.Sprintf("%.2f GB", gb)
	case mb >= 1:
		return fmt.Sprintf("%.2f MB", mb)
	default:
		return fmt.Sprintf("%.2f KB", kb)
	}
}
