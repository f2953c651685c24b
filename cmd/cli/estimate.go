package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/geoscraper/tile-service/internal/tiles"
	"github.com/geoscraper/tile-service/internal/types"
)

var estimateAvgKB float64

var estimateCmd = &cobra.Command{
	Use:   "estimate <swLat,swLng,neLat,neLng> <zoom>...",
	Short: "Estimate tile count and disk usage for an area",
	Example: `  tile-service estimate 45.75,15.85,45.85,16.05 10 11 12
  tile-service estimate -- -10,-10,10,10 0 1 2`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEstimate,
}

func init() {
	rootCmd.AddCommand(estimateCmd)

	estimateCmd.Flags().Float64Var(&estimateAvgKB, "avg-tile-kb", 0, "Assumed average tile size in KB (default from config, 25)")
}

func runEstimate(cmd *cobra.Command, args []string) error {
	bounds, err := parseBounds(args[0])
	if err != nil {
		return err
	}
	zooms, err := parseZooms(args[1:])
	if err != nil {
		return err
	}

	avg := estimateAvgKB
	if avg <= 0 && cfg != nil {
		avg = cfg.Estimate.AvgTileKB
	}
	est := tiles.EstimateFor(bounds, zooms, avg)

	out := cmd.OutOrStdout()
	for _, r := range tiles.Ranges(bounds, zooms) {
		fmt.Fprintf(out, "zoom %2d: x %d-%d, y %d-%d, %d tiles\n", r.Z, r.MinX, r.MaxX, r.MinY, r.MaxY, r.Count())
	}
	fmt.Fprintf(out, "Total: %d tiles, %s\n", est.TileCount, est.DiskUsage)
	return nil
}

func parseBounds(s string) (types.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.Bounds{}, fmt.Errorf("bounds must be swLat,swLng,neLat,neLng, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return types.Bounds{}, fmt.Errorf("invalid coordinate %q: %w", p, err)
		}
		v[i] = f
	}
	b := types.Bounds{
		SW: types.LatLng{Lat: v[0], Lng: v[1]},
		NE: types.LatLng{Lat: v[2], Lng: v[3]},
	}
	if b.SW.Lat > b.NE.Lat {
		return types.Bounds{}, fmt.Errorf("southwest latitude %v exceeds northeast latitude %v", b.SW.Lat, b.NE.Lat)
	}
	return b, nil
}

func parseZooms(args []string) ([]int, error) {
	zooms := make([]int, 0, len(args))
	for _, a := range args {
		z, err := strconv.Atoi(a)
		if err != nil || z < 0 || z > tiles.MaxZoom {
			return nil, fmt.Errorf("invalid zoom level %q (want 0-%d)", a, tiles.MaxZoom)
		}
		zooms = append(zooms, z)
	}
	return zooms, nil
}
