package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/geoscraper/tile-service/internal/database/memory"
	"github.com/geoscraper/tile-service/internal/providers"
	"github.com/geoscraper/tile-service/internal/types"
)

func seeded(t *testing.T) []Row {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	task, err := store.CreateTask(ctx, types.NewTask{
		Name:       "export",
		MapType:    string(providers.OSMStandard),
		Bounds:     types.Bounds{SW: types.LatLng{Lat: 1, Lng: 1}, NE: types.LatLng{Lat: 2, Lng: 2}},
		ZoomLevels: []int{3},
	})
	require.NoError(t, err)

	require.NoError(t, store.InsertTiles(ctx, task.ID, types.TileMissing, []types.TileCoord{{Z: 3, X: 4, Y: 3}}))
	require.NoError(t, store.InsertTiles(ctx, task.ID, types.TileNonExistent, []types.TileCoord{{Z: 3, X: 5, Y: 3}}))

	rows, err := Collect(ctx, store, task, providers.DefaultProviders[providers.OSMStandard])
	require.NoError(t, err)
	require.Len(t, rows, 2)
	return rows
}

func TestCollect(t *testing.T) {
	rows := seeded(t)

	assert.Equal(t, types.TileMissing, rows[0].Kind)
	assert.Equal(t, "osm-standard/3/4/3.png", rows[0].CacheKey)
	assert.Equal(t, "https://tile.openstreetmap.org/3/4/3.png", rows[0].URL)
	assert.Equal(t, types.TileNonExistent, rows[1].Kind)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, seeded(t)))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, header, records[0])
	assert.Equal(t, []string{"missing", "3", "4", "3"}, records[1][1:5])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, seeded(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "non-existent", rows[2][1])
	assert.Equal(t, "5", rows[2][3])
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}
