// Package report exports a task's tile ledger for operators.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/geoscraper/tile-service/internal/providers"
	"github.com/geoscraper/tile-service/internal/storage"
	"github.com/geoscraper/tile-service/internal/tasks"
	"github.com/geoscraper/tile-service/internal/types"
)

// Format selects the export encoding
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatXLSX, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q (want xlsx or csv)", s)
}

// Row is one exported ledger entry
type Row struct {
	TaskID   int64
	Kind     types.TileKind
	Coord    types.TileCoord
	CacheKey string
	URL      string
}

var header = []string{"task_id", "kind", "z", "x", "y", "cache_key", "url"}

func (r Row) cells() []string {
	return []string{
		strconv.FormatInt(r.TaskID, 10),
		string(r.Kind),
		strconv.Itoa(r.Coord.Z),
		strconv.Itoa(r.Coord.X),
		strconv.Itoa(r.Coord.Y),
		r.CacheKey,
		r.URL,
	}
}

// Collect reads the ledger rows of each kind for t, in kind order.
// The provider may be zero, in which case URLs are left empty.
func Collect(ctx context.Context, ledger tasks.Ledger, t *types.Task, provider providers.Provider, kinds ...types.TileKind) ([]Row, error) {
	if len(kinds) == 0 {
		kinds = []types.TileKind{types.TileMissing, types.TileNonExistent}
	}

	var rows []Row
	for _, kind := range kinds {
		coords, err := ledger.ListTiles(ctx, t.ID, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s tiles for task %d: %w", kind, t.ID, err)
		}
		for _, c := range coords {
			row := Row{TaskID: t.ID, Kind: kind, Coord: c, CacheKey: storage.TileKey(t.MapType, c)}
			if provider.URLTemplate != "" {
				row.URL = provider.TileURL(c)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// Write encodes rows to w in the given format
func Write(w io.Writer, format Format, rows []Row) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, rows)
	case FormatXLSX:
		return writeXLSX(w, rows)
	}
	return fmt.Errorf("unknown export format %q", format)
}

func writeCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.cells()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SheetName is the worksheet holding the ledger rows
const SheetName = "Ledger"

func writeXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}

	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := sw.SetRow("A1", head); err != nil {
		return err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{r.TaskID, string(r.Kind), r.Coord.Z, r.Coord.X, r.Coord.Y, r.CacheKey, r.URL}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
