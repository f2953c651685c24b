package types

import (
	"fmt"
	"strconv"
	"strings"
)

// TileCoord addresses one slippy-map tile
type TileCoord struct {
	Z int `json:"z" binding:"min=0,max=22" jsonschema:"minimum=0,maximum=22"`
	X int `json:"x" binding:"min=0" jsonschema:"minimum=0"`
	Y int `json:"y" binding:"min=0" jsonschema:"minimum=0"`
}

// String renders the coordinate as z/x/y
func (c TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// ParseTileCoord parses a z/x/y string
func ParseTileCoord(s string) (TileCoord, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return TileCoord{}, fmt.Errorf("invalid tile coordinate %q: expected z/x/y", s)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return TileCoord{}, fmt.Errorf("invalid tile coordinate %q: bad component %q", s, p)
		}
		vals[i] = v
	}
	c := TileCoord{Z: vals[0], X: vals[1], Y: vals[2]}
	if c.Z > 22 || c.X >= 1<<c.Z || c.Y >= 1<<c.Z {
		return TileCoord{}, fmt.Errorf("invalid tile coordinate %q: out of range for zoom %d", s, c.Z)
	}
	return c, nil
}

// TileKind classifies a ledger row
type TileKind string

const (
	TileMissing     TileKind = "missing"
	TileNonExistent TileKind = "non-existent"
)

// Valid reports whether k is a known ledger kind
func (k TileKind) Valid() bool {
	return k == TileMissing || k == TileNonExistent
}

// TileRecord is one ledger row
type TileRecord struct {
	TaskID int64    `json:"taskId"`
	Z      int      `json:"z"`
	X      int      `json:"x"`
	Y      int      `json:"y"`
	Kind   TileKind `json:"type"`
}

// Coord returns the record's tile coordinate
func (r TileRecord) Coord() TileCoord {
	return TileCoord{Z: r.Z, X: r.X, Y: r.Y}
}
