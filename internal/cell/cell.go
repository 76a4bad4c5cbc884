// Package cell addresses the cells of the dot grid.
//
// A cell is identified by its row and column. The identifier "{row}_{col}" is
// stable across grid rebuilds only while row/col assignment is deterministic;
// a resize that reassigns positions makes old identifiers point at different
// dots. That is accepted, not corrected.
package cell

import (
	"fmt"
	"strconv"
	"strings"
)

// StoragePrefix is prepended to a cell ID to form its storage key.
const StoragePrefix = "heat_"

// Cell is one addressable unit of the grid.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Grid is the set of cells currently mounted, in build order.
type Grid []Cell

// ID returns the identifier for (row, col).
func ID(row, col int) string {
	return strconv.Itoa(row) + "_" + strconv.Itoa(col)
}

// ID returns the cell's identifier.
func (c Cell) ID() string {
	return ID(c.Row, c.Col)
}

// StorageKey returns the key the cell's record is stored under.
func (c Cell) StorageKey() string {
	return StoragePrefix + c.ID()
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Parse reverses ID. It rejects anything that is not two base-10 integers
// joined by a single underscore.
func Parse(id string) (Cell, error) {
	rowStr, colStr, ok := strings.Cut(id, "_")
	if !ok || strings.Contains(colStr, "_") {
		return Cell{}, fmt.Errorf("invalid cell id %q", id)
	}
	row, err := strconv.Atoi(rowStr)
	if err != nil {
		return Cell{}, fmt.Errorf("invalid cell id %q: row: %w", id, err)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil {
		return Cell{}, fmt.Errorf("invalid cell id %q: col: %w", id, err)
	}
	return Cell{Row: row, Col: col}, nil
}

// FromStorageKey parses a key produced by StorageKey.
func FromStorageKey(key string) (Cell, error) {
	id, ok := strings.CutPrefix(key, StoragePrefix)
	if !ok {
		return Cell{}, fmt.Errorf("key %q has no %q prefix", key, StoragePrefix)
	}
	return Parse(id)
}

// NewGrid builds a rows x cols grid in row-major order.
func NewGrid(rows, cols int) Grid {
	if rows <= 0 || cols <= 0 {
		return Grid{}
	}
	g := make(Grid, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g = append(g, Cell{Row: r, Col: c})
		}
	}
	return g
}

// Contains reports whether the grid holds c.
func (g Grid) Contains(c Cell) bool {
	for _, gc := range g {
		if gc == c {
			return true
		}
	}
	return false
}
