package core

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Cell addresses one grid cell. Row 0 is the southern edge of the grid.
type Cell struct {
	Col, Row int
}

// Less orders cells row-major from the south-west corner.
func (c Cell) Less(o Cell) bool {
	if c.Row != o.Row {
		return c.Row < o.Row
	}
	return c.Col < o.Col
}

// GridSpec is the fixed, axis-aligned grid shared by every transect of a
// survey and by the merge step.
type GridSpec struct {
	Origin   orb.Point // lower-left corner
	CellSize float64
	Cols     int
	Rows     int
}

// NewGridSpec builds a grid covering width x height metres from origin.
// Partial cells at the far edges are kept.
func NewGridSpec(origin orb.Point, width, height, cellSize float64) (GridSpec, error) {
	if cellSize <= 0 || math.IsNaN(cellSize) {
		return GridSpec{}, fmt.Errorf("%w: cell size %v", ErrInvalidGrid, cellSize)
	}
	if width <= 0 || height <= 0 {
		return GridSpec{}, fmt.Errorf("%w: extent %vx%v", ErrInvalidGrid, width, height)
	}
	g := GridSpec{
		Origin:   origin,
		CellSize: cellSize,
		Cols:     int(math.Ceil(width / cellSize)),
		Rows:     int(math.Ceil(height / cellSize)),
	}
	return g, g.Validate()
}

// Validate checks the grid is usable.
func (g GridSpec) Validate() error {
	if g.CellSize <= 0 || math.IsNaN(g.CellSize) || math.IsInf(g.CellSize, 0) {
		return fmt.Errorf("%w: cell size %v", ErrInvalidGrid, g.CellSize)
	}
	if g.Cols <= 0 || g.Rows <= 0 {
		return fmt.Errorf("%w: %dx%d cells", ErrInvalidGrid, g.Cols, g.Rows)
	}
	return nil
}

// Equal reports whether two grids address cells identically.
func (g GridSpec) Equal(o GridSpec) bool {
	return g.Origin.Equal(o.Origin) && g.CellSize == o.CellSize && g.Cols == o.Cols && g.Rows == o.Rows
}

// Bound returns the planar extent of the grid.
func (g GridSpec) Bound() orb.Bound {
	return orb.Bound{
		Min: g.Origin,
		Max: orb.Point{
			g.Origin[0] + float64(g.Cols)*g.CellSize,
			g.Origin[1] + float64(g.Rows)*g.CellSize,
		},
	}
}

// InGrid reports whether c addresses a cell of the grid.
func (g GridSpec) InGrid(c Cell) bool {
	return c.Col >= 0 && c.Col < g.Cols && c.Row >= 0 && c.Row < g.Rows
}

// CellOf returns the cell containing p. Points on a shared edge belong to
// the cell to the north/east. Points outside the grid report false.
func (g GridSpec) CellOf(p orb.Point) (Cell, bool) {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
		return Cell{}, false
	}
	c := Cell{
		Col: int(math.Floor((p[0] - g.Origin[0]) / g.CellSize)),
		Row: int(math.Floor((p[1] - g.Origin[1]) / g.CellSize)),
	}
	return c, g.InGrid(c)
}

// Center returns the planar centre of c. The mapping depends only on the
// grid, so a cell has the same centre in every transect.
func (g GridSpec) Center(c Cell) orb.Point {
	return orb.Point{
		g.Origin[0] + (float64(c.Col)+0.5)*g.CellSize,
		g.Origin[1] + (float64(c.Row)+0.5)*g.CellSize,
	}
}

// CellRange returns the inclusive range of cells whose extent intersects b,
// clipped to the grid. ok is false when b lies outside the grid.
func (g GridSpec) CellRange(b orb.Bound) (lo, hi Cell, ok bool) {
	lo = Cell{
		Col: int(math.Floor((b.Min[0] - g.Origin[0]) / g.CellSize)),
		Row: int(math.Floor((b.Min[1] - g.Origin[1]) / g.CellSize)),
	}
	hi = Cell{
		Col: int(math.Floor((b.Max[0] - g.Origin[0]) / g.CellSize)),
		Row: int(math.Floor((b.Max[1] - g.Origin[1]) / g.CellSize)),
	}
	lo.Col, lo.Row = max(lo.Col, 0), max(lo.Row, 0)
	hi.Col, hi.Row = min(hi.Col, g.Cols-1), min(hi.Row, g.Rows-1)
	if lo.Col > hi.Col || lo.Row > hi.Row {
		return Cell{}, Cell{}, false
	}
	return lo, hi, true
}
