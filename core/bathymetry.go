package core

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// BathymetryLookup returns the seafloor at a planar position. ok is false
// where the surface has no data. Values may be elevations (negative-down)
// or depths (positive-down); callers use the magnitude.
type BathymetryLookup interface {
	SeafloorAt(p orb.Point) (value float64, ok bool)
}

// BathymetryFunc adapts a function to BathymetryLookup.
type BathymetryFunc func(p orb.Point) (float64, bool)

// SeafloorAt calls f(p).
func (f BathymetryFunc) SeafloorAt(p orb.Point) (float64, bool) { return f(p) }

// BathymetryGrid is a regular raster surface laid out like an ESRI ASCII
// grid: Data[0] is the northernmost row.
type BathymetryGrid struct {
	Cols, Rows  int
	Corner      orb.Point // lower-left corner of the lower-left cell
	CellSize    float64
	NoDataValue float64
	Data        [][]float64
}

// Validate checks that Data matches the declared dimensions.
func (b *BathymetryGrid) Validate() error {
	if b.Cols <= 0 || b.Rows <= 0 || b.CellSize <= 0 {
		return fmt.Errorf("bathymetry grid: bad header %dx%d cell %v", b.Cols, b.Rows, b.CellSize)
	}
	if len(b.Data) != b.Rows {
		return fmt.Errorf("bathymetry grid: %d rows, header says %d", len(b.Data), b.Rows)
	}
	for i, row := range b.Data {
		if len(row) != b.Cols {
			return fmt.Errorf("bathymetry grid: row %d has %d values, header says %d", i, len(row), b.Cols)
		}
	}
	return nil
}

// Bound returns the extent of the raster.
func (b *BathymetryGrid) Bound() orb.Bound {
	return orb.Bound{
		Min: b.Corner,
		Max: orb.Point{
			b.Corner[0] + float64(b.Cols)*b.CellSize,
			b.Corner[1] + float64(b.Rows)*b.CellSize,
		},
	}
}

// SeafloorAt returns the value of the raster cell containing p.
func (b *BathymetryGrid) SeafloorAt(p orb.Point) (float64, bool) {
	if b == nil || b.CellSize <= 0 {
		return 0, false
	}
	c := int(math.Floor((p[0] - b.Corner[0]) / b.CellSize))
	rFromSouth := int(math.Floor((p[1] - b.Corner[1]) / b.CellSize))
	if c < 0 || c >= b.Cols || rFromSouth < 0 || rFromSouth >= b.Rows {
		return 0, false
	}
	r := b.Rows - 1 - rFromSouth
	if r >= len(b.Data) || c >= len(b.Data[r]) {
		return 0, false
	}
	v := b.Data[r][c]
	if v == b.NoDataValue || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// SeafloorLayer is a bathymetric surface sampled at every cell centre of
// the survey grid, as positive-down depths. It is built once per survey and
// shared read-only between transects and the merge.
type SeafloorLayer struct {
	grid   GridSpec
	depths map[Cell]float64
}

// NewSeafloorLayer samples lookup at each cell centre of grid.
func NewSeafloorLayer(grid GridSpec, lookup BathymetryLookup) *SeafloorLayer {
	l := &SeafloorLayer{grid: grid, depths: make(map[Cell]float64)}
	if lookup == nil {
		return l
	}
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			c := Cell{Col: col, Row: row}
			if v, ok := lookup.SeafloorAt(grid.Center(c)); ok {
				l.depths[c] = math.Abs(v)
			}
		}
	}
	return l
}

// Grid returns the grid the layer was sampled on.
func (l *SeafloorLayer) Grid() GridSpec { return l.grid }

// DepthAt returns the seafloor depth of c.
func (l *SeafloorLayer) DepthAt(c Cell) (float64, bool) {
	if l == nil {
		return 0, false
	}
	d, ok := l.depths[c]
	return d, ok
}

// Len returns the number of cells with a defined seafloor.
func (l *SeafloorLayer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.depths)
}
