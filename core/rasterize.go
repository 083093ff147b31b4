package core

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"
)

// CellValue is one value to be aggregated into the grid at Position.
type CellValue struct {
	Position orb.Point
	Value    float64
}

// AggregateFunc reduces the values that fall in one cell. It is only ever
// called with at least one value.
type AggregateFunc func(values []float64) float64

// DistinctBins counts the distinct 1-unit bins, floor(value), touched by
// values. Applied to depths it is the school thickness of a cell.
func DistinctBins(values []float64) float64 {
	seen := make(map[int64]struct{}, len(values))
	for _, v := range values {
		seen[int64(math.Floor(v))] = struct{}{}
	}
	return float64(len(seen))
}

// Minimum returns the smallest value.
func Minimum(values []float64) float64 { return floats.Min(values) }

// Maximum returns the largest value.
func Maximum(values []float64) float64 { return floats.Max(values) }

// Layer is a sparse raster of defined cell values. Cells with no value are
// undefined; a defined zero is a real measurement.
type Layer struct {
	grid   GridSpec
	values map[Cell]float64
}

// NewLayer returns an empty layer on grid.
func NewLayer(grid GridSpec) *Layer {
	return &Layer{grid: grid, values: make(map[Cell]float64)}
}

// Grid returns the grid of the layer.
func (l *Layer) Grid() GridSpec { return l.grid }

// Get returns the value of c and whether it is defined.
func (l *Layer) Get(c Cell) (float64, bool) {
	v, ok := l.values[c]
	return v, ok
}

// Len returns the number of defined cells.
func (l *Layer) Len() int { return len(l.values) }

// Cells calls fn for every defined cell in no particular order.
func (l *Layer) Cells(fn func(c Cell, v float64)) {
	for c, v := range l.values {
		fn(c, v)
	}
}

// RasterizePoints bins values into grid cells and reduces each cell with
// agg. Values outside the grid are ignored.
func RasterizePoints(grid GridSpec, values []CellValue, agg AggregateFunc) *Layer {
	buckets := make(map[Cell][]float64)
	for _, v := range values {
		c, ok := grid.CellOf(v.Position)
		if !ok {
			continue
		}
		buckets[c] = append(buckets[c], v.Value)
	}
	layer := NewLayer(grid)
	for c, vs := range buckets {
		layer.values[c] = agg(vs)
	}
	return layer
}

// Region is an area that can answer point membership.
type Region interface {
	Contains(p orb.Point) bool
	Bound() orb.Bound
}

// Mask is a boolean raster of covered cells.
type Mask struct {
	grid  GridSpec
	cells map[Cell]struct{}
}

// Grid returns the grid of the mask.
func (m *Mask) Grid() GridSpec { return m.grid }

// Covered reports whether c is inside the mask.
func (m *Mask) Covered(c Cell) bool {
	if m == nil {
		return false
	}
	_, ok := m.cells[c]
	return ok
}

// Len returns the number of covered cells.
func (m *Mask) Len() int {
	if m == nil {
		return 0
	}
	return len(m.cells)
}

// Cells calls fn for each covered cell in no particular order.
func (m *Mask) Cells(fn func(c Cell)) {
	if m == nil {
		return
	}
	for c := range m.cells {
		fn(c)
	}
}

// RasterizeRegion marks every cell of grid whose centre lies in r.
func RasterizeRegion(grid GridSpec, r Region) *Mask {
	m := &Mask{grid: grid, cells: make(map[Cell]struct{})}
	if r == nil {
		return m
	}
	lo, hi, ok := grid.CellRange(r.Bound())
	if !ok {
		return m
	}
	for row := lo.Row; row <= hi.Row; row++ {
		for col := lo.Col; col <= hi.Col; col++ {
			c := Cell{Col: col, Row: row}
			if r.Contains(grid.Center(c)) {
				m.cells[c] = struct{}{}
			}
		}
	}
	return m
}
