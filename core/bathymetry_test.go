package core

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func testBathymetryGrid() *BathymetryGrid {
	return &BathymetryGrid{
		Cols:        3,
		Rows:        2,
		Corner:      orb.Point{0, 0},
		CellSize:    10,
		NoDataValue: -9999,
		Data: [][]float64{
			{-10, -12, -9999}, // northern row, y ∈ [10, 20)
			{-20, -22, -24},   // southern row, y ∈ [0, 10)
		},
	}
}

func TestBathymetryGrid_SeafloorAt(t *testing.T) {
	b := testBathymetryGrid()
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cases := []struct {
		p      orb.Point
		want   float64
		wantOK bool
	}{
		{orb.Point{5, 5}, -20, true},
		{orb.Point{25, 5}, -24, true},
		{orb.Point{15, 15}, -12, true},
		{orb.Point{25, 15}, 0, false}, // no-data
		{orb.Point{-1, 5}, 0, false},
		{orb.Point{5, 20}, 0, false},
	}
	for _, tc := range cases {
		got, ok := b.SeafloorAt(tc.p)
		if ok != tc.wantOK || (ok && got != tc.want) {
			t.Errorf("SeafloorAt(%v) = %v, %v; want %v, %v", tc.p, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestBathymetryGrid_ValidateShape(t *testing.T) {
	b := testBathymetryGrid()
	b.Data[1] = b.Data[1][:2]
	if err := b.Validate(); err == nil {
		t.Fatalf("expected ragged data to fail validation")
	}
}

func TestSeafloorLayer_StoresPositiveDepths(t *testing.T) {
	grid := GridSpec{Origin: orb.Point{0, 0}, CellSize: 10, Cols: 3, Rows: 2}
	layer := NewSeafloorLayer(grid, testBathymetryGrid())

	if layer.Len() != 5 {
		t.Fatalf("defined cells = %d, want 5", layer.Len())
	}
	d, ok := layer.DepthAt(Cell{Col: 2, Row: 0})
	if !ok || d != 24 {
		t.Fatalf("DepthAt({2 0}) = %v, %v; want 24, true", d, ok)
	}
	if _, ok := layer.DepthAt(Cell{Col: 2, Row: 1}); ok {
		t.Fatalf("expected no-data cell to be undefined")
	}
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			if d, ok := layer.DepthAt(Cell{Col: col, Row: row}); ok && (d < 0 || math.IsNaN(d)) {
				t.Fatalf("cell {%d %d} depth %v is not positive-down", col, row, d)
			}
		}
	}
}
