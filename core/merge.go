package core

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/signalsfoundry/schoolgrid/model"
)

// GridMerger folds finished transect rasters into the survey table.
type GridMerger struct {
	grid     GridSpec
	seafloor *SeafloorLayer
	meta     model.SurveyMeta
}

// NewGridMerger binds a merger to the survey grid and seafloor layer.
func NewGridMerger(grid GridSpec, seafloor *SeafloorLayer, meta model.SurveyMeta) (*GridMerger, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if seafloor == nil || !seafloor.Grid().Equal(grid) {
		return nil, fmt.Errorf("%w: seafloor layer is not on the survey grid", ErrGridMismatch)
	}
	return &GridMerger{grid: grid, seafloor: seafloor, meta: meta}, nil
}

// Merge flattens rasters into one row per (cell, transect), joined with the
// seafloor depth of the cell. Rows are ordered by transect ID, then row,
// then column. A raster built on another grid aborts the merge with
// ErrGridMismatch. Nil rasters (skipped transects) are ignored.
func (m *GridMerger) Merge(rasters []*TransectRaster) ([]model.MergedRow, error) {
	live := make([]*TransectRaster, 0, len(rasters))
	total := 0
	for _, r := range rasters {
		if r == nil {
			continue
		}
		if !r.Grid.Equal(m.grid) {
			return nil, fmt.Errorf("%w: transect %q", ErrGridMismatch, r.TransectID)
		}
		live = append(live, r)
		total += r.Len()
	}
	slices.SortStableFunc(live, func(a, b *TransectRaster) int {
		return cmp.Compare(a.TransectID, b.TransectID)
	})

	rows := make([]model.MergedRow, 0, total)
	for _, r := range live {
		for _, c := range r.Cells() {
			stats, _ := r.Get(c)
			floor, ok := m.seafloor.DepthAt(c)
			if !ok {
				continue
			}
			center := m.grid.Center(c)
			rows = append(rows, model.MergedRow{
				X:             center[0],
				Y:             center[1],
				Col:           c.Col,
				Row:           c.Row,
				TransectID:    r.TransectID,
				Thickness:     stats.Thickness,
				MinDepth:      stats.MinDepth,
				MaxDepth:      stats.MaxDepth,
				SeafloorDepth: floor,
				SurveyDate:    m.meta.SurveyDate,
				SiteCode:      m.meta.SiteCode,
			})
		}
	}
	return rows, nil
}
