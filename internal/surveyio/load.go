package surveyio

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/signalsfoundry/schoolgrid/core"
	"github.com/signalsfoundry/schoolgrid/kb"
	"github.com/signalsfoundry/schoolgrid/model"
)

// LoadStore moves samples and track points into store, shifting positions
// into frame.
func LoadStore(store *kb.SurveyStore, frame core.GeoFrame, samples []model.Sample, track []model.TrackPoint) error {
	for i, s := range samples {
		s.Position = frame.ToLocal(s.Position)
		if err := store.AddSample(s); err != nil {
			return fmt.Errorf("sample %d: %w", i+1, err)
		}
	}
	for i, tp := range track {
		tp.Position = frame.ToLocal(tp.Position)
		if err := store.AddTrackPoint(tp); err != nil {
			return fmt.Errorf("track point %d: %w", i+1, err)
		}
	}
	return nil
}

// LocalBathymetry exposes a raster in world coordinates as a lookup in frame.
func LocalBathymetry(frame core.GeoFrame, g *core.BathymetryGrid) core.BathymetryLookup {
	return core.BathymetryFunc(func(p orb.Point) (float64, bool) {
		return g.SeafloorAt(frame.ToWorld(p))
	})
}

// WorldRows shifts the cell centres of rows from frame back to world
// coordinates.
func WorldRows(frame core.GeoFrame, rows []model.MergedRow) []model.MergedRow {
	out := make([]model.MergedRow, len(rows))
	for i, row := range rows {
		p := frame.ToWorld(orb.Point{row.X, row.Y})
		row.X, row.Y = p[0], p[1]
		out[i] = row
	}
	return out
}
