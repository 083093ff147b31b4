package core

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/signalsfoundry/schoolgrid/model"
)

// uniformSeafloor is a bathymetric surface of constant elevation.
func uniformSeafloor(v float64) BathymetryFunc {
	return func(orb.Point) (float64, bool) { return v, true }
}

func testGrid(t *testing.T) GridSpec {
	t.Helper()
	g, err := NewGridSpec(orb.Point{-50, -50}, 100, 100, 1)
	if err != nil {
		t.Fatalf("NewGridSpec: %v", err)
	}
	return g
}

func testConfig(t *testing.T) ProcessorConfig {
	t.Helper()
	return ProcessorConfig{
		Grid:             testGrid(t),
		SwathApertureDeg: 60,
		MinDepth:         10,
		BottomClearance:  1,
		TrackStride:      1,
	}
}

func newTestProcessor(t *testing.T, cfg ProcessorConfig, bathy BathymetryLookup, opts ...ProcessorOption) *TransectProcessor {
	t.Helper()
	p, err := NewTransectProcessor(cfg, NewSeafloorLayer(cfg.Grid, bathy), bathy, opts...)
	if err != nil {
		t.Fatalf("NewTransectProcessor: %v", err)
	}
	return p
}

func straightTrack(id string, xs ...float64) []model.TrackPoint {
	track := make([]model.TrackPoint, len(xs))
	for i, x := range xs {
		track[i] = model.TrackPoint{Position: orb.Point{x, 0}, Seq: i, TransectID: id}
	}
	return track
}

func sample(id string, x, y, depth float64) model.Sample {
	return model.Sample{Position: orb.Point{x, y}, Depth: depth, Backscatter: -60, TransectID: id}
}
