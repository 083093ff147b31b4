package core

import (
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/signalsfoundry/schoolgrid/model"
)

func TestGridMerger_OrdersAndJoinsSeafloor(t *testing.T) {
	cfg := testConfig(t)
	bathy := uniformSeafloor(-20)
	layer := NewSeafloorLayer(cfg.Grid, bathy)
	p, err := NewTransectProcessor(cfg, layer, bathy)
	if err != nil {
		t.Fatalf("NewTransectProcessor: %v", err)
	}

	var rasters []*TransectRaster
	for _, id := range []string{"T2", "T1"} {
		r, _, err := p.Process(TransectInput{
			ID:      id,
			Track:   straightTrack(id, 0, 10, 20),
			Samples: []model.Sample{sample(id, 5, 0, 15), sample(id, 5, 0, 16)},
		})
		if err != nil {
			t.Fatalf("Process %s: %v", id, err)
		}
		rasters = append(rasters, r)
	}
	rasters = append(rasters, nil) // a skipped transect

	meta := model.SurveyMeta{SurveyDate: time.Date(2023, 7, 14, 0, 0, 0, 0, time.UTC), SiteCode: "GRB"}
	m, err := NewGridMerger(cfg.Grid, layer, meta)
	if err != nil {
		t.Fatalf("NewGridMerger: %v", err)
	}
	rows, err := m.Merge(rasters)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if len(rows) != rasters[0].Len()+rasters[1].Len() {
		t.Fatalf("rows = %d, want %d", len(rows), rasters[0].Len()+rasters[1].Len())
	}
	for i := 1; i < len(rows); i++ {
		a, b := rows[i-1], rows[i]
		if a.TransectID > b.TransectID {
			t.Fatalf("rows not ordered by transect at %d: %s after %s", i, b.TransectID, a.TransectID)
		}
		if a.TransectID == b.TransectID && !(Cell{a.Col, a.Row}).Less(Cell{b.Col, b.Row}) {
			t.Fatalf("rows not ordered by cell at %d", i)
		}
	}
	if rows[0].TransectID != "T1" {
		t.Fatalf("first row transect = %s, want T1", rows[0].TransectID)
	}

	target := cellAt(t, cfg.Grid, 5, 0)
	found := 0
	for _, r := range rows {
		if r.SeafloorDepth != 20 || r.SiteCode != "GRB" || !r.SurveyDate.Equal(meta.SurveyDate) {
			t.Fatalf("row %+v missing joined attributes", r)
		}
		if r.Thickness < 0 {
			t.Fatalf("row %+v has negative thickness", r)
		}
		if center := cfg.Grid.Center(Cell{r.Col, r.Row}); center != (orb.Point{r.X, r.Y}) {
			t.Fatalf("row centre %v,%v does not match grid centre %v", r.X, r.Y, center)
		}
		if r.Col == target.Col && r.Row == target.Row {
			found++
			if r.Thickness != 2 {
				t.Fatalf("thickness at target = %d, want 2", r.Thickness)
			}
		}
	}
	if found != 2 {
		t.Fatalf("target cell rows = %d, want one per transect", found)
	}
}

func TestGridMerger_GridMismatchIsFatal(t *testing.T) {
	cfg := testConfig(t)
	layer := NewSeafloorLayer(cfg.Grid, uniformSeafloor(20))
	m, err := NewGridMerger(cfg.Grid, layer, model.SurveyMeta{})
	if err != nil {
		t.Fatalf("NewGridMerger: %v", err)
	}

	other := cfg.Grid
	other.CellSize = 2
	bad := &TransectRaster{TransectID: "T1", Grid: other, cells: map[Cell]CellStats{{1, 1}: {Thickness: 1}}}
	if _, err := m.Merge([]*TransectRaster{bad}); !errors.Is(err, ErrGridMismatch) {
		t.Fatalf("Merge error = %v, want ErrGridMismatch", err)
	}

	if _, err := NewGridMerger(other, layer, model.SurveyMeta{}); !errors.Is(err, ErrGridMismatch) {
		t.Fatalf("NewGridMerger error = %v, want ErrGridMismatch", err)
	}
}

func TestGridMerger_EmptyInput(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewGridMerger(cfg.Grid, NewSeafloorLayer(cfg.Grid, uniformSeafloor(20)), model.SurveyMeta{})
	if err != nil {
		t.Fatalf("NewGridMerger: %v", err)
	}
	rows, err := m.Merge(nil)
	if err != nil || len(rows) != 0 {
		t.Fatalf("Merge(nil) = %v, %v; want no rows", rows, err)
	}
}
