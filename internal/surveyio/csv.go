package surveyio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/signalsfoundry/schoolgrid/model"
)

// Column names of the input CSV files. Matching is case-insensitive and
// column order is free.
var (
	SampleColumns = []string{"x", "y", "depth", "backscatter", "transect_id"}
	TrackColumns  = []string{"x", "y", "seq", "transect_id"}
)

// TrackSeafloorColumn is the optional per-point seafloor depth column of
// track files.
const TrackSeafloorColumn = "seafloor_depth"

// table walks the records of a header-led CSV file.
type table struct {
	source string
	r      *csv.Reader
	cols   map[string]int
	line   int
	rec    []string
}

func newTable(source string, r io.Reader, required []string) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file", source)
		}
		return nil, fmt.Errorf("%s: read header: %w", source, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%s: %w %q", source, ErrMissingColumn, name)
		}
	}
	return &table{source: source, r: cr, cols: cols, line: 1}, nil
}

// next advances to the following record; it returns io.EOF at the end.
func (t *table) next() error {
	for {
		rec, err := t.r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return &ErrParse{Source: t.source, Line: t.line + 1, Err: err}
		}
		t.line, _ = t.r.FieldPos(0)
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		t.rec = rec
		return nil
	}
}

func (t *table) has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

func (t *table) str(name string) string {
	i, ok := t.cols[name]
	if !ok || i >= len(t.rec) {
		return ""
	}
	return strings.TrimSpace(t.rec[i])
}

func (t *table) float(name string) (float64, error) {
	v, err := strconv.ParseFloat(t.str(name), 64)
	if err != nil {
		return 0, &ErrParse{Source: t.source, Line: t.line, Field: name, Err: err}
	}
	return v, nil
}

func (t *table) integer(name string) (int, error) {
	v, err := strconv.Atoi(t.str(name))
	if err != nil {
		return 0, &ErrParse{Source: t.source, Line: t.line, Field: name, Err: err}
	}
	return v, nil
}

// optionalFloat treats an empty value or NA as unset.
func (t *table) optionalFloat(name string) (model.Optional[float64], error) {
	s := t.str(name)
	if s == "" || strings.EqualFold(s, "NA") {
		return model.None[float64](), nil
	}
	v, err := t.float(name)
	if err != nil {
		return model.None[float64](), err
	}
	return model.Some(v), nil
}

func (t *table) point() (orb.Point, error) {
	x, err := t.float("x")
	if err != nil {
		return orb.Point{}, err
	}
	y, err := t.float("y")
	if err != nil {
		return orb.Point{}, err
	}
	return orb.Point{x, y}, nil
}

// ReadSamplesCSV reads sonar returns from a CSV file with the columns in
// SampleColumns.
func ReadSamplesCSV(r io.Reader) ([]model.Sample, error) {
	t, err := newTable("samples", r, SampleColumns)
	if err != nil {
		return nil, err
	}
	var out []model.Sample
	for {
		if err := t.next(); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		pos, err := t.point()
		if err != nil {
			return nil, err
		}
		depth, err := t.float("depth")
		if err != nil {
			return nil, err
		}
		sv, err := t.float("backscatter")
		if err != nil {
			return nil, err
		}
		out = append(out, model.Sample{
			Position:    pos,
			Depth:       depth,
			Backscatter: sv,
			TransectID:  t.str("transect_id"),
		})
	}
}

// ReadTrackCSV reads cruise-track points from a CSV file with the columns in
// TrackColumns and an optional TrackSeafloorColumn.
func ReadTrackCSV(r io.Reader) ([]model.TrackPoint, error) {
	t, err := newTable("track", r, TrackColumns)
	if err != nil {
		return nil, err
	}
	withFloor := t.has(TrackSeafloorColumn)
	var out []model.TrackPoint
	for {
		if err := t.next(); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		pos, err := t.point()
		if err != nil {
			return nil, err
		}
		seq, err := t.integer("seq")
		if err != nil {
			return nil, err
		}
		tp := model.TrackPoint{Position: pos, Seq: seq, TransectID: t.str("transect_id")}
		if withFloor {
			if tp.SeafloorDepth, err = t.optionalFloat(TrackSeafloorColumn); err != nil {
				return nil, err
			}
		}
		out = append(out, tp)
	}
}
