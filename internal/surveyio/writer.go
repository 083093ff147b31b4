package surveyio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/signalsfoundry/schoolgrid/internal/pipeline"
	"github.com/signalsfoundry/schoolgrid/model"
)

// MergedColumns is the header of the merged survey table.
var MergedColumns = []string{
	"x", "y", "transect_id", "thickness", "min_depth", "max_depth",
	"seafloor_depth", "survey_date", "site_code",
}

// NA marks an undefined value in CSV output.
const NA = "NA"

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func formatOptional(o model.Optional[float64]) string {
	if v, ok := o.Get(); ok {
		return formatFloat(v)
	}
	return NA
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return NA
	}
	return t.Format(time.DateOnly)
}

// WriteMergedCSV writes rows with a MergedColumns header.
func WriteMergedCSV(w io.Writer, rows []model.MergedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MergedColumns); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}
	rec := make([]string, len(MergedColumns))
	for _, row := range rows {
		rec[0] = formatFloat(row.X)
		rec[1] = formatFloat(row.Y)
		rec[2] = row.TransectID
		rec[3] = strconv.Itoa(row.Thickness)
		rec[4] = formatOptional(row.MinDepth)
		rec[5] = formatOptional(row.MaxDepth)
		rec[6] = formatFloat(row.SeafloorDepth)
		rec[7] = formatDate(row.SurveyDate)
		rec[8] = row.SiteCode
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("csv write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// TransectReport summarises one transect in the run report.
type TransectReport struct {
	TransectID   string         `json:"transect_id"`
	Outcome      string         `json:"outcome"`
	Stage        string         `json:"stage"`
	Reason       string         `json:"reason,omitempty"`
	Error        string         `json:"error,omitempty"`
	Samples      int            `json:"samples"`
	Retained     int            `json:"retained"`
	Discarded    map[string]int `json:"discarded,omitempty"`
	TrackPoints  int            `json:"track_points"`
	Disks        int            `json:"disks"`
	CoverageArea float64        `json:"coverage_area"`
	CoveredCells int            `json:"covered_cells"`
	Cells        int            `json:"cells"`
	DurationMS   float64        `json:"duration_ms"`
}

// RunReport is the JSON summary of a survey run.
type RunReport struct {
	RunID     string           `json:"run_id"`
	Started   time.Time        `json:"started"`
	Finished  time.Time        `json:"finished"`
	Rows      int              `json:"rows"`
	Done      int              `json:"done"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
	Transects []TransectReport `json:"transects"`
}

// NewRunReport builds the report of res.
func NewRunReport(res *pipeline.Result) RunReport {
	rep := RunReport{
		RunID:     res.RunID,
		Started:   res.Started,
		Finished:  res.Finished,
		Rows:      len(res.Rows),
		Done:      res.Count(pipeline.OutcomeDone),
		Skipped:   res.Count(pipeline.OutcomeSkipped),
		Failed:    res.Count(pipeline.OutcomeFailed),
		Transects: make([]TransectReport, 0, len(res.Outcomes)),
	}
	for _, out := range res.Outcomes {
		tr := TransectReport{
			TransectID:   out.TransectID,
			Outcome:      string(out.Outcome),
			Stage:        out.Stats.Final.String(),
			Reason:       out.Reason,
			Samples:      out.Stats.Samples,
			Retained:     out.Stats.Retained,
			Discarded:    out.Stats.Discarded,
			TrackPoints:  out.Stats.TrackPoints,
			Disks:        out.Stats.Disks,
			CoverageArea: out.Stats.CoverageArea,
			CoveredCells: out.Stats.CoveredCells,
			Cells:        out.Stats.Cells,
			DurationMS:   float64(out.Duration.Microseconds()) / 1000,
		}
		if out.Outcome == pipeline.OutcomeSkipped {
			tr.Stage = out.SkippedFrom.String()
		}
		if out.Err != nil {
			tr.Error = out.Err.Error()
		}
		rep.Transects = append(rep.Transects, tr)
	}
	return rep
}

// WriteReportJSON writes the run report of res as indented JSON.
func WriteReportJSON(w io.Writer, res *pipeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewRunReport(res)); err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	return nil
}
