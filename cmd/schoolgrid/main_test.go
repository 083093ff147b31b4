package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/schoolgrid/internal/logging"
)

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func flatBathymetry() string {
	var b strings.Builder
	b.WriteString("ncols 10\nnrows 10\nxllcorner 999950\nyllcorner 4999950\ncellsize 10\nNODATA_value -9999\n")
	row := strings.TrimSpace(strings.Repeat("-20 ", 10))
	for range 10 {
		b.WriteString(row)
		b.WriteByte('\n')
	}
	return b.String()
}

func TestRunEndToEnd(t *testing.T) {
	t.Setenv("SCHOOLGRID_TRACING_ENABLED", "false")
	dir := t.TempDir()

	cfgPath := writeTemp(t, dir, "survey.yaml", `
survey:
  date: "2023-07-14"
  site_code: NCR
frame:
  reference: [1000000, 5000000]
swath:
  aperture_deg: 60
filter:
  min_depth: 10
  bottom_clearance: 1
pipeline:
  workers: 2
`)
	bathyPath := writeTemp(t, dir, "bathy.asc", flatBathymetry())
	samplesPath := writeTemp(t, dir, "samples.csv", "x,y,depth,backscatter,transect_id\n"+
		"1000005,5000000,15,-60,T1\n"+
		"1000005,5000000,16,-60,T1\n"+
		"1000005,5000000,19.5,-60,T1\n"+
		"1000000,5000020,12,-60,T2\n")
	trackPath := writeTemp(t, dir, "track.csv", "x,y,seq,transect_id\n"+
		"1000020,5000000,2,T1\n"+
		"1000000,5000000,0,T1\n"+
		"1000010,5000000,1,T1\n"+
		"1000000,5000020,0,T2\n")
	outPath := filepath.Join(dir, "merged.csv")
	reportPath := filepath.Join(dir, "report.json")

	args := []string{
		"-config", cfgPath,
		"-samples", samplesPath,
		"-track", trackPath,
		"-bathymetry", bathyPath,
		"-out", outPath,
		"-report", reportPath,
	}
	if err := run(context.Background(), args, &bytes.Buffer{}, logging.Noop()); err != nil {
		t.Fatalf("run: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(recs) < 2 {
		t.Fatalf("output has %d records, want header plus rows", len(recs))
	}
	if got := strings.Join(recs[0], ","); got != "x,y,transect_id,thickness,min_depth,max_depth,seafloor_depth,survey_date,site_code" {
		t.Fatalf("header = %s", got)
	}
	found := false
	for _, rec := range recs[1:] {
		if rec[2] != "T1" {
			t.Fatalf("row for unexpected transect: %v", rec)
		}
		if rec[0] == "1000005.5" && rec[1] == "5000000.5" {
			found = true
			want := []string{"1000005.5", "5000000.5", "T1", "2", "15", "16", "20", "2023-07-14", "NCR"}
			if strings.Join(rec, ",") != strings.Join(want, ",") {
				t.Fatalf("sample cell row = %v, want %v", rec, want)
			}
		}
	}
	if !found {
		t.Fatalf("sample cell missing from output")
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var rep struct {
		Done    int `json:"done"`
		Skipped int `json:"skipped"`
		Rows    int `json:"rows"`
	}
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.Done != 1 || rep.Skipped != 1 || rep.Rows != len(recs)-1 {
		t.Fatalf("report = %+v, want 1 done, 1 skipped, %d rows", rep, len(recs)-1)
	}
}

func TestRunRequiresInputs(t *testing.T) {
	err := run(context.Background(), []string{"-samples", "s.csv"}, &bytes.Buffer{}, logging.Noop())
	if err == nil {
		t.Fatalf("run without track and bathymetry succeeded")
	}
}

func TestRunMissingFile(t *testing.T) {
	t.Setenv("SCHOOLGRID_TRACING_ENABLED", "false")
	dir := t.TempDir()
	args := []string{
		"-samples", filepath.Join(dir, "none.csv"),
		"-track", filepath.Join(dir, "none.csv"),
		"-bathymetry", filepath.Join(dir, "none.asc"),
	}
	if err := run(context.Background(), args, &bytes.Buffer{}, logging.Noop()); err == nil {
		t.Fatalf("run with missing files succeeded")
	}
}
