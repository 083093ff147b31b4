package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveTransectRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}

	collector.ObserveTransect("done", 20*time.Millisecond)
	collector.ObserveTransect("done", 10*time.Millisecond)
	collector.ObserveTransect("skipped", time.Millisecond)

	if got := testutil.ToFloat64(collector.Transects.WithLabelValues("done")); got != 2 {
		t.Fatalf("schoolgrid_transects_total{done} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Transects.WithLabelValues("skipped")); got != 1 {
		t.Fatalf("schoolgrid_transects_total{skipped} = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "schoolgrid_transect_duration_seconds", nil); count != 3 {
		t.Fatalf("schoolgrid_transect_duration_seconds sample_count = %d, want 3", count)
	}
}

func TestDiscardedAndCoveredCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}

	collector.AddDiscarded("shallow", 3)
	collector.AddDiscarded("shallow", 0)
	collector.AddDiscarded("near_bottom", 2)
	collector.AddCoveredCells(41)
	collector.SetMergedRows(17)

	if got := testutil.ToFloat64(collector.SamplesDiscarded.WithLabelValues("shallow")); got != 3 {
		t.Fatalf("discarded{shallow} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.SamplesDiscarded.WithLabelValues("near_bottom")); got != 2 {
		t.Fatalf("discarded{near_bottom} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.CoveredCells); got != 41 {
		t.Fatalf("covered cells = %v, want 41", got)
	}
	if got := testutil.ToFloat64(collector.MergedRows); got != 17 {
		t.Fatalf("merged rows = %v, want 17", got)
	}
}

func TestRegisterReusesExistingCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("first NewPipelineCollector: %v", err)
	}
	second, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("second NewPipelineCollector: %v", err)
	}

	first.ObserveTransect("done", time.Millisecond)
	if got := testutil.ToFloat64(second.Transects.WithLabelValues("done")); got != 1 {
		t.Fatalf("second collector sees %v, want shared counter value 1", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *PipelineCollector
	c.ObserveTransect("done", time.Second)
	c.AddDiscarded("shallow", 1)
	c.AddCoveredCells(1)
	c.SetMergedRows(1)
	if c.Gatherer() != nil {
		t.Fatalf("nil collector returned a gatherer")
	}
}

func TestMetricsHandlerExposesPipelineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}
	collector.ObserveTransect("done", time.Millisecond)
	collector.AddDiscarded("shallow", 1)
	collector.AddCoveredCells(4)
	collector.SetMergedRows(4)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"schoolgrid_transects_total",
		"schoolgrid_transect_duration_seconds",
		"schoolgrid_samples_discarded_total",
		"schoolgrid_covered_cells_total",
		"schoolgrid_merged_rows",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
