package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineCollector bundles Prometheus metrics for survey runs.
type PipelineCollector struct {
	gatherer prometheus.Gatherer

	Transects        *prometheus.CounterVec
	TransectDuration prometheus.Histogram
	SamplesDiscarded *prometheus.CounterVec
	CoveredCells     prometheus.Counter
	MergedRows       prometheus.Gauge
}

// NewPipelineCollector registers pipeline metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewPipelineCollector(reg prometheus.Registerer) (*PipelineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	transects, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolgrid_transects_total",
		Help: "Transects processed, labeled by outcome (done, skipped, failed).",
	}, []string{"outcome"}), "schoolgrid_transects_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schoolgrid_transect_duration_seconds",
		Help:    "Wall time spent processing one transect.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}), "schoolgrid_transect_duration_seconds")
	if err != nil {
		return nil, err
	}

	discarded, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolgrid_samples_discarded_total",
		Help: "Samples removed by the filter stage, labeled by reason.",
	}, []string{"reason"}), "schoolgrid_samples_discarded_total")
	if err != nil {
		return nil, err
	}

	covered, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schoolgrid_covered_cells_total",
		Help: "Grid cells inside swath coverage, summed over transects.",
	}), "schoolgrid_covered_cells_total")
	if err != nil {
		return nil, err
	}

	rows, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schoolgrid_merged_rows",
		Help: "Rows in the merged survey table of the last run.",
	}), "schoolgrid_merged_rows")
	if err != nil {
		return nil, err
	}

	return &PipelineCollector{
		gatherer:         gatherer,
		Transects:        transects,
		TransectDuration: duration,
		SamplesDiscarded: discarded,
		CoveredCells:     covered,
		MergedRows:       rows,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *PipelineCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PipelineCollector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTransect counts one finished transect and its duration.
func (c *PipelineCollector) ObserveTransect(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	if c.Transects != nil {
		c.Transects.WithLabelValues(outcome).Inc()
	}
	if c.TransectDuration != nil {
		c.TransectDuration.Observe(d.Seconds())
	}
}

// AddDiscarded adds n discarded samples for reason.
func (c *PipelineCollector) AddDiscarded(reason string, n int) {
	if c == nil || c.SamplesDiscarded == nil || n <= 0 {
		return
	}
	c.SamplesDiscarded.WithLabelValues(reason).Add(float64(n))
}

// AddCoveredCells adds n covered cells.
func (c *PipelineCollector) AddCoveredCells(n int) {
	if c == nil || c.CoveredCells == nil || n <= 0 {
		return
	}
	c.CoveredCells.Add(float64(n))
}

// SetMergedRows updates the merged table size gauge.
func (c *PipelineCollector) SetMergedRows(n int) {
	if c == nil || c.MergedRows == nil {
		return
	}
	c.MergedRows.Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
