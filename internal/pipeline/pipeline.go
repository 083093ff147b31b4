// Package pipeline runs every transect of a survey through the
// rasterization engine and merges the results into one table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/signalsfoundry/schoolgrid/core"
	"github.com/signalsfoundry/schoolgrid/internal/logging"
	"github.com/signalsfoundry/schoolgrid/internal/observability"
	"github.com/signalsfoundry/schoolgrid/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TransectSource supplies the loaded transects of a survey.
type TransectSource interface {
	TransectIDs() []string
	Transect(id string) (core.TransectInput, error)
}

// Outcome labels how a transect finished.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// TransectOutcome records what happened to one transect.
type TransectOutcome struct {
	TransectID string
	Outcome    Outcome
	Stats      core.TransectStats
	// SkippedFrom is the stage a skipped transect left from.
	SkippedFrom core.State
	Reason      string
	Err         error
	Duration    time.Duration
}

// Result is the output of one survey run.
type Result struct {
	RunID    string
	Rows     []model.MergedRow
	Outcomes []TransectOutcome
	Started  time.Time
	Finished time.Time
}

// Count returns the number of transects that finished with o.
func (r *Result) Count(o Outcome) int {
	n := 0
	for _, out := range r.Outcomes {
		if out.Outcome == o {
			n++
		}
	}
	return n
}

// Option customises a Runner.
type Option func(*Runner)

// WithLogger sets the run logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics records run metrics on c.
func WithMetrics(c *observability.PipelineCollector) Option {
	return func(r *Runner) { r.metrics = c }
}

// WithWorkers sets the number of transects processed concurrently.
// Values below 1 use runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithProgress registers a callback invoked after each transect finishes.
func WithProgress(fn func(done, total int)) Option {
	return func(r *Runner) { r.progress = fn }
}

// Runner processes the transects of one survey in parallel and merges the
// finished rasters once all of them are done.
type Runner struct {
	processor *core.TransectProcessor
	merger    *core.GridMerger

	workers  int
	log      logging.Logger
	metrics  *observability.PipelineCollector
	progress func(done, total int)
}

// NewRunner binds a runner to the survey configuration. seafloor must be
// sampled on cfg.Grid; bathy may be nil when track points carry their own
// seafloor depth.
func NewRunner(cfg core.ProcessorConfig, seafloor *core.SeafloorLayer, bathy core.BathymetryLookup, meta model.SurveyMeta, opts ...Option) (*Runner, error) {
	r := &Runner{log: logging.Noop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = runtime.NumCPU()
	}

	log := r.log
	processor, err := core.NewTransectProcessor(cfg, seafloor, bathy,
		core.WithTransitionHook(func(id string, to core.State) {
			log.Debug(context.Background(), "transect state", logging.String("transect_id", id), logging.String("state", to.String()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("build transect processor: %w", err)
	}
	merger, err := core.NewGridMerger(cfg.Grid, seafloor, meta)
	if err != nil {
		return nil, fmt.Errorf("build grid merger: %w", err)
	}
	r.processor = processor
	r.merger = merger
	return r, nil
}

type job struct {
	index int
	id    string
}

type jobResult struct {
	index   int
	raster  *core.TransectRaster
	outcome TransectOutcome
}

// Run processes every transect of src and merges the results. Skipped and
// failed transects are reported in Result.Outcomes and never stop the run.
// Run returns an error only when ctx is cancelled or the merge fails.
func (r *Runner) Run(ctx context.Context, src TransectSource) (*Result, error) {
	if src == nil {
		return nil, errors.New("pipeline: nil transect source")
	}
	ctx, runID := logging.EnsureRunID(ctx)
	ctx, log := logging.WithRunLogger(ctx, r.log)
	ctx = logging.ContextWithLogger(ctx, log)

	ctx, span := observability.StartSpan(ctx, "survey.run", "run", runID)
	defer span.End()

	res := &Result{RunID: runID, Started: time.Now()}
	ids := src.TransectIDs()
	log.Info(ctx, "survey run started", logging.Int("transects", len(ids)), logging.Int("workers", r.workers))

	rasters := make([]*core.TransectRaster, len(ids))
	res.Outcomes = make([]TransectOutcome, len(ids))

	if len(ids) > 0 {
		workers := min(r.workers, len(ids))
		jobs := make(chan job, len(ids))
		results := make(chan jobResult, len(ids))

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range jobs {
					raster, outcome := r.runTransect(ctx, src, j.id)
					results <- jobResult{index: j.index, raster: raster, outcome: outcome}
				}
			}()
		}

		for i, id := range ids {
			jobs <- job{index: i, id: id}
		}
		close(jobs)

		go func() {
			wg.Wait()
			close(results)
		}()

		done := 0
		for jr := range results {
			rasters[jr.index] = jr.raster
			res.Outcomes[jr.index] = jr.outcome
			done++
			if r.progress != nil {
				r.progress(done, len(ids))
			}
		}
	}

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled")
		return nil, fmt.Errorf("survey run cancelled: %w", err)
	}

	rows, err := r.merge(ctx, rasters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "merge failed")
		log.Error(ctx, "merge failed", logging.Err(err))
		return nil, err
	}
	res.Rows = rows
	res.Finished = time.Now()
	r.metrics.SetMergedRows(len(rows))

	span.SetAttributes(
		attribute.Int("transects", len(ids)),
		attribute.Int("rows", len(rows)),
	)
	log.Info(ctx, "survey run finished",
		logging.Int("done", res.Count(OutcomeDone)),
		logging.Int("skipped", res.Count(OutcomeSkipped)),
		logging.Int("failed", res.Count(OutcomeFailed)),
		logging.Int("rows", len(rows)),
		logging.Duration("elapsed", res.Finished.Sub(res.Started)),
	)
	return res, nil
}

func (r *Runner) merge(ctx context.Context, rasters []*core.TransectRaster) ([]model.MergedRow, error) {
	_, span := observability.StartSpan(ctx, "survey.merge", "", "")
	defer span.End()
	rows, err := r.merger.Merge(rasters)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("rows", len(rows)))
	return rows, nil
}

// runTransect processes one transect and never panics.
func (r *Runner) runTransect(ctx context.Context, src TransectSource, id string) (raster *core.TransectRaster, out TransectOutcome) {
	start := time.Now()
	out = TransectOutcome{TransectID: id, Stats: core.TransectStats{TransectID: id}}
	log := logging.LoggerFromContext(ctx)
	if log == nil {
		log = r.log
	}
	log = log.With(logging.String("transect_id", id))

	ctx, span := observability.StartSpan(ctx, "survey.transect", "transect", id)
	defer func() {
		if rec := recover(); rec != nil {
			raster = nil
			out.Outcome = OutcomeFailed
			out.Err = fmt.Errorf("transect %q: panic: %v", id, rec)
			out.Reason = "panic"
		}
		out.Duration = time.Since(start)
		r.record(ctx, log, out)
		if out.Err != nil {
			span.RecordError(out.Err)
		}
		if out.Outcome == OutcomeFailed {
			span.SetStatus(codes.Error, out.Reason)
		}
		span.SetAttributes(attribute.String("outcome", string(out.Outcome)))
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		out.Outcome = OutcomeFailed
		out.Reason = "cancelled"
		out.Err = err
		return nil, out
	}

	in, err := src.Transect(id)
	if err != nil {
		out.Outcome = OutcomeFailed
		out.Reason = "load failed"
		out.Err = err
		return nil, out
	}

	raster, stats, err := r.processor.Process(in)
	out.Stats = stats
	var skip *core.SkipError
	switch {
	case err == nil:
		out.Outcome = OutcomeDone
	case errors.As(err, &skip):
		out.Outcome = OutcomeSkipped
		out.SkippedFrom = skip.From
		out.Reason = skip.Reason
		out.Err = err
		raster = nil
	default:
		out.Outcome = OutcomeFailed
		out.Reason = "processing failed"
		out.Err = err
		raster = nil
	}
	return raster, out
}

func (r *Runner) record(ctx context.Context, log logging.Logger, out TransectOutcome) {
	r.metrics.ObserveTransect(string(out.Outcome), out.Duration)
	for reason, n := range out.Stats.Discarded {
		r.metrics.AddDiscarded(reason, n)
	}
	r.metrics.AddCoveredCells(out.Stats.CoveredCells)

	switch out.Outcome {
	case OutcomeDone:
		log.Info(ctx, "transect done",
			logging.Int("samples", out.Stats.Samples),
			logging.Int("retained", out.Stats.Retained),
			logging.Int("disks", out.Stats.Disks),
			logging.Int("covered_cells", out.Stats.CoveredCells),
			logging.Int("cells", out.Stats.Cells),
			logging.Float64("coverage_area", out.Stats.CoverageArea),
		)
	case OutcomeSkipped:
		log.Warn(ctx, "transect skipped",
			logging.String("stage", out.SkippedFrom.String()),
			logging.String("reason", out.Reason),
		)
	default:
		log.Error(ctx, "transect failed", logging.String("reason", out.Reason), logging.Err(out.Err))
	}
}
