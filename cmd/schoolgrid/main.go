package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/schoolgrid/core"
	"github.com/signalsfoundry/schoolgrid/internal/config"
	"github.com/signalsfoundry/schoolgrid/internal/logging"
	"github.com/signalsfoundry/schoolgrid/internal/observability"
	"github.com/signalsfoundry/schoolgrid/internal/pipeline"
	"github.com/signalsfoundry/schoolgrid/internal/surveyio"
	"github.com/signalsfoundry/schoolgrid/kb"
)

func main() {
	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, log); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error(ctx, "schoolgrid failed", logging.Err(err))
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	samplesPath string
	trackPath   string
	bathyPath   string
	outPath     string
	reportPath  string
	metricsAddr string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("schoolgrid", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Path to the survey YAML configuration (defaults apply when empty)")
	fs.StringVar(&o.samplesPath, "samples", "", "CSV of sonar returns: x,y,depth,backscatter,transect_id")
	fs.StringVar(&o.trackPath, "track", "", "CSV of cruise-track points: x,y,seq,transect_id[,seafloor_depth]")
	fs.StringVar(&o.bathyPath, "bathymetry", "", "ESRI ASCII grid of the seafloor")
	fs.StringVar(&o.outPath, "out", "-", "Merged table CSV output path, - for stdout")
	fs.StringVar(&o.reportPath, "report", "", "Optional JSON run report output path")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (disabled when empty)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	for name, v := range map[string]string{"samples": o.samplesPath, "track": o.trackPath, "bathymetry": o.bathyPath} {
		if v == "" {
			return o, fmt.Errorf("-%s is required", name)
		}
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout io.Writer, log logging.Logger) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if opts.configPath != "" {
		if cfg, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	reg := prometheus.NewRegistry()
	collector, err := observability.NewPipelineCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if opts.metricsAddr != "" {
		srv := serveMetrics(opts.metricsAddr, collector, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	bathy, err := readFile(opts.bathyPath, surveyio.ReadEsriASCII)
	if err != nil {
		return err
	}
	if !cfg.Grid.HasExtent() {
		cfg.FitGrid(bathy.Bound())
		log.Info(ctx, "grid extent taken from bathymetry",
			logging.Float64("width", cfg.Grid.Width),
			logging.Float64("height", cfg.Grid.Height),
		)
	}
	grid, err := cfg.GridSpec()
	if err != nil {
		return err
	}
	frame := cfg.GeoFrame()
	lookup := surveyio.LocalBathymetry(frame, bathy)
	seafloor := core.NewSeafloorLayer(grid, lookup)
	log.Info(ctx, "seafloor layer sampled",
		logging.Int("cols", grid.Cols),
		logging.Int("rows", grid.Rows),
		logging.Int("defined_cells", seafloor.Len()),
	)

	store := kb.NewSurveyStore()
	unsubscribe := store.Subscribe(func(e kb.Event) {
		log.Debug(ctx, "transect discovered", logging.String("transect_id", e.TransectID))
	})
	samples, err := readFile(opts.samplesPath, surveyio.ReadSamplesCSV)
	if err != nil {
		return err
	}
	track, err := readFile(opts.trackPath, surveyio.ReadTrackCSV)
	if err != nil {
		return err
	}
	if err := surveyio.LoadStore(store, frame, samples, track); err != nil {
		return err
	}
	unsubscribe()
	transects, nSamples, nTrack := store.Counts()
	log.Info(ctx, "survey loaded",
		logging.Int("transects", transects),
		logging.Int("samples", nSamples),
		logging.Int("track_points", nTrack),
	)

	runner, err := pipeline.NewRunner(cfg.ProcessorConfig(grid), seafloor, lookup, cfg.SurveyMeta(),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(collector),
		pipeline.WithWorkers(cfg.Pipeline.Workers),
	)
	if err != nil {
		return err
	}
	res, err := runner.Run(ctx, store)
	if err != nil {
		return err
	}

	rows := surveyio.WorldRows(frame, res.Rows)
	if err := writeFile(opts.outPath, stdout, func(w io.Writer) error {
		return surveyio.WriteMergedCSV(w, rows)
	}); err != nil {
		return err
	}
	if opts.reportPath != "" {
		if err := writeFile(opts.reportPath, stdout, func(w io.Writer) error {
			return surveyio.WriteReportJSON(w, res)
		}); err != nil {
			return err
		}
	}
	return nil
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	v, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("read %s: %w", path, err)
	}
	return v, nil
}

func writeFile(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "-" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func serveMetrics(addr string, collector *observability.PipelineCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
