package core

import (
	"fmt"
	"math"
	"slices"

	"github.com/signalsfoundry/schoolgrid/model"
)

// State is a stage of per-transect processing.
type State int

const (
	StateLoaded State = iota
	StateFiltered
	StateRasterized
	StateMasked
	StateDone
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "LOADED"
	case StateFiltered:
		return "FILTERED"
	case StateRasterized:
		return "RASTERIZED"
	case StateMasked:
		return "MASKED"
	case StateDone:
		return "DONE"
	case StateSkipped:
		return "SKIPPED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ProcessorConfig holds the per-survey processing parameters.
type ProcessorConfig struct {
	Grid GridSpec

	// SwathApertureDeg is the full across-track aperture of the sonar.
	SwathApertureDeg float64

	// MinDepth discards samples shallower than this depth.
	MinDepth float64

	// BottomClearance discards samples within this distance of the seafloor.
	BottomClearance float64

	// TrackStride keeps every TrackStride-th track point when buffering.
	TrackStride int

	// MinBackscatterDB discards weaker samples when set.
	MinBackscatterDB model.Optional[float64]

	// DiskSegments controls the polygon approximation of swath disks.
	DiskSegments int
}

// Validate checks the configuration.
func (c ProcessorConfig) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return err
	}
	if c.SwathApertureDeg <= 0 || c.SwathApertureDeg >= 180 {
		return fmt.Errorf("%w: swath aperture %v° outside (0, 180)", ErrInvalidConfig, c.SwathApertureDeg)
	}
	if c.MinDepth < 0 || math.IsNaN(c.MinDepth) {
		return fmt.Errorf("%w: min depth %v", ErrInvalidConfig, c.MinDepth)
	}
	if c.BottomClearance < 0 || math.IsNaN(c.BottomClearance) {
		return fmt.Errorf("%w: bottom clearance %v", ErrInvalidConfig, c.BottomClearance)
	}
	if c.TrackStride < 1 {
		return fmt.Errorf("%w: track stride %d", ErrInvalidConfig, c.TrackStride)
	}
	return nil
}

// TransectInput is everything loaded for one transect.
type TransectInput struct {
	ID      string
	Samples []model.Sample
	Track   []model.TrackPoint
}

// CellStats holds the per-transect statistics of one cell.
type CellStats struct {
	Thickness int
	MinDepth  model.Optional[float64]
	MaxDepth  model.Optional[float64]
}

// TransectRaster is the finished grid of one transect. It only holds
// cells inside the transect's coverage with a known seafloor.
type TransectRaster struct {
	TransectID string
	Grid       GridSpec
	cells      map[Cell]CellStats
}

// Get returns the statistics of c. ok is false where thickness is
// undefined.
func (r *TransectRaster) Get(c Cell) (CellStats, bool) {
	s, ok := r.cells[c]
	return s, ok
}

// Len returns the number of cells with defined thickness.
func (r *TransectRaster) Len() int { return len(r.cells) }

// Cells returns the defined cells in row-major order.
func (r *TransectRaster) Cells() []Cell {
	out := make([]Cell, 0, len(r.cells))
	for c := range r.cells {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Cell) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return out
}

// Discard reasons reported in TransectStats.Discarded.
const (
	DiscardInvalidDepth   = "invalid_depth"
	DiscardShallow        = "shallow"
	DiscardOutsideGrid    = "outside_grid"
	DiscardNoBathymetry   = "no_bathymetry"
	DiscardNearBottom     = "near_bottom"
	DiscardLowBackscatter = "low_backscatter"
)

// TransectStats summarises one run of the processor.
type TransectStats struct {
	TransectID   string
	Final        State
	Samples      int
	Retained     int
	Discarded    map[string]int
	TrackPoints  int
	Disks        int
	CoverageArea float64
	CoveredCells int
	Cells        int
}

// ProcessorOption customises a TransectProcessor.
type ProcessorOption func(*TransectProcessor)

// WithTransitionHook registers fn to be called on every state change.
func WithTransitionHook(fn func(transectID string, to State)) ProcessorOption {
	return func(p *TransectProcessor) {
		p.onTransition = fn
	}
}

// TransectProcessor turns one transect's samples and track into a
// TransectRaster. It holds only read-only survey data and may be shared
// between goroutines.
type TransectProcessor struct {
	cfg          ProcessorConfig
	seafloor     *SeafloorLayer
	swath        SwathBufferBuilder
	onTransition func(string, State)
}

// NewTransectProcessor validates cfg and binds the processor to the survey
// seafloor layer. bathy resolves the seafloor under track points; it may
// be nil when every track point carries its own depth.
func NewTransectProcessor(cfg ProcessorConfig, seafloor *SeafloorLayer, bathy BathymetryLookup, opts ...ProcessorOption) (*TransectProcessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if seafloor == nil {
		return nil, fmt.Errorf("%w: nil seafloor layer", ErrInvalidConfig)
	}
	if !seafloor.Grid().Equal(cfg.Grid) {
		return nil, fmt.Errorf("%w: seafloor layer grid differs from survey grid", ErrGridMismatch)
	}
	p := &TransectProcessor{
		cfg:      cfg,
		seafloor: seafloor,
		swath: SwathBufferBuilder{
			ApertureDeg: cfg.SwathApertureDeg,
			Stride:      cfg.TrackStride,
			Bathymetry:  bathy,
			Segments:    cfg.DiskSegments,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Process runs one transect through LOADED, FILTERED, RASTERIZED, MASKED
// and DONE. Recoverable data problems end in SKIPPED and return a
// *SkipError; the returned stats are filled in either case.
func (p *TransectProcessor) Process(in TransectInput) (*TransectRaster, TransectStats, error) {
	stats := TransectStats{
		TransectID:  in.ID,
		Samples:     len(in.Samples),
		TrackPoints: len(in.Track),
		Discarded:   make(map[string]int),
	}
	p.transition(&stats, StateLoaded)

	if len(in.Track) == 0 {
		return nil, stats, p.skip(&stats, StateLoaded, "no track points", ErrEmptyTransect)
	}
	if len(in.Samples) == 0 {
		return nil, stats, p.skip(&stats, StateLoaded, "no samples", ErrEmptyTransect)
	}

	depths := p.filter(in.Samples, &stats)
	p.transition(&stats, StateFiltered)

	grid := p.cfg.Grid
	thickness := RasterizePoints(grid, depths, DistinctBins)
	minDepth := RasterizePoints(grid, depths, Minimum)
	maxDepth := RasterizePoints(grid, depths, Maximum)

	coverage := p.swath.Build(in.Track)
	stats.Disks = len(coverage.disks)
	if coverage.Empty() {
		p.transition(&stats, StateRasterized)
		return nil, stats, p.skip(&stats, StateRasterized, "swath coverage is empty", ErrDegenerateCoverage)
	}
	stats.CoverageArea = coverage.Area()
	mask := RasterizeRegion(grid, coverage)
	stats.CoveredCells = mask.Len()
	p.transition(&stats, StateRasterized)

	if stats.CoverageArea <= 0 {
		return nil, stats, p.skip(&stats, StateRasterized, "swath coverage has no area", ErrDegenerateCoverage)
	}
	if mask.Len() == 0 {
		return nil, stats, p.skip(&stats, StateRasterized, "swath coverage misses every grid cell", ErrDegenerateCoverage)
	}

	cells := make(map[Cell]CellStats, mask.Len())
	mask.Cells(func(c Cell) {
		if _, ok := p.seafloor.DepthAt(c); !ok {
			return
		}
		var cs CellStats
		if t, ok := thickness.Get(c); ok {
			cs.Thickness = int(t)
		}
		if v, ok := minDepth.Get(c); ok {
			cs.MinDepth = model.Some(v)
		}
		if v, ok := maxDepth.Get(c); ok {
			cs.MaxDepth = model.Some(v)
		}
		cells[c] = cs
	})
	p.transition(&stats, StateMasked)

	raster := &TransectRaster{TransectID: in.ID, Grid: grid, cells: cells}
	stats.Cells = len(cells)
	p.transition(&stats, StateDone)
	return raster, stats, nil
}

// filter applies the depth, seafloor and backscatter rules and returns the
// depths of retained samples. The seafloor is read at the centre of the
// sample's cell, not at the sample's own position.
func (p *TransectProcessor) filter(samples []model.Sample, stats *TransectStats) []CellValue {
	kept := make([]CellValue, 0, len(samples))
	minSv, hasMinSv := p.cfg.MinBackscatterDB.Get()
	for _, s := range samples {
		if !(s.Depth > 0) || math.IsInf(s.Depth, 0) {
			stats.Discarded[DiscardInvalidDepth]++
			continue
		}
		if s.Depth < p.cfg.MinDepth {
			stats.Discarded[DiscardShallow]++
			continue
		}
		c, ok := p.cfg.Grid.CellOf(s.Position)
		if !ok {
			stats.Discarded[DiscardOutsideGrid]++
			continue
		}
		floor, ok := p.seafloor.DepthAt(c)
		if !ok {
			stats.Discarded[DiscardNoBathymetry]++
			continue
		}
		if s.Depth >= floor-p.cfg.BottomClearance {
			stats.Discarded[DiscardNearBottom]++
			continue
		}
		if hasMinSv && s.Backscatter < minSv {
			stats.Discarded[DiscardLowBackscatter]++
			continue
		}
		kept = append(kept, CellValue{Position: s.Position, Value: s.Depth})
	}
	stats.Retained = len(kept)
	return kept
}

func (p *TransectProcessor) transition(stats *TransectStats, to State) {
	stats.Final = to
	if p.onTransition != nil {
		p.onTransition(stats.TransectID, to)
	}
}

func (p *TransectProcessor) skip(stats *TransectStats, from State, reason string, cause error) error {
	p.transition(stats, StateSkipped)
	return &SkipError{TransectID: stats.TransectID, From: from, Reason: reason, Err: cause}
}
