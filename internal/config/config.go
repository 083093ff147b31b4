// Package config loads the survey processing configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/signalsfoundry/schoolgrid/core"
	"github.com/signalsfoundry/schoolgrid/model"
	"gopkg.in/yaml.v3"
)

// ErrNoGridExtent is returned by GridSpec when the grid extent is unset.
var ErrNoGridExtent = errors.New("grid extent not configured")

// Defaults used by ApplyDefaults.
const (
	DefaultCellSize        = 1.0
	DefaultApertureDeg     = 60.0
	DefaultBottomClearance = 1.0
	DefaultTrackStride     = 1
)

// SurveyConfig identifies the survey in the merged table.
type SurveyConfig struct {
	Date     string `yaml:"date"` // YYYY-MM-DD
	SiteCode string `yaml:"site_code"`
}

// FrameConfig sets the local planar frame. Inputs are shifted by
// Reference before gridding so large projected coordinates keep precision.
type FrameConfig struct {
	Reference [2]float64 `yaml:"reference"`
}

// GridConfig describes the shared survey grid in input coordinates.
type GridConfig struct {
	Origin   [2]float64 `yaml:"origin"` // lower-left corner
	Width    float64    `yaml:"width"`
	Height   float64    `yaml:"height"`
	CellSize float64    `yaml:"cell_size"`
}

// HasExtent reports whether width and height were configured.
func (g GridConfig) HasExtent() bool { return g.Width > 0 && g.Height > 0 }

// SwathConfig controls coverage buffering.
type SwathConfig struct {
	// ApertureDeg is the full across-track opening angle of the sonar.
	ApertureDeg  float64 `yaml:"aperture_deg"`
	TrackStride  int     `yaml:"track_stride"`
	DiskSegments int     `yaml:"disk_segments"`
}

// FilterConfig controls which samples are retained.
type FilterConfig struct {
	MinDepth float64 `yaml:"min_depth"`
	// BottomClearance defaults to DefaultBottomClearance when unset; an
	// explicit 0 keeps every sample above the seafloor.
	BottomClearance *float64 `yaml:"bottom_clearance"`
	// MinBackscatterDB is unset unless weak returns should be dropped.
	MinBackscatterDB *float64 `yaml:"min_backscatter_db"`
}

// PipelineConfig sizes the worker pool.
type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

// Config is the top-level structure of the survey YAML file.
type Config struct {
	Survey   SurveyConfig   `yaml:"survey"`
	Frame    FrameConfig    `yaml:"frame"`
	Grid     GridConfig     `yaml:"grid"`
	Swath    SwathConfig    `yaml:"swath"`
	Filter   FilterConfig   `yaml:"filter"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// Default returns a Config with every default applied.
func Default() Config {
	return Config{}.ApplyDefaults()
}

// ApplyDefaults fills fields that are zero or invalid with defaults.
func (c Config) ApplyDefaults() Config {
	if c.Grid.CellSize <= 0 {
		c.Grid.CellSize = DefaultCellSize
	}
	if c.Swath.ApertureDeg <= 0 {
		c.Swath.ApertureDeg = DefaultApertureDeg
	}
	if c.Swath.TrackStride < 1 {
		c.Swath.TrackStride = DefaultTrackStride
	}
	if c.Swath.DiskSegments < 3 {
		c.Swath.DiskSegments = core.DefaultDiskSegments
	}
	if c.Filter.BottomClearance == nil {
		clearance := DefaultBottomClearance
		c.Filter.BottomClearance = &clearance
	}
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = runtime.NumCPU()
	}
	c.Survey.SiteCode = strings.TrimSpace(c.Survey.SiteCode)
	return c
}

// Validate checks values that have no sensible default.
func (c Config) Validate() error {
	if c.Survey.Date != "" {
		if _, err := time.Parse(time.DateOnly, c.Survey.Date); err != nil {
			return fmt.Errorf("survey.date: %w", err)
		}
	}
	if c.Grid.Width < 0 || c.Grid.Height < 0 {
		return fmt.Errorf("grid extent %vx%v must not be negative", c.Grid.Width, c.Grid.Height)
	}
	if c.Swath.ApertureDeg >= 180 {
		return fmt.Errorf("swath.aperture_deg %v must be below 180", c.Swath.ApertureDeg)
	}
	if c.Filter.MinDepth < 0 || math.IsNaN(c.Filter.MinDepth) {
		return fmt.Errorf("filter.min_depth %v must not be negative", c.Filter.MinDepth)
	}
	if v := c.Filter.BottomClearance; v != nil && (*v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0)) {
		return fmt.Errorf("filter.bottom_clearance %v must be a non-negative number", *v)
	}
	if v := c.Filter.MinBackscatterDB; v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
		return fmt.Errorf("filter.min_backscatter_db %v is not finite", *v)
	}
	return nil
}

// GeoFrame returns the local planar frame.
func (c Config) GeoFrame() core.GeoFrame {
	return core.GeoFrame{Reference: orb.Point(c.Frame.Reference)}
}

// GridSpec returns the survey grid in the local frame. It returns
// ErrNoGridExtent when no extent was configured.
func (c Config) GridSpec() (core.GridSpec, error) {
	if !c.Grid.HasExtent() {
		return core.GridSpec{}, ErrNoGridExtent
	}
	origin := c.GeoFrame().ToLocal(orb.Point(c.Grid.Origin))
	return core.NewGridSpec(origin, c.Grid.Width, c.Grid.Height, c.Grid.CellSize)
}

// FitGrid sets the grid extent to b, given in input coordinates.
func (c *Config) FitGrid(b orb.Bound) {
	c.Grid.Origin = [2]float64{b.Min[0], b.Min[1]}
	c.Grid.Width = b.Max[0] - b.Min[0]
	c.Grid.Height = b.Max[1] - b.Min[1]
}

// ProcessorConfig converts c into the engine configuration on grid.
func (c Config) ProcessorConfig(grid core.GridSpec) core.ProcessorConfig {
	pc := core.ProcessorConfig{
		Grid:             grid,
		SwathApertureDeg: c.Swath.ApertureDeg,
		MinDepth:         c.Filter.MinDepth,
		BottomClearance:  DefaultBottomClearance,
		TrackStride:      c.Swath.TrackStride,
		DiskSegments:     c.Swath.DiskSegments,
	}
	if v := c.Filter.BottomClearance; v != nil {
		pc.BottomClearance = *v
	}
	if v := c.Filter.MinBackscatterDB; v != nil {
		pc.MinBackscatterDB = model.Some(*v)
	}
	return pc
}

// SurveyMeta returns the identifiers attached to every merged row.
func (c Config) SurveyMeta() model.SurveyMeta {
	meta := model.SurveyMeta{SiteCode: c.Survey.SiteCode}
	if d, err := time.Parse(time.DateOnly, c.Survey.Date); err == nil {
		meta.SurveyDate = d
	}
	return meta
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse survey config: %w", err)
	}
	cfg = cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid survey config: %w", err)
	}
	return cfg, nil
}

// Load reads and parses the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read survey config: %w", err)
	}
	return Parse(data)
}
