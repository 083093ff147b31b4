package core

import (
	"math"

	"github.com/paulmach/orb"
)

// GeoFrame is a local planar frame centred on a site reference point.
// Coordinates in the frame are metres east/north of the reference.
//
// The frame does not reproject; inputs must already be planar.
type GeoFrame struct {
	Reference orb.Point
}

// ToLocal converts a planar world coordinate into the local frame.
func (f GeoFrame) ToLocal(p orb.Point) orb.Point {
	return orb.Point{p[0] - f.Reference[0], p[1] - f.Reference[1]}
}

// ToWorld converts a local coordinate back into the world frame.
func (f GeoFrame) ToWorld(p orb.Point) orb.Point {
	return orb.Point{p[0] + f.Reference[0], p[1] + f.Reference[1]}
}

// SwathHalfWidth returns the across-track distance covered on each side of
// the vessel for a sonar with the given full aperture over a flat seafloor
// at the given depth. The sign of seafloor is ignored so both elevations
// (negative-down) and depths (positive-down) are accepted.
//
// Degenerate inputs (NaN depth, aperture outside (0°, 180°)) yield 0.
func SwathHalfWidth(seafloor, apertureDeg float64) float64 {
	if math.IsNaN(seafloor) || math.IsInf(seafloor, 0) {
		return 0
	}
	if apertureDeg <= 0 || apertureDeg >= 180 {
		return 0
	}
	half := apertureDeg / 2 * math.Pi / 180.0
	return math.Abs(seafloor) * math.Tan(half)
}
