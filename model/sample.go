package model

import "github.com/paulmach/orb"

// Sample is one quality-controlled acoustic return from the sonar.
// Positions are planar metres in the survey's local frame.
type Sample struct {
	Position    orb.Point
	Depth       float64 // metres below surface, positive-down
	Backscatter float64 // volume backscattering strength, dB
	TransectID  string
}

// TrackPoint is one position of the vessel along a transect.
type TrackPoint struct {
	Position   orb.Point
	Seq        int
	TransectID string

	// SeafloorDepth is the bottom depth under the vessel. When undefined it
	// is resolved from the bathymetric surface at Position.
	SeafloorDepth Optional[float64]
}
