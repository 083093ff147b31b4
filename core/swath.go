package core

import (
	"cmp"
	"math"
	"slices"
	"sync"

	"github.com/ctessum/geom"
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/signalsfoundry/schoolgrid/model"
)

// DefaultDiskSegments is the number of vertices used when a swath disk is
// approximated as a polygon.
const DefaultDiskSegments = 64

// boundPad is the relative tolerance applied to disk radii, both in the
// index rectangles and in the distance test, so points on a disk's rim
// count as inside despite rounding.
const boundPad = 1e-9

// Disk is the swath footprint around one track point.
type Disk struct {
	Center orb.Point
	Radius float64
}

// Contains reports whether p lies inside or on the disk.
func (d Disk) Contains(p orb.Point) bool {
	return planar.Distance(d.Center, p) <= d.Radius+d.pad()
}

func (d Disk) pad() float64 { return boundPad * math.Max(1, d.Radius) }

// Bound returns the axis-aligned extent of the disk.
func (d Disk) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{d.Center[0] - d.Radius, d.Center[1] - d.Radius},
		Max: orb.Point{d.Center[0] + d.Radius, d.Center[1] + d.Radius},
	}
}

// Bounds implements rtreego.Spatial.
func (d Disk) Bounds() rtreego.Rect {
	pad := 2 * d.pad()
	rect, _ := rtreego.NewRect(
		rtreego.Point{d.Center[0] - d.Radius - pad, d.Center[1] - d.Radius - pad},
		[]float64{2 * (d.Radius + pad), 2 * (d.Radius + pad)},
	)
	return rect
}

func (d Disk) polygon(segments int) geom.Polygon {
	ring := make(geom.Path, segments)
	for i := range segments {
		a := 2 * math.Pi * float64(i) / float64(segments)
		ring[i] = geom.Point{
			X: d.Center[0] + d.Radius*math.Cos(a),
			Y: d.Center[1] + d.Radius*math.Sin(a),
		}
	}
	return geom.Polygon{ring}
}

// Coverage is the area insonified along one transect: the set union of
// the swath disks. Membership is exact; overlapping disks count once.
type Coverage struct {
	disks    []Disk
	tree     *rtreego.Rtree
	bound    orb.Bound
	segments int

	polyOnce sync.Once
	poly     geom.Polygon
}

func newCoverage(disks []Disk, segments int) *Coverage {
	c := &Coverage{disks: disks, segments: segments}
	if len(disks) == 0 {
		return c
	}
	c.tree = rtreego.NewTree(2, 25, 50)
	c.bound = disks[0].Bound()
	for _, d := range disks {
		c.tree.Insert(d)
		c.bound = c.bound.Union(d.Bound())
	}
	return c
}

// Empty reports whether the coverage contains no disks.
func (c *Coverage) Empty() bool { return c == nil || len(c.disks) == 0 }

// Disks returns a copy of the disks making up the coverage.
func (c *Coverage) Disks() []Disk {
	if c == nil {
		return nil
	}
	return slices.Clone(c.disks)
}

// Bound returns the extent of the coverage.
func (c *Coverage) Bound() orb.Bound {
	if c.Empty() {
		return orb.Bound{}
	}
	return c.bound
}

// Contains reports whether p lies in at least one swath disk.
func (c *Coverage) Contains(p orb.Point) bool {
	if c.Empty() {
		return false
	}
	rect, err := rtreego.NewRect(
		rtreego.Point{p[0] - boundPad, p[1] - boundPad},
		[]float64{2 * boundPad, 2 * boundPad},
	)
	if err != nil {
		return false
	}
	for _, s := range c.tree.SearchIntersect(rect) {
		if s.(Disk).Contains(p) {
			return true
		}
	}
	return false
}

// Polygon returns the union of the disks, each approximated by a regular
// polygon. It is computed on first use.
func (c *Coverage) Polygon() geom.Polygon {
	if c.Empty() {
		return nil
	}
	c.polyOnce.Do(func() {
		polys := make([]geom.Polygon, len(c.disks))
		for i, d := range c.disks {
			polys[i] = d.polygon(c.segments)
		}
		c.poly = unionPolygons(polys)
	})
	return c.poly
}

// Area returns the area of the coverage polygon.
func (c *Coverage) Area() float64 {
	p := c.Polygon()
	if len(p) == 0 {
		return 0
	}
	return p.Area()
}

// unionPolygons merges polygons pairwise so each union works on inputs of
// similar size.
func unionPolygons(polys []geom.Polygon) geom.Polygon {
	switch len(polys) {
	case 0:
		return nil
	case 1:
		return polys[0]
	}
	mid := len(polys) / 2
	return unionPolygons(polys[:mid]).Union(unionPolygons(polys[mid:])).(geom.Polygon)
}

// SwathBufferBuilder turns a transect's track into its swath coverage.
type SwathBufferBuilder struct {
	// ApertureDeg is the full across-track opening angle of the sonar.
	ApertureDeg float64

	// Stride keeps every Stride-th track point with a known seafloor.
	// Values below 1 keep every point.
	Stride int

	// Bathymetry resolves the seafloor under track points that do not
	// carry their own depth. Optional.
	Bathymetry BathymetryLookup

	// Segments controls the polygon approximation of each disk.
	// Defaults to DefaultDiskSegments.
	Segments int
}

// Build computes the coverage of track. It returns an empty coverage,
// never an error, when the track has fewer than two points or no point has
// a usable seafloor depth.
func (b SwathBufferBuilder) Build(track []model.TrackPoint) *Coverage {
	segments := b.Segments
	if segments < 3 {
		segments = DefaultDiskSegments
	}
	if len(track) < 2 {
		return newCoverage(nil, segments)
	}

	ordered := slices.Clone(track)
	slices.SortStableFunc(ordered, func(a, b model.TrackPoint) int {
		return cmp.Compare(a.Seq, b.Seq)
	})

	stride := max(b.Stride, 1)
	var disks []Disk
	retained := 0
	for _, tp := range ordered {
		depth, ok := b.seafloor(tp)
		if !ok {
			continue
		}
		if retained%stride == 0 {
			if w := SwathHalfWidth(depth, b.ApertureDeg); w > 0 {
				disks = append(disks, Disk{Center: tp.Position, Radius: w})
			}
		}
		retained++
	}
	return newCoverage(disks, segments)
}

func (b SwathBufferBuilder) seafloor(tp model.TrackPoint) (float64, bool) {
	if d, ok := tp.SeafloorDepth.Get(); ok && !math.IsNaN(d) {
		return d, true
	}
	if b.Bathymetry == nil {
		return 0, false
	}
	return b.Bathymetry.SeafloorAt(tp.Position)
}
