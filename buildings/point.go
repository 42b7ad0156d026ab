package buildings

import (
	"slices"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// The Earth's mean radius in kilometers
const earthRadiusKm = 6371.01

// RepresentativePoint returns a point guaranteed to lie within g. For
// polygons this is the centroid when it falls inside, otherwise the middle of
// the widest interior span along the polygon's middle latitude.
func RepresentativePoint(g orb.Geometry) orb.Point {
	switch g := g.(type) {
	case orb.Point:
		return g
	case orb.LineString:
		if len(g) == 0 {
			return orb.Point{}
		}
		return g[len(g)/2]
	case orb.Polygon:
		return polygonPoint(g)
	case orb.MultiPolygon:
		var largest orb.Polygon
		largestArea := -1.0
		for _, p := range g {
			if a := planar.Area(p); a > largestArea {
				largest = p
				largestArea = a
			}
		}
		return polygonPoint(largest)
	default:
		c, _ := planar.CentroidArea(g)
		return c
	}
}

func polygonPoint(p orb.Polygon) orb.Point {
	if len(p) == 0 || len(p[0]) == 0 {
		return orb.Point{}
	}

	c, _ := planar.CentroidArea(p)
	if planar.PolygonContains(p, c) {
		return c
	}

	if pt, ok := scanlinePoint(p); ok {
		return pt
	}
	return p[0][0]
}

// scanlinePoint intersects the polygon with the horizontal line through the
// middle of its bound and returns the midpoint of the widest interior span.
func scanlinePoint(p orb.Polygon) (orb.Point, bool) {
	y := p.Bound().Center().Y()

	var xs []float64
	for _, ring := range p {
		for i := 0; i+1 < len(ring); i++ {
			a, b := ring[i], ring[i+1]
			if (a.Y() <= y && y < b.Y()) || (b.Y() <= y && y < a.Y()) {
				t := (y - a.Y()) / (b.Y() - a.Y())
				xs = append(xs, a.X()+t*(b.X()-a.X()))
			}
		}
	}
	if len(xs) < 2 {
		return orb.Point{}, false
	}
	slices.Sort(xs)

	best := -1.0
	var mid float64
	for i := 0; i+1 < len(xs); i += 2 {
		if w := xs[i+1] - xs[i]; w > best {
			best = w
			mid = (xs[i] + xs[i+1]) / 2
		}
	}
	if best <= 0 {
		return orb.Point{}, false
	}
	return orb.Point{mid, y}, true
}

// DistanceMeters returns the great-circle distance between two lon/lat points.
func DistanceMeters(a, b orb.Point) float64 {
	pa := s2.LatLngFromDegrees(a.Lat(), a.Lon())
	pb := s2.LatLngFromDegrees(b.Lat(), b.Lon())
	return earthRadiusKm * 1000 * pa.Distance(pb).Radians()
}
