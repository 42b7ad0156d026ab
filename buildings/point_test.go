package buildings

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
)

func TestRepresentativePointConvex(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}
	got := RepresentativePoint(square)
	assert.InDelta(t, 1, got.X(), 1e-9)
	assert.InDelta(t, 1, got.Y(), 1e-9)
}

func TestRepresentativePointConcave(t *testing.T) {
	// U shape whose centroid falls in the notch
	u := orb.Polygon{{{0, 0}, {3, 0}, {3, 3}, {2, 3}, {2, 1}, {1, 1}, {1, 3}, {0, 3}, {0, 0}}}
	c, _ := planar.CentroidArea(u)
	assert.False(t, planar.PolygonContains(u, c))

	got := RepresentativePoint(u)
	assert.True(t, planar.PolygonContains(u, got))
	assert.Equal(t, orb.Point{0.5, 1.5}, got)
}

func TestRepresentativePointOther(t *testing.T) {
	assert.Equal(t, orb.Point{1, 2}, RepresentativePoint(orb.Point{1, 2}))
	assert.Equal(t, orb.Point{1, 1}, RepresentativePoint(orb.LineString{{0, 0}, {1, 1}, {2, 2}}))

	small := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	big := orb.Polygon{{{10, 10}, {14, 10}, {14, 14}, {10, 14}, {10, 10}}}
	got := RepresentativePoint(orb.MultiPolygon{small, big})
	assert.InDelta(t, 12, got.X(), 1e-9)
	assert.InDelta(t, 12, got.Y(), 1e-9)
}

func TestDistanceMeters(t *testing.T) {
	a := orb.Point{-3.6833, 40.4150}
	b := orb.Point{-3.6833, 40.4250}
	assert.InDelta(t, 1112, DistanceMeters(a, b), 2)
	assert.Equal(t, 0.0, DistanceMeters(a, a))
}
