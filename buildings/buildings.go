package buildings

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/uber/h3-go/v4"

	"open-geo-engine/overpass"
)

const (
	DefaultRadius       = 1000
	DefaultH3Resolution = 9
	defaultConcurrency  = 4
)

type Overpass interface {
	Query(ctx context.Context, query string) (*overpass.Response, error)
}

type Geocoder interface {
	Lookup(ctx context.Context, place string) (orb.Bound, error)
}

// Location is where footprints are fetched from: a named place, a bounding
// box, or a point with a search radius in meters.
type Location struct {
	Name   string
	Place  string
	Bound  *orb.Bound
	Point  *orb.Point
	Radius float64
}

func PlaceLocation(place string) Location {
	return Location{Name: place, Place: place}
}

func BoundLocation(name string, b orb.Bound) Location {
	return Location{Name: name, Bound: &b}
}

func PointLocation(p orb.Point, radius float64) Location {
	return Location{
		Name:   fmt.Sprintf("%f,%f", p.Lat(), p.Lon()),
		Point:  &p,
		Radius: radius,
	}
}

type Building struct {
	OSMType  string
	OSMID    int64
	Location string
	Tags     map[string]string
	Geometry orb.Geometry
	Centroid orb.Point
	H3Cell   string
}

func (b Building) Key() string {
	return b.OSMType + "/" + strconv.FormatInt(b.OSMID, 10)
}

type Generator struct {
	Overpass     Overpass
	Geocoder     Geocoder
	Tags         overpass.Tags
	Concurrency  int
	H3Resolution int
}

type result struct {
	buildings []Building
	err       error
}

// Execute fetches footprints for every location in parallel. Results keep
// the order of locations; a footprint found from several locations is kept
// once, at its first occurrence.
func (g *Generator) Execute(ctx context.Context, locations []Location) ([]Building, error) {
	concurrency := g.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	results := make([]result, len(locations))
	done := make(chan struct{}, len(locations))
	sem := make(chan struct{}, concurrency)
	started := 0
	for i, loc := range locations {
		select {
		case sem <- struct{}{}:
			started++
			go func(i int, loc Location) {
				defer func() { <-sem }()
				b, err := g.ForLocation(ctx, loc)
				results[i] = result{b, err}
				done <- struct{}{}
			}(i, loc)
		case <-ctx.Done():
			for ; started > 0; started-- {
				<-done
			}
			return nil, ctx.Err()
		}
	}
	for ; started > 0; started-- {
		<-done
	}

	seen := make(map[string]bool)
	var out []Building
	for i, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("location %s: %w", locations[i].Name, r.err)
		}
		for _, b := range r.buildings {
			if seen[b.Key()] {
				continue
			}
			seen[b.Key()] = true
			out = append(out, b)
		}
	}
	return out, nil
}

func (g *Generator) ForLocation(ctx context.Context, loc Location) ([]Building, error) {
	var query string
	var err error
	switch {
	case loc.Point != nil:
		radius := loc.Radius
		if radius <= 0 {
			radius = DefaultRadius
		}
		query, err = overpass.AroundQuery(*loc.Point, radius, g.Tags)
	case loc.Bound != nil:
		query, err = overpass.BBoxQuery(*loc.Bound, g.Tags)
	case loc.Place != "":
		if g.Geocoder == nil {
			return nil, fmt.Errorf("no geocoder for place %q", loc.Place)
		}
		bound, lookupErr := g.Geocoder.Lookup(ctx, loc.Place)
		if lookupErr != nil {
			return nil, fmt.Errorf("geocode: %w", lookupErr)
		}
		query, err = overpass.BBoxQuery(bound, g.Tags)
	default:
		return nil, fmt.Errorf("empty location")
	}
	if err != nil {
		return nil, err
	}

	slog.Info("downloading footprints", "location", loc.Name, "tags", g.Tags)
	resp, err := g.Overpass.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query overpass: %w", err)
	}

	found, err := g.Footprints(resp, loc.Name)
	if err != nil {
		return nil, err
	}

	if loc.Point != nil {
		radius := loc.Radius
		if radius <= 0 {
			radius = DefaultRadius
		}
		found = slices.DeleteFunc(found, func(b Building) bool {
			return DistanceMeters(*loc.Point, b.Centroid) > radius
		})
	}

	slog.Info("downloaded footprints", "location", loc.Name, "count", len(found))
	return found, nil
}

// Footprints extracts the features of resp that match the generator's tags.
// Output is ordered by element type (node, way, relation) then id.
func (g *Generator) Footprints(resp *overpass.Response, location string) ([]Building, error) {
	resolution := g.H3Resolution
	if resolution <= 0 {
		resolution = DefaultH3Resolution
	}

	var out []Building
	add := func(typ string, meta overpass.Meta, geom orb.Geometry) error {
		c := RepresentativePoint(geom)
		cell, err := h3.LatLngToCell(h3.NewLatLng(c.Lat(), c.Lon()), resolution)
		if err != nil {
			return fmt.Errorf("h3 cell of %s/%d: %w", typ, meta.ID, err)
		}
		out = append(out, Building{
			OSMType:  typ,
			OSMID:    meta.ID,
			Location: location,
			Tags:     meta.Tags,
			Geometry: geom,
			Centroid: c,
			H3Cell:   cell.String(),
		})
		return nil
	}

	for _, id := range sortedKeys(resp.Nodes) {
		n := resp.Nodes[id]
		if !g.Tags.Match(n.Tags) {
			continue
		}
		if err := add("node", n.Meta, n.Point()); err != nil {
			return nil, err
		}
	}

	for _, id := range sortedKeys(resp.Ways) {
		w := resp.Ways[id]
		if !g.Tags.Match(w.Tags) {
			continue
		}
		ring, ok := w.Ring()
		if !ok {
			slog.Debug("skipping open or incomplete way", "way_id", w.ID)
			continue
		}
		if err := add("way", w.Meta, orb.Polygon{ring}); err != nil {
			return nil, err
		}
	}

	for _, id := range sortedKeys(resp.Relations) {
		rel := resp.Relations[id]
		if !g.Tags.Match(rel.Tags) || rel.Tags["type"] != "multipolygon" {
			continue
		}
		mp := relationPolygons(resp, rel)
		if len(mp) == 0 {
			slog.Debug("skipping relation without closed outer ways", "relation_id", rel.ID)
			continue
		}
		if err := add("relation", rel.Meta, mp); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// relationPolygons assembles closed outer member ways into polygons, putting
// each closed inner way into the first outer polygon containing it.
func relationPolygons(resp *overpass.Response, rel *overpass.Relation) orb.MultiPolygon {
	var mp orb.MultiPolygon
	var inners []orb.Ring
	for _, m := range rel.Members {
		if m.Type != "way" {
			continue
		}
		w, ok := resp.Ways[m.Ref]
		if !ok {
			continue
		}
		ring, ok := w.Ring()
		if !ok {
			continue
		}
		switch m.Role {
		case "inner":
			inners = append(inners, ring)
		default:
			mp = append(mp, orb.Polygon{ring})
		}
	}

	for _, inner := range inners {
		for i := range mp {
			if planar.RingContains(mp[i][0], inner[0]) {
				mp[i] = append(mp[i], inner)
				break
			}
		}
	}
	return mp
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
