// Package pipeline wires the stages into flows: building centroids, Earth
// Engine samples and Street View imagery, run alone or end to end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/uuid"
	"github.com/paulmach/orb"

	"open-geo-engine/buildings"
	"open-geo-engine/config"
	"open-geo-engine/earthengine"
	"open-geo-engine/overpass"
	"open-geo-engine/streetview"
	"open-geo-engine/table"
)

var (
	ErrNoEarthEngine = errors.New("earth engine unavailable: EE_PROJECT not set")
	ErrNoStreetView  = errors.New("street view unavailable: GOOGLE_STREETVIEW_KEY not set")
)

type Pipeline struct {
	Config   config.Config
	Services *Services
	RunID    uuid.UUID
}

func New(cfg config.Config, s *Services) (*Pipeline, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &Pipeline{Config: cfg, Services: s, RunID: id}, nil
}

// Locations returns the configured search points, or the configured place
// when there are none.
func (p *Pipeline) Locations() []buildings.Location {
	osm := p.Config.OSM
	if len(osm.Points) == 0 {
		return []buildings.Location{buildings.PlaceLocation(osm.Place)}
	}
	out := make([]buildings.Location, len(osm.Points))
	for i, pt := range osm.Points {
		out[i] = buildings.PointLocation(orb.Point{pt[0], pt[1]}, osm.Radius)
	}
	return out
}

func (p *Pipeline) BuildingsPath() string {
	return filepath.Join(p.Config.Data.OutDir, p.Config.StreetView.Place+"_buildings.csv")
}

func (p *Pipeline) SatellitePaths() []string {
	var out []string
	for _, agg := range p.Config.Aggregator.TimeAggregations {
		out = append(out, filepath.Join(p.Config.Aggregator.InputDir, agg, p.Config.StreetView.Place+".csv"))
	}
	return out
}

func (p *Pipeline) StreetViewPath() string {
	return filepath.Join(p.Config.Data.OutDir, p.Config.StreetView.Place+".csv")
}

// BuildingsFlow fetches footprints for every location and writes their
// centroids to BuildingsPath.
func (p *Pipeline) BuildingsFlow(ctx context.Context) ([]buildings.Building, error) {
	g := &buildings.Generator{
		Overpass:     p.Services.Overpass,
		Geocoder:     p.Services.Geocoder,
		Tags:         overpass.Tags(p.Config.OSM.Tags),
		Concurrency:  p.Config.OSM.Concurrency,
		H3Resolution: p.Config.OSM.H3Resolution,
	}

	found, err := g.Execute(ctx, p.Locations())
	if err != nil {
		return nil, err
	}

	if err := table.WriteCSV(p.BuildingsPath(), buildings.ToTable(found)); err != nil {
		return nil, err
	}
	if p.Services.Repo != nil {
		if err := p.Services.Repo.SaveBuildings(ctx, p.RunID, found); err != nil {
			return nil, fmt.Errorf("save buildings: %w", err)
		}
	}

	slog.Info("buildings done", "run", p.RunID, "buildings", len(found), "path", p.BuildingsPath())
	return found, nil
}

func (p *Pipeline) loader() (*earthengine.Loader, error) {
	if p.Services.EarthEngine == nil {
		return nil, ErrNoEarthEngine
	}
	return earthengine.NewLoader(p.Services.EarthEngine, p.Config.Data)
}

// LoadDataFlow samples the image collection at every building centroid and
// writes the samples where the aggregator reads them.
func (p *Pipeline) LoadDataFlow(ctx context.Context, found []buildings.Building) (*table.Table, error) {
	l, err := p.loader()
	if err != nil {
		return nil, err
	}

	samples, err := l.ForCentroids(ctx, found)
	if err != nil {
		return nil, err
	}

	t := earthengine.SamplesTable(samples, l.Bands)
	for _, path := range p.SatellitePaths() {
		if err := table.WriteCSV(path, t); err != nil {
			return nil, err
		}
	}
	if p.Services.Repo != nil {
		n, err := p.Services.Repo.SaveSamples(ctx, p.RunID, samples, l.Bands)
		if err != nil {
			return nil, fmt.Errorf("save samples: %w", err)
		}
		slog.Debug("saved samples", "rows", n)
	}

	slog.Info("satellite data done", "run", p.RunID, "samples", len(samples))
	return t, nil
}

// ExportFlow starts mean image exports for every configured country.
func (p *Pipeline) ExportFlow(ctx context.Context) ([]string, error) {
	l, err := p.loader()
	if err != nil {
		return nil, err
	}
	countries, err := p.Config.Data.Countries()
	if err != nil {
		return nil, err
	}
	return l.ExportCountries(ctx, countries)
}

// StreetViewFlow fetches imagery for the sampled locations and writes the
// samples with links and metadata to StreetViewPath.
func (p *Pipeline) StreetViewFlow(ctx context.Context, samples *table.Table) (*table.Table, error) {
	if p.Services.StreetView == nil {
		return nil, ErrNoStreetView
	}
	sv := p.Config.StreetView
	f := &streetview.Fetcher{
		API:   p.Services.StreetView,
		Store: p.Services.Images,
		Params: streetview.ImageParams{
			Size:    sv.Size,
			Heading: sv.Heading,
			Pitch:   sv.Pitch,
			FOV:     sv.FOV,
		},
		LinksFolder:    sv.LocalLinksFolder,
		MetadataFolder: sv.LocalMetadataFolder,
		Concurrency:    sv.Concurrency,
	}

	out, err := f.Execute(ctx, samples)
	if err != nil {
		return nil, err
	}
	if err := table.WriteCSV(p.StreetViewPath(), out); err != nil {
		return nil, err
	}
	return out, nil
}

// RunFull runs buildings, satellite data and Street View in sequence. Street
// View is skipped when no key is configured.
func (p *Pipeline) RunFull(ctx context.Context) error {
	slog.Info("running pipeline", "run", p.RunID, "locations", len(p.Locations()))

	found, err := p.BuildingsFlow(ctx)
	if err != nil {
		return fmt.Errorf("buildings: %w", err)
	}

	samples, err := p.LoadDataFlow(ctx, found)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}

	if p.Services.StreetView == nil {
		slog.Warn("skipping street view", "err", ErrNoStreetView)
		return nil
	}
	if _, err := p.StreetViewFlow(ctx, samples); err != nil {
		return fmt.Errorf("street view: %w", err)
	}
	return nil
}
